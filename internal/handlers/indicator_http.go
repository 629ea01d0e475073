package handlers

import (
	"net/http"

	"leakdesk/internal/indicator"
	"leakdesk/internal/utils"
)

// GET /api/indicators
func Indicators(c *indicator.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		utils.JSON(w, http.StatusOK, map[string]any{"items": c.Entries()})
	}
}
