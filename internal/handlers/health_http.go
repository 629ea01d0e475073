package handlers

import (
	"net/http"
	"time"

	"leakdesk/internal/cache"
	"leakdesk/internal/utils"
)

// Health is always 200; a process that has never reached the store is
// still serving its local tickets. "synced" tells the two apart.
func Health(c *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		last := c.LastSync()
		body := map[string]any{"status": "ok", "tickets": c.Len(), "synced": !last.IsZero()}
		if !last.IsZero() {
			body["lastSync"] = last.UTC().Format(time.RFC3339)
		}
		utils.JSON(w, http.StatusOK, body)
	}
}
