package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leakdesk/internal/service"
	"leakdesk/internal/utils"
)

type AccountHTTP struct {
	dir service.Directory
}

func NewAccountHTTP(dir service.Directory) *AccountHTTP {
	return &AccountHTTP{dir: dir}
}

// GET /api/accounts/{id}
func (h *AccountHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := h.dir.Account(chi.URLParam(r, "id"))
		if !ok {
			utils.Error(w, http.StatusNotFound, "account not found")
			return
		}
		utils.JSON(w, http.StatusOK, u)
	}
}
