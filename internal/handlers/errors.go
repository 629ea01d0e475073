package handlers

import (
	"errors"
	"net/http"

	"leakdesk/internal/apperr"
	"leakdesk/internal/models"
	"leakdesk/internal/service"
	"leakdesk/internal/utils"
)

// writeErr maps engine errors to HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		utils.JSON(w, http.StatusUnprocessableEntity, map[string]any{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, apperr.ErrForbidden):
		utils.Error(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, apperr.ErrNotFound):
		utils.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidTransition):
		utils.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrQuotaExceeded):
		utils.Error(w, http.StatusTooManyRequests, "daily notification quota exhausted")
	case errors.Is(err, apperr.ErrSyncUnavailable):
		utils.Error(w, http.StatusBadGateway, err.Error())
	default:
		utils.Error(w, http.StatusInternalServerError, err.Error())
	}
}

// writeMutation answers a lifecycle call. A ticket that was applied
// locally but not persisted is still returned, flagged unsynced.
func writeMutation(w http.ResponseWriter, status int, t models.Ticket, err error) {
	switch {
	case err == nil:
		utils.JSON(w, status, map[string]any{"ticket": t, "synced": true})
	case errors.Is(err, apperr.ErrSyncUnavailable) && !errors.Is(err, apperr.ErrQuotaExceeded) && t.ID != "":
		utils.JSON(w, http.StatusAccepted, map[string]any{"ticket": t, "synced": false, "error": err.Error()})
	default:
		writeErr(w, err)
	}
}

// actorFrom resolves the caller against the account directory.
func actorFrom(auth *service.AuthService, r *http.Request) (models.Account, bool) {
	s, ok := utils.SessionFrom(r.Context())
	if !ok {
		return models.Account{}, false
	}
	return auth.Actor(s.AccountID)
}
