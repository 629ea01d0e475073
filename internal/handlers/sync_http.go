package handlers

import (
	"context"
	"net/http"
	"time"

	"leakdesk/internal/models"
	"leakdesk/internal/poller"
	"leakdesk/internal/repository"
	"leakdesk/internal/utils"
)

type SyncHTTP struct {
	poller  *poller.Poller
	journal repository.JournalRepository
}

func NewSyncHTTP(p *poller.Poller, j repository.JournalRepository) *SyncHTTP {
	return &SyncHTTP{poller: p, journal: j}
}

// GET /api/sync/status
func (h *SyncHTTP) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := h.journal.CountByOutcome(r.Context())
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"poll": h.poller.Status(), "mutations": counts})
	}
}

// POST /api/sync/refresh polls right away and reports the outcome.
func (h *SyncHTTP) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
		defer cancel()
		if err := h.poller.Poll(ctx); err != nil {
			writeErr(w, err)
			return
		}
		utils.JSON(w, http.StatusOK, h.poller.Status())
	}
}

// GET /api/sync/failures?ticket=&limit=&offset=
func (h *SyncHTTP) Failures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		f := repository.JournalFilter{
			TicketID: qv.Get("ticket"),
			Outcome:  models.OutcomeFailed,
			Limit:    utils.QueryInt(qv, "limit", 50),
			Offset:   utils.QueryInt(qv, "offset", 0),
		}
		items, err := h.journal.List(r.Context(), f)
		if err != nil {
			utils.Error(w, http.StatusInternalServerError, err.Error())
			return
		}
		if items == nil {
			items = []models.JournalEntry{}
		}
		utils.JSON(w, http.StatusOK, map[string]any{"items": items})
	}
}
