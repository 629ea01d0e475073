package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"leakdesk/internal/cache"
	"leakdesk/internal/lifecycle"
	"leakdesk/internal/models"
	"leakdesk/internal/service"
	"leakdesk/internal/utils"
)

// Admin filter tabs.
const (
	FilterAll       = "ALL"
	FilterPending   = "PENDING"
	FilterScheduled = "SCHEDULED"
	FilterFinished  = "FINISHED"
)

// TicketHTTP wires HTTP endpoints to the cache (reads) and the lifecycle
// machine (writes).
type TicketHTTP struct {
	cache   *cache.Cache
	machine *lifecycle.Machine
	auth    *service.AuthService
}

func NewTicketHTTP(c *cache.Cache, m *lifecycle.Machine, auth *service.AuthService) *TicketHTTP {
	return &TicketHTTP{cache: c, machine: m, auth: auth}
}

// visible returns the tickets the caller may see: everything for an
// admin, the store's own tickets otherwise.
func visible(c *cache.Cache, actor models.Account) []models.Ticket {
	if actor.IsAdmin() {
		return c.Tickets()
	}
	return c.ForStore(actor.ID)
}

func matchesFilter(t models.Ticket, filter string) bool {
	switch filter {
	case FilterPending:
		return t.Status == models.StatusPending
	case FilterScheduled:
		return t.Status == models.StatusOnProgress
	case FilterFinished:
		return t.Status == models.StatusCompleted
	}
	return true
}

// GET /api/tickets?filter=&limit=&offset=
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		qv := r.URL.Query()
		filter := utils.QueryEnum(qv, "filter", FilterAll, FilterAll, FilterPending, FilterScheduled, FilterFinished)

		items := make([]models.Ticket, 0)
		for _, t := range visible(h.cache, actor) {
			if matchesFilter(t, filter) {
				items = append(items, t)
			}
		}
		total := len(items)
		start, end := utils.Page(total, utils.QueryInt(qv, "limit", 50), utils.QueryInt(qv, "offset", 0))

		w.Header().Set("X-Total-Count", strconv.Itoa(total))
		utils.JSON(w, http.StatusOK, map[string]any{"items": items[start:end], "total": total, "filter": filter})
	}
}

// GET /api/tickets/{id}
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		t, found := h.cache.Ticket(chi.URLParam(r, "id"))
		// another store's ticket is reported as missing
		if !found || (!actor.IsAdmin() && !t.BelongsTo(actor.ID)) {
			utils.Error(w, http.StatusNotFound, "not found")
			return
		}
		utils.JSON(w, http.StatusOK, t)
	}
}

// POST /api/tickets
func (h *TicketHTTP) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var in lifecycle.Draft
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.machine.Create(r.Context(), actor, in)
		writeMutation(w, http.StatusCreated, t, err)
	}
}

// PATCH /api/tickets/{id}
func (h *TicketHTTP) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var in lifecycle.Details
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.machine.UpdateDetails(r.Context(), actor, chi.URLParam(r, "id"), in)
		writeMutation(w, http.StatusOK, t, err)
	}
}

// POST /api/tickets/{id}/schedule
func (h *TicketHTTP) Schedule() http.HandlerFunc {
	return h.plan(h.machine.Schedule)
}

// POST /api/tickets/{id}/reschedule
func (h *TicketHTTP) Reschedule() http.HandlerFunc {
	return h.plan(h.machine.EditSchedule)
}

type planOp func(ctx context.Context, actor models.Account, id string, p lifecycle.Plan) (models.Ticket, error)

func (h *TicketHTTP) plan(op planOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var in lifecycle.Plan
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := op(r.Context(), actor, chi.URLParam(r, "id"), in)
		writeMutation(w, http.StatusOK, t, err)
	}
}

// POST /api/tickets/{id}/finish
func (h *TicketHTTP) Finish() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		var in struct {
			ClosureNote string `json:"beritaAcara"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		t, err := h.machine.Finish(r.Context(), actor, chi.URLParam(r, "id"), in.ClosureNote)
		writeMutation(w, http.StatusOK, t, err)
	}
}
