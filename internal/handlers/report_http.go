package handlers

import (
	"net/http"

	"leakdesk/internal/cache"
	"leakdesk/internal/models"
	"leakdesk/internal/service"
	"leakdesk/internal/utils"
)

type ReportsHTTP struct {
	cache *cache.Cache
	auth  *service.AuthService
}

func NewReportsHTTP(c *cache.Cache, auth *service.AuthService) *ReportsHTTP {
	return &ReportsHTTP{cache: c, auth: auth}
}

type Summary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	Open            int            `json:"open"`
	HighUrgencyOpen int            `json:"highUrgencyOpen"`
	AwaitingUpload  int            `json:"awaitingUpload"`
}

// Summarize counts tickets per status. Open means not terminal.
func Summarize(tickets []models.Ticket) Summary {
	s := Summary{Total: len(tickets), ByStatus: map[string]int{
		string(models.StatusPending):    0,
		string(models.StatusOnProgress): 0,
		string(models.StatusCompleted):  0,
	}}
	for _, t := range tickets {
		s.ByStatus[string(t.Status)]++
		if t.Terminal() {
			continue
		}
		s.Open++
		if t.Urgency == models.UrgencyHigh {
			s.HighUrgencyOpen++
		}
		for _, p := range t.PhotoURLs {
			if models.IsInlinePhoto(p) {
				s.AwaitingUpload++
				break
			}
		}
	}
	return s
}

// GET /api/reports/summary
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(h.auth, r)
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		utils.JSON(w, http.StatusOK, Summarize(visible(h.cache, actor)))
	}
}
