// Package memory keeps the mutation journal in process memory. It is used
// when no database is configured and loses its contents on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"leakdesk/internal/identity"
	"leakdesk/internal/models"
	"leakdesk/internal/repository"
)

// maxEntries bounds the journal; the oldest entries are dropped first.
const maxEntries = 1000

type JournalRepo struct {
	mu      sync.Mutex
	entries []models.JournalEntry
	nextID  int64
	now     func() time.Time
}

func NewJournalRepo() *JournalRepo { return &JournalRepo{now: time.Now} }

func (r *JournalRepo) Record(_ context.Context, e *models.JournalEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}
	r.entries = append(r.entries, *e)
	if len(r.entries) > maxEntries {
		r.entries = r.entries[len(r.entries)-maxEntries:]
	}
	return nil
}

func (r *JournalRepo) List(_ context.Context, f repository.JournalFilter) ([]models.JournalEntry, error) {
	f = f.Clamp()
	r.mu.Lock()
	defer r.mu.Unlock()

	key := identity.Normalize(f.TicketID)
	var matched []models.JournalEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if key != "" && identity.Normalize(e.TicketID) != key {
			continue
		}
		if f.Outcome != "" && e.Outcome != f.Outcome {
			continue
		}
		matched = append(matched, e)
	}
	if f.Offset >= len(matched) {
		return nil, nil
	}
	end := f.Offset + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[f.Offset:end], nil
}

func (r *JournalRepo) CountByOutcome(context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, e := range r.entries {
		out[e.Outcome]++
	}
	return out, nil
}
