package memory

import (
	"context"
	"testing"

	"leakdesk/internal/models"
	"leakdesk/internal/repository"
)

func TestJournalRepo(t *testing.T) {
	ctx := context.Background()
	r := NewJournalRepo()
	for _, e := range []models.JournalEntry{
		{TicketID: "TKT-1", Action: "add", Outcome: models.OutcomeSynced},
		{TicketID: "tkt-1", Action: "update", Outcome: models.OutcomeFailed, Error: "sync unavailable"},
		{TicketID: "TKT-2", Action: "add", Outcome: models.OutcomeFailed},
	} {
		e := e
		if err := r.Record(ctx, &e); err != nil {
			t.Fatalf("Record: %v", err)
		}
		if e.ID == 0 || e.CreatedAt.IsZero() {
			t.Errorf("Record did not assign id/time: %+v", e)
		}
	}

	failed, _ := r.List(ctx, repository.JournalFilter{Outcome: models.OutcomeFailed})
	if len(failed) != 2 {
		t.Fatalf("failed = %d, want 2", len(failed))
	}
	if failed[0].TicketID != "TKT-2" {
		t.Errorf("newest first: got %s, want TKT-2", failed[0].TicketID)
	}

	forTicket, _ := r.List(ctx, repository.JournalFilter{TicketID: " TKT-1"})
	if len(forTicket) != 2 {
		t.Errorf("entries for TKT-1 = %d, want 2", len(forTicket))
	}

	page, _ := r.List(ctx, repository.JournalFilter{Limit: 1, Offset: 5})
	if len(page) != 0 {
		t.Errorf("offset past end = %d entries, want 0", len(page))
	}

	counts, _ := r.CountByOutcome(ctx)
	if counts[models.OutcomeFailed] != 2 || counts[models.OutcomeSynced] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
