package repository

import (
	"context"

	"leakdesk/internal/models"
)

type JournalRepository interface {
	Record(ctx context.Context, e *models.JournalEntry) error
	List(ctx context.Context, f JournalFilter) ([]models.JournalEntry, error)
	CountByOutcome(ctx context.Context) (map[string]int, error)
}
