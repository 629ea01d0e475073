package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"leakdesk/internal/identity"
	"leakdesk/internal/models"
	"leakdesk/internal/repository"
)

type JournalRepo struct{ db *pgxpool.Pool }

func NewJournalRepo(db *pgxpool.Pool) *JournalRepo { return &JournalRepo{db: db} }

func (r *JournalRepo) Record(ctx context.Context, e *models.JournalEntry) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO mutation_journal (ticket_id, ticket_key, action, email_type, outcome, endpoint, error, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING id, created_at
	`,
		e.TicketID, identity.Normalize(e.TicketID), e.Action, nullIfEmpty(string(e.EmailType)),
		e.Outcome, nullIfEmpty(e.Endpoint), nullIfEmpty(e.Error), nullIfEmpty(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

// List returns journal entries newest first.
// - TicketID: compared in normalized form
// - Outcome:  exact
func (r *JournalRepo) List(ctx context.Context, f repository.JournalFilter) ([]models.JournalEntry, error) {
	f = f.Clamp()
	whereSQL, args := buildJournalWhere(f.TicketID, f.Outcome)
	args = append(args, f.Limit, f.Offset)

	sql := `
		SELECT id, ticket_id, action, COALESCE(email_type, ''), outcome,
			COALESCE(endpoint, ''), COALESCE(error, ''), COALESCE(payload, ''), created_at
		FROM mutation_journal
		` + whereSQL + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + itoa(len(args)-1) + ` OFFSET $` + itoa(len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.JournalEntry
	for rows.Next() {
		var e models.JournalEntry
		var emailType string
		if err := rows.Scan(
			&e.ID, &e.TicketID, &e.Action, &emailType, &e.Outcome,
			&e.Endpoint, &e.Error, &e.Payload, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.EmailType = models.EmailType(emailType)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *JournalRepo) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT outcome, COUNT(*) FROM mutation_journal GROUP BY outcome`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, err
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// buildJournalWhere composes the WHERE clause and args for List.
func buildJournalWhere(ticketID, outcome string) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if s := strings.TrimSpace(ticketID); s != "" {
		args = append(args, identity.Normalize(s))
		clauses = append(clauses, "ticket_key = $"+itoa(len(args)))
	}
	if s := strings.TrimSpace(outcome); s != "" {
		args = append(args, s)
		clauses = append(clauses, "outcome = $"+itoa(len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func itoa(i int) string { return strconv.Itoa(i) }
