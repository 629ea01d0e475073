// Package lifecycle gates ticket status transitions and pushes every
// applied change to the remote store.
//
// Each operation validates against the cached ticket, applies the change
// to the cache optimistically, submits it as one mutation and asks the
// scheduler for a grace poll. A failed submission is not rolled back: the
// cache keeps the optimistic state until a poll says otherwise, and the
// failure is written to the mutation journal.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
	"leakdesk/internal/attachment"
	"leakdesk/internal/cache"
	"leakdesk/internal/indicator"
	"leakdesk/internal/metrics"
	"leakdesk/internal/models"
	"leakdesk/internal/remote"
	"leakdesk/internal/repository"
)

type Submitter interface {
	Submit(ctx context.Context, m remote.Mutation) (remote.Ack, error)
}

type Refresher interface {
	RefreshAfter(d time.Duration) bool
}

// Notifier is only used when the client sends notifications itself.
// Reserve takes one unit of the daily mail budget before anything is
// applied; Notify spends it and Release hands back one that was not used.
type Notifier interface {
	Reserve(ctx context.Context) error
	Release(ctx context.Context)
	Notify(ctx context.Context, t models.Ticket, typ models.EmailType, directory []models.Account) error
}

type Options struct {
	RequireClosure   bool
	MinClosureLength int

	GraceUpdate       time.Duration
	GraceCreate       time.Duration
	GraceCreatePhotos time.Duration

	// NotifyLocally strips emailType from mutations and dispatches
	// through the Notifier after the store accepted the write.
	NotifyLocally bool
}

type Deps struct {
	Cache    *cache.Cache
	Remote   Submitter
	Refresh  Refresher
	Photos   attachment.Store
	Notifier Notifier
	Catalog  *indicator.Catalog
	Journal  repository.JournalRepository
	Clock    clockwork.Clock
	Log      zerolog.Logger
}

type Machine struct {
	Deps
	opt Options
	log zerolog.Logger
}

func New(d Deps, opt Options) *Machine {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Photos == nil {
		d.Photos = attachment.Passthrough{}
	}
	if opt.GraceUpdate <= 0 {
		opt.GraceUpdate = 2 * time.Second
	}
	if opt.GraceCreate <= 0 {
		opt.GraceCreate = 3 * time.Second
	}
	if opt.GraceCreatePhotos <= 0 {
		opt.GraceCreatePhotos = 8 * time.Second
	}
	return &Machine{Deps: d, opt: opt, log: d.Log.With().Str("component", "lifecycle").Logger()}
}

func (m *Machine) local() bool { return m.opt.NotifyLocally && m.Notifier != nil }

// NewTicketID returns a fresh identifier in the TKT-XXXXXXXX form.
func NewTicketID() string {
	h := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TKT-" + strings.ToUpper(h[:8])
}

func requireAdmin(actor models.Account) error {
	if !actor.IsAdmin() {
		return fmt.Errorf("%s is not an admin: %w", actor.ID, apperr.ErrForbidden)
	}
	return nil
}

// reserve aborts an operation that will notify before anything is
// applied, when the client sends the notifications. The returned release
// must be called on every path that ends without a notification.
func (m *Machine) reserve(ctx context.Context, typ models.EmailType) (func(), error) {
	if typ == "" || !m.local() {
		return func() {}, nil
	}
	if err := m.Notifier.Reserve(ctx); err != nil {
		metrics.MutationsTotal.WithLabelValues("quota", "rejected").Inc()
		return nil, err
	}
	return func() { m.Notifier.Release(ctx) }, nil
}

// submit persists t and reports the remote error, if any, wrapped with
// the action. A nil error means the store accepted the write. When the
// store refused the write because its mail quota ran out, revert undoes
// the optimistic change; every other failure keeps it.
func (m *Machine) submit(ctx context.Context, action string, t models.Ticket, typ models.EmailType, grace time.Duration, revert func()) error {
	mut := remote.Mutation{Action: action, Data: t, EmailType: typ}
	if m.local() {
		mut.EmailType = ""
	}
	ack, err := m.Remote.Submit(ctx, mut)

	entry := &models.JournalEntry{TicketID: t.ID, Action: action, EmailType: typ, Outcome: models.OutcomeSynced, Endpoint: ack.Endpoint}
	if err != nil {
		entry.Outcome = models.OutcomeFailed
		entry.Error = err.Error()
		if b, jerr := json.Marshal(mut); jerr == nil {
			entry.Payload = string(b)
		}
	}
	if m.Journal != nil {
		if jerr := m.Journal.Record(ctx, entry); jerr != nil {
			m.log.Error().Err(jerr).Str("ticket", t.ID).Msg("journal write failed")
		}
	}

	if err != nil {
		if errors.Is(err, apperr.ErrQuotaExceeded) && revert != nil {
			revert()
			metrics.MutationsTotal.WithLabelValues(action, "quota").Inc()
			m.log.Warn().Err(err).Str("ticket", t.ID).Str("action", action).Msg("store mail quota exhausted, local change reverted")
			return fmt.Errorf("%s %s: %w", action, t.ID, err)
		}
		metrics.MutationsTotal.WithLabelValues(action, "failed").Inc()
		m.log.Error().Err(err).Str("ticket", t.ID).Str("action", action).Msg("mutation not persisted, keeping local state")
		return fmt.Errorf("%s %s: %w", action, t.ID, err)
	}
	metrics.MutationsTotal.WithLabelValues(action, "synced").Inc()
	m.log.Info().Str("ticket", t.ID).Str("action", action).Str("email", string(typ)).Str("endpoint", ack.Endpoint).Msg("mutation persisted")

	if m.Refresh != nil {
		m.Refresh.RefreshAfter(grace)
	}
	if typ != "" && m.local() {
		if nerr := m.Notifier.Notify(ctx, t, typ, m.Cache.Accounts()); nerr != nil {
			m.log.Warn().Err(nerr).Str("ticket", t.ID).Str("type", string(typ)).Msg("notification not sent")
		}
	}
	return nil
}

// Draft is what a store fills in when reporting a leak.
type Draft struct {
	Indicator   string   `json:"indicator"`
	Date        string   `json:"date"`
	Location    string   `json:"location"`
	Description string   `json:"description"`
	PhotoURLs   []string `json:"photoUrls"`
}

// Create files a new PENDING ticket for the acting store. On a remote
// failure the ticket stays in the cache and is returned together with the
// error.
func (m *Machine) Create(ctx context.Context, actor models.Account, d Draft) (models.Ticket, error) {
	if actor.IsAdmin() {
		return models.Ticket{}, fmt.Errorf("only stores file tickets: %w", apperr.ErrForbidden)
	}

	var missing []string
	entry, err := m.Catalog.Derive(d.Indicator)
	if err != nil {
		missing = append(missing, "indicator")
	}
	now := m.Clock.Now()
	if !models.IsSet(d.Date) {
		d.Date = now.Format(models.DateLayout)
	}
	// Bare dates are calendar days in the clock's zone.
	reported, ok := models.ParseDateIn(d.Date, now.Location())
	if !ok || reported.After(now) {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return models.Ticket{}, &apperr.ValidationError{Op: "create", Fields: missing}
	}
	release, err := m.reserve(ctx, models.EmailNew)
	if err != nil {
		return models.Ticket{}, err
	}

	t := models.Ticket{
		ID:          NewTicketID(),
		StoreID:     actor.ID,
		StoreName:   actor.Name,
		Date:        reported.Format(models.DateLayout),
		Location:    d.Location,
		Description: d.Description,
		Status:      models.StatusPending,
		PhotoURLs:   append([]string(nil), d.PhotoURLs...),
		UpdatedAt:   now.Format(models.TimestampLayout),
	}
	if !models.IsSet(t.Location) {
		t.Location = "Berdasarkan Indikator"
	}
	if !models.IsSet(t.Description) {
		t.Description = entry.Indicator
	}
	entry.Stamp(&t)
	t.Normalize()

	grace := m.opt.GraceCreate
	if len(t.PhotoURLs) > 0 {
		grace = m.opt.GraceCreatePhotos
		t.PhotoURLs = attachment.ResolvePhotos(ctx, m.Photos, t, now.UnixMilli())
	}

	m.Cache.Prepend(t)
	m.log.Info().Str("ticket", t.ID).Str("store", t.StoreID).Str("risk", t.RiskLevel).Msg("ticket created")

	revert := func() { m.Cache.Remove(t.ID) }
	if err := m.submit(ctx, remote.ActionAdd, t, models.EmailNew, grace, revert); err != nil {
		release()
		return t, err
	}
	return t, nil
}

// Details is an inline edit. Nil fields are left alone.
type Details struct {
	Department  *string `json:"department"`
	PIC         *string `json:"pic"`
	PlannedDate *string `json:"plannedDate"`
	TargetDate  *string `json:"targetDate"`
}

func (d Details) empty() bool {
	return d.Department == nil && d.PIC == nil && d.PlannedDate == nil && d.TargetDate == nil
}

// UpdateDetails edits assignment fields without a status change and
// without a notification.
func (m *Machine) UpdateDetails(ctx context.Context, actor models.Account, id string, d Details) (models.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Ticket{}, err
	}
	if d.empty() {
		return models.Ticket{}, &apperr.ValidationError{Op: "update", Fields: []string{"department", "pic", "plannedDate", "targetDate"}}
	}
	t, err := m.Cache.Update(id, func(t *models.Ticket) error {
		if t.Terminal() {
			return fmt.Errorf("%s is %s: %w", t.ID, t.Status, apperr.ErrInvalidTransition)
		}
		var bad []string
		set := func(dst *string, v *string, field string, date bool) {
			if v == nil {
				return
			}
			if date && models.IsSet(*v) {
				if _, ok := models.ParseDate(*v); !ok {
					bad = append(bad, field)
					return
				}
			}
			*dst = *v
		}
		set(&t.Department, d.Department, "department", false)
		set(&t.PIC, d.PIC, "pic", false)
		set(&t.PlannedDate, d.PlannedDate, "plannedDate", true)
		set(&t.TargetDate, d.TargetDate, "targetDate", true)
		if len(bad) > 0 {
			return &apperr.ValidationError{Op: "update", Fields: bad}
		}
		defaultPIC(t, actor)
		// A scheduled ticket keeps satisfying the scheduling preconditions.
		if t.Status == models.StatusOnProgress {
			if missing := planGaps(*t); len(missing) > 0 {
				return &apperr.ValidationError{Op: "update", Fields: missing}
			}
		}
		t.UpdatedAt = m.Clock.Now().Format(models.TimestampLayout)
		t.Normalize()
		return nil
	})
	if err != nil {
		return models.Ticket{}, err
	}
	return t, m.submit(ctx, remote.ActionUpdate, t, "", m.opt.GraceUpdate, nil)
}

// defaultPIC assigns the acting admin when a department is set without a
// person in charge.
func defaultPIC(t *models.Ticket, actor models.Account) {
	if models.IsSet(t.Department) && !models.IsSet(t.PIC) {
		t.PIC = actor.ShortName()
	}
}

// Plan carries the scheduling fields. Empty fields keep the value already
// on the ticket.
type Plan struct {
	Department  string `json:"department"`
	PIC         string `json:"pic"`
	PlannedDate string `json:"plannedDate"`
	TargetDate  string `json:"targetDate"`
}

func (p Plan) applyTo(t *models.Ticket, actor models.Account) error {
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&t.Department, p.Department},
		{&t.PIC, p.PIC},
		{&t.PlannedDate, p.PlannedDate},
		{&t.TargetDate, p.TargetDate},
	} {
		if models.IsSet(f.v) {
			*f.dst = strings.TrimSpace(f.v)
		}
	}
	defaultPIC(t, actor)

	if missing := planGaps(*t); len(missing) > 0 {
		return &apperr.ValidationError{Op: "schedule", Fields: missing}
	}
	return nil
}

// planGaps lists the scheduling fields t is missing. Target may not be
// before planned.
func planGaps(t models.Ticket) []string {
	var missing []string
	if !models.IsSet(t.Department) {
		missing = append(missing, "department")
	}
	planned, okPlanned := models.ParseDate(t.PlannedDate)
	if !okPlanned {
		missing = append(missing, "plannedDate")
	}
	target, okTarget := models.ParseDate(t.TargetDate)
	if !okTarget || (okPlanned && target.Before(planned)) {
		missing = append(missing, "targetDate")
	}
	return missing
}

// Schedule moves a PENDING ticket to ON_PROGRESS.
func (m *Machine) Schedule(ctx context.Context, actor models.Account, id string, p Plan) (models.Ticket, error) {
	return m.schedule(ctx, actor, id, p, models.StatusPending)
}

// EditSchedule changes the plan of a ticket already ON_PROGRESS and
// notifies again. The status is not touched.
func (m *Machine) EditSchedule(ctx context.Context, actor models.Account, id string, p Plan) (models.Ticket, error) {
	return m.schedule(ctx, actor, id, p, models.StatusOnProgress)
}

func (m *Machine) schedule(ctx context.Context, actor models.Account, id string, p Plan, from models.Status) (models.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Ticket{}, err
	}
	if err := m.exists(id); err != nil {
		return models.Ticket{}, err
	}
	release, err := m.reserve(ctx, models.EmailScheduled)
	if err != nil {
		return models.Ticket{}, err
	}
	var prev models.Ticket
	t, err := m.Cache.Update(id, func(t *models.Ticket) error {
		prev = t.Clone()
		if t.Status != from {
			return fmt.Errorf("%s is %s, want %s: %w", t.ID, t.Status, from, apperr.ErrInvalidTransition)
		}
		if err := p.applyTo(t, actor); err != nil {
			return err
		}
		t.Status = models.StatusOnProgress
		t.UpdatedAt = m.Clock.Now().Format(models.TimestampLayout)
		return nil
	})
	if err != nil {
		release()
		return models.Ticket{}, err
	}
	if err := m.submit(ctx, remote.ActionUpdate, t, models.EmailScheduled, m.opt.GraceUpdate, m.restore(prev, t)); err != nil {
		release()
		return t, err
	}
	return t, nil
}

// Finish closes an ON_PROGRESS ticket. A PENDING ticket has to be
// scheduled first.
func (m *Machine) Finish(ctx context.Context, actor models.Account, id, closureNote string) (models.Ticket, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Ticket{}, err
	}
	if err := m.exists(id); err != nil {
		return models.Ticket{}, err
	}
	release, err := m.reserve(ctx, models.EmailCompleted)
	if err != nil {
		return models.Ticket{}, err
	}
	now := m.Clock.Now()
	var prev models.Ticket
	t, err := m.Cache.Update(id, func(t *models.Ticket) error {
		prev = t.Clone()
		if t.Status != models.StatusOnProgress {
			return fmt.Errorf("%s is %s, want %s: %w", t.ID, t.Status, models.StatusOnProgress, apperr.ErrInvalidTransition)
		}
		note := strings.TrimSpace(closureNote)
		if m.opt.RequireClosure && (!models.IsSet(note) || len([]rune(note)) < m.opt.MinClosureLength) {
			return &apperr.ValidationError{Op: "finish", Fields: []string{"beritaAcara"}}
		}
		if reported, ok := models.ParseDateIn(t.Date, now.Location()); ok && !now.After(reported) {
			return &apperr.ValidationError{Op: "finish", Fields: []string{"completionDate"}}
		}
		if models.IsSet(note) {
			t.ClosureNote = note
		}
		t.Status = models.StatusCompleted
		t.CompletionDate = now.Format(models.TimestampLayout)
		t.UpdatedAt = now.Format(models.TimestampLayout)
		return nil
	})
	if err != nil {
		release()
		return models.Ticket{}, err
	}
	if err := m.submit(ctx, remote.ActionUpdate, t, models.EmailCompleted, m.opt.GraceUpdate, m.restore(prev, t)); err != nil {
		release()
		return t, err
	}
	return t, nil
}

var errSuperseded = errors.New("superseded by a newer version")

// restore puts prev back unless the cached ticket no longer carries the
// optimistic change, e.g. because a poll replaced it in the meantime.
func (m *Machine) restore(prev, applied models.Ticket) func() {
	return func() {
		_, err := m.Cache.Update(prev.ID, func(t *models.Ticket) error {
			if t.UpdatedAt != applied.UpdatedAt {
				return errSuperseded
			}
			*t = prev
			return nil
		})
		if errors.Is(err, errSuperseded) {
			m.log.Debug().Str("ticket", prev.ID).Msg("revert skipped, ticket changed since")
		}
	}
}

func (m *Machine) exists(id string) error {
	if _, ok := m.Cache.Ticket(id); !ok {
		return fmt.Errorf("ticket %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// IsRemoteFailure reports whether err came back from the store after the
// change was already applied locally.
func IsRemoteFailure(err error) bool {
	return errors.Is(err, apperr.ErrSyncUnavailable)
}
