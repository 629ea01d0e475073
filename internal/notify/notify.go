// Package notify sends ticket notifications from the client when the
// daemon runs in local notification mode.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"leakdesk/internal/metrics"
	"leakdesk/internal/models"
)

type Dispatcher struct {
	mailer Mailer
	quota  Quota
	cc     []string
	log    zerolog.Logger
}

func NewDispatcher(m Mailer, q Quota, cc []string, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{mailer: m, quota: q, cc: cc, log: log.With().Str("component", "notify").Logger()}
}

// Reserve takes one message from today's budget, or returns
// apperr.ErrQuotaExceeded.
func (d *Dispatcher) Reserve(ctx context.Context) error {
	return d.quota.Consume(ctx)
}

// Release returns a reserved unit that no message was sent for.
func (d *Dispatcher) Release(ctx context.Context) {
	if err := d.quota.Release(ctx); err != nil {
		d.log.Warn().Err(err).Msg("mail quota release failed")
	}
}

// Notify sends one message about t to everyone Recipients names, spending
// a unit taken by Reserve. No recipients is not an error; the unit goes
// back to the budget then, and when the mailer fails.
func (d *Dispatcher) Notify(ctx context.Context, t models.Ticket, typ models.EmailType, directory []models.Account) error {
	to := Recipients(t, directory)
	if len(to) == 0 {
		d.log.Debug().Str("ticket", t.ID).Str("type", string(typ)).Msg("no recipients")
		metrics.NotificationsTotal.WithLabelValues(string(typ), "skipped").Inc()
		d.Release(ctx)
		return nil
	}
	msg := Message{To: to, CC: d.cc, Subject: Subject(t, typ), Body: Body(t, typ)}
	if err := d.mailer.Send(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(typ), "failed").Inc()
		d.Release(ctx)
		return fmt.Errorf("notify %s %s: %w", typ, t.ID, err)
	}
	metrics.NotificationsTotal.WithLabelValues(string(typ), "sent").Inc()
	d.log.Info().Str("ticket", t.ID).Str("type", string(typ)).Int("recipients", len(to)).Msg("notification sent")
	return nil
}

// Recipients lists the owning store, its escalation contact and every
// admin, deduplicated, keeping only plausible addresses.
func Recipients(t models.Ticket, directory []models.Account) []string {
	var out []string
	seen := map[string]bool{}
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		k := strings.ToLower(addr)
		if !strings.Contains(addr, "@") || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, addr)
	}
	for _, a := range directory {
		if !a.IsAdmin() && a.Is(t.StoreID) {
			add(a.Email)
			add(a.EscalationEmail)
			break
		}
	}
	for _, a := range directory {
		if a.IsAdmin() {
			add(a.Email)
		}
	}
	return out
}

func Subject(t models.Ticket, typ models.EmailType) string {
	var tag string
	switch typ {
	case models.EmailScheduled:
		tag = "JADWAL PENGERJAAN"
	case models.EmailCompleted:
		tag = "PENGERJAAN SELESAI"
	default:
		tag = "NEW TICKET"
	}
	return fmt.Sprintf("[%s] %s - #%s", tag, t.StoreName, t.ID)
}

func Body(t models.Ticket, typ models.EmailType) string {
	var b strings.Builder
	switch typ {
	case models.EmailScheduled:
		b.WriteString("Jadwal dan rencana pengerjaan untuk tiket ini telah diperbarui oleh Admin.\n\n")
	case models.EmailCompleted:
		b.WriteString("Pekerjaan perbaikan plafon telah selesai dilaksanakan dan tiket kini ditutup.\n\n")
	default:
		fmt.Fprintf(&b, "Ada 1 ticket yang masuk dari %s untuk perbaikan.\n\n", t.StoreName)
	}
	line := func(k, v string) { fmt.Fprintf(&b, "%-15s: %s\n", k, v) }
	line("ID Tiket", t.ID)
	line("Toko", t.StoreName)
	line("Indikator", t.Indicator)
	line("Level Resiko", t.RiskLevel)
	line("Dampak Bisnis", t.BusinessImpact)
	if typ != models.EmailNew {
		line("Departement", t.Department)
		line("PIC", t.PIC)
		line("Rencana tgl", t.PlannedDate)
		line("Target selesai", t.TargetDate)
	}
	if typ == models.EmailCompleted {
		line("Berita Acara", t.ClosureNote)
	}
	b.WriteString("\nFoto:\n")
	n := 0
	for _, u := range t.PhotoURLs {
		if models.IsResolvedPhoto(u) {
			n++
			fmt.Fprintf(&b, "  %d. %s\n", n, u)
		}
	}
	if n == 0 {
		b.WriteString("  (tidak ada foto)\n")
	}
	return b.String()
}
