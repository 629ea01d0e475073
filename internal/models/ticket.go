package models

import (
	"strings"
	"time"

	"leakdesk/internal/identity"
)

// Unset marks a scalar field that has not been filled in yet. The remote
// spreadsheet writes it into every empty cell, so it is never a payload.
const Unset = "-"

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusOnProgress Status = "ON_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	// StatusRejected is reserved; nothing transitions into it.
	StatusRejected Status = "REJECTED"
)

type Urgency string

const (
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// EmailType tags a mutation with the notification it should trigger.
type EmailType string

const (
	EmailNew       EmailType = "NEW"
	EmailScheduled EmailType = "SCHEDULED"
	EmailCompleted EmailType = "COMPLETED"
)

type Ticket struct {
	ID             string   `json:"id"`
	StoreID        string   `json:"tokoId"`
	StoreName      string   `json:"tokoName"`
	Date           string   `json:"date"`
	Location       string   `json:"location"`
	Description    string   `json:"description"`
	Indicator      string   `json:"indicator"`
	RiskLevel      string   `json:"riskLevel"`
	BusinessImpact string   `json:"businessImpact"`
	Recommendation string   `json:"recommendation"`
	Urgency        Urgency  `json:"urgency"`
	Status         Status   `json:"status"`
	PhotoURLs      []string `json:"photoUrls"`
	Department     string   `json:"department"`
	PIC            string   `json:"pic"`
	PlannedDate    string   `json:"plannedDate"`
	TargetDate     string   `json:"targetDate"`
	CompletionDate string   `json:"completionDate"`
	ClosureNote    string   `json:"beritaAcara"`
	UpdatedAt      string   `json:"updatedAt"`
}

// IsSet reports whether v carries a real value rather than the sentinel.
func IsSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != Unset
}

func orUnset(v string) string {
	if !IsSet(v) {
		return Unset
	}
	return strings.TrimSpace(v)
}

// Normalize replaces empty scalar fields with Unset and upper-cases the
// enum fields. Snapshot rows and drafts both pass through it before they
// reach the cache.
func (t *Ticket) Normalize() {
	t.ID = strings.TrimSpace(t.ID)
	for _, f := range []*string{
		&t.StoreID, &t.StoreName, &t.Date, &t.Location, &t.Description,
		&t.Indicator, &t.RiskLevel, &t.BusinessImpact, &t.Recommendation,
		&t.Department, &t.PIC, &t.PlannedDate, &t.TargetDate,
		&t.CompletionDate, &t.ClosureNote, &t.UpdatedAt,
	} {
		*f = orUnset(*f)
	}
	t.Status = Status(strings.ToUpper(strings.TrimSpace(string(t.Status))))
	if t.Status == "" {
		t.Status = StatusPending
	}
	t.Urgency = Urgency(strings.ToUpper(strings.TrimSpace(string(t.Urgency))))
	if t.Urgency == "" {
		t.Urgency = UrgencyMedium
	}
	if t.PhotoURLs == nil {
		t.PhotoURLs = []string{}
	}
}

// Key is the canonical identity used for reconciliation.
func (t Ticket) Key() string { return identity.Normalize(t.ID) }

// Clone returns a copy that does not share the photo slice.
func (t Ticket) Clone() Ticket {
	c := t
	if t.PhotoURLs != nil {
		c.PhotoURLs = append(make([]string, 0, len(t.PhotoURLs)), t.PhotoURLs...)
	}
	return c
}

func (t Ticket) BelongsTo(storeID string) bool {
	return identity.Equal(t.StoreID, storeID)
}

// Terminal reports whether no further transition is possible.
func (t Ticket) Terminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusRejected
}

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = time.RFC3339
)

var dateLayouts = []string{
	time.RFC3339,
	DateLayout,
	"2006-01-02 15:04:05",
	"02 Jan 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// ParseDate accepts the date renderings found in the spreadsheet. The
// second return is false for Unset or unparseable values. Dates without
// a zone are taken as UTC.
func ParseDate(v string) (time.Time, bool) { return ParseDateIn(v, time.UTC) }

// ParseDateIn is ParseDate with zoneless dates read in loc, so that a
// bare calendar day starts at local midnight.
func ParseDateIn(v string, loc *time.Location) (time.Time, bool) {
	if !IsSet(v) {
		return time.Time{}, false
	}
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, v, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Photo values are either an inline data URL waiting for upload, a
// resolved link, or apperr.UploadFailed.
func IsInlinePhoto(v string) bool { return strings.HasPrefix(v, "data:") }

func IsResolvedPhoto(v string) bool {
	return strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://")
}
