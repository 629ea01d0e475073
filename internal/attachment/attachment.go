// Package attachment turns inline photo payloads into hosted URLs before a
// ticket is written to the remote store.
package attachment

import (
	"context"
	"fmt"

	"leakdesk/internal/identity"
	"leakdesk/internal/models"
)

// Store uploads one inline payload and returns the hosted URL, or
// apperr.UploadFailed when the upload did not go through. It never
// returns an error: a failed photo must not block the ticket.
type Store interface {
	Upload(ctx context.Context, payload, group, name string) string
}

// Passthrough leaves payloads as they are; the remote store uploads
// inline photos itself when it receives them.
type Passthrough struct{}

func (Passthrough) Upload(_ context.Context, payload, _, _ string) string { return payload }

// FileName is the object name for the i-th photo (0-based) of a ticket.
func FileName(ticketID string, i int, stamp int64) string {
	return fmt.Sprintf("IMG_%s_%d_%d", identity.Normalize(ticketID), i+1, stamp)
}

// ResolvePhotos uploads every inline payload of t into the folder of its
// store and returns the resulting photo list. Resolved URLs and failure
// markers are kept unchanged. stamp makes object names unique per submit.
func ResolvePhotos(ctx context.Context, s Store, t models.Ticket, stamp int64) []string {
	out := make([]string, len(t.PhotoURLs))
	group := identity.Normalize(t.StoreName)
	for i, p := range t.PhotoURLs {
		if !models.IsInlinePhoto(p) {
			out[i] = p
			continue
		}
		out[i] = s.Upload(ctx, p, group, FileName(t.ID, i, stamp))
	}
	return out
}

// HasInline reports whether any photo still waits for upload.
func HasInline(photos []string) bool {
	for _, p := range photos {
		if models.IsInlinePhoto(p) {
			return true
		}
	}
	return false
}
