// Package reconcile merges a freshly polled snapshot into the local ticket
// list.
//
// The result always holds everything the server confirmed plus anything
// created locally that the server has not reflected yet. Snapshot entries
// come first, in server order, followed by the surviving local-only
// entries in their existing order. A snapshot entry replaces any local
// entry with the same normalized ID wholesale; fields are never merged.
package reconcile

import (
	"leakdesk/internal/models"
)

// Result describes one merge.
type Result struct {
	Tickets   []models.Ticket
	Confirmed int // entries taken from the snapshot
	LocalOnly int // local entries retained because the server has not seen them
	Replaced  int // local entries discarded in favour of the snapshot version
}

// Merge never mutates its inputs.
func Merge(local, snapshot []models.Ticket) Result {
	seen := make(map[string]struct{}, len(snapshot))
	for _, t := range snapshot {
		seen[t.Key()] = struct{}{}
	}

	out := make([]models.Ticket, 0, len(snapshot)+len(local))
	for _, t := range snapshot {
		out = append(out, t.Clone())
	}

	res := Result{Confirmed: len(snapshot)}
	for _, t := range local {
		if _, ok := seen[t.Key()]; ok {
			res.Replaced++
			continue
		}
		out = append(out, t.Clone())
		res.LocalOnly++
	}
	res.Tickets = out
	return res
}

// LocalOnly lists the IDs in local that snapshot does not contain.
func LocalOnly(local, snapshot []models.Ticket) []string {
	seen := make(map[string]struct{}, len(snapshot))
	for _, t := range snapshot {
		seen[t.Key()] = struct{}{}
	}
	var ids []string
	for _, t := range local {
		if _, ok := seen[t.Key()]; !ok {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
