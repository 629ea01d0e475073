package repository

type JournalFilter struct {
	TicketID string
	Outcome  string // synced|failed
	Limit    int
	Offset   int
}

// Clamp applies the paging defaults shared by every implementation.
func (f JournalFilter) Clamp() JournalFilter {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
