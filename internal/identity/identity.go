// Package identity canonicalizes record and account identifiers.
//
// Identifiers come from free-form spreadsheet cells and drift in casing and
// surrounding whitespace between rows. Every equality check between two
// tickets, or between a ticket's store and an account, goes through here.
package identity

import "strings"

// Normalize trims surrounding whitespace and uppercases s.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// Equal compares two identifiers in canonical form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
