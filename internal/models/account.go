package models

import (
	"strings"

	"leakdesk/internal/identity"
)

type Role string

const (
	RoleStore Role = "STORE"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps the free-form role cell to a role tag. Anything that
// mentions ADMIN is an administrator; every other tag (TOKO, OUTLET,
// PELAPOR, ...) is a store.
func ParseRole(v string) Role {
	if strings.Contains(strings.ToUpper(v), "ADMIN") {
		return RoleAdmin
	}
	return RoleStore
}

type Account struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Role            Role   `json:"role"`
	Credential      string `json:"-"`
	Email           string `json:"email,omitempty"`
	EscalationEmail string `json:"amEmail,omitempty"`
}

func (a Account) IsAdmin() bool { return a.Role == RoleAdmin }

// ShortName drops the trailing " (ROLE)" suffix the directory carries,
// e.g. "BRAM (ADMIN)" -> "BRAM".
func (a Account) ShortName() string {
	name := a.Name
	if i := strings.Index(name, " ("); i > 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

func (a Account) Is(id string) bool { return identity.Equal(a.ID, id) }
