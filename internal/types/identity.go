package types

import (
	"fmt"
	"sort"
	"time"
)

type Role string

const (
	RoleOperator    Role = "operator"
	RoleIT          Role = "it"
	RoleMaintenance Role = "maintenance"
	RoleCleaning    Role = "cleaning"
	RoleQuality     Role = "quality"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleOperator, RoleIT, RoleMaintenance, RoleCleaning, RoleQuality:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q: %w", s, ErrValidation)
}

// Capability is one of the fixed permission flags understood by the presentation layer.
type Capability string

const (
	CapDashboard   Capability = "dashboard"
	CapOperator    Capability = "operator"
	CapIT          Capability = "it"
	CapMaintenance Capability = "maintenance"
	CapCleaning    Capability = "cleaning"
	CapQuality     Capability = "quality"
	CapReports     Capability = "reports"
)

var AllCapabilities = []Capability{
	CapDashboard, CapOperator, CapIT, CapMaintenance, CapCleaning, CapQuality, CapReports,
}

func ParseCapability(s string) (Capability, error) {
	for _, c := range AllCapabilities {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown capability %q: %w", s, ErrValidation)
}

// Permissions maps capability to granted flag.
type Permissions map[Capability]bool

// ParsePermissions converts raw flags, rejecting any key outside the capability set.
func ParsePermissions(raw map[string]bool) (Permissions, error) {
	perms := make(Permissions, len(raw))
	for k, v := range raw {
		c, err := ParseCapability(k)
		if err != nil {
			return nil, err
		}
		perms[c] = v
	}
	return perms, nil
}

func (p Permissions) Has(c Capability) bool {
	return p[c]
}

func (p Permissions) Clone() Permissions {
	if p == nil {
		return nil
	}
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge returns the union of granted flags of p and other.
func (p Permissions) Merge(other Permissions) Permissions {
	out := p.Clone()
	if out == nil {
		out = Permissions{}
	}
	for k, v := range other {
		if v {
			out[k] = true
		} else if _, ok := out[k]; !ok {
			out[k] = false
		}
	}
	return out
}

// Granted lists the capabilities set to true, sorted.
func (p Permissions) Granted() []Capability {
	out := make([]Capability, 0, len(p))
	for k, v := range p {
		if v {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type User struct {
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	DisplayName  string      `json:"display_name"`
	Email        string      `json:"email"`
	Role         Role        `json:"role"`
	Active       bool        `json:"active"`
	Group        *string     `json:"group,omitempty"`
	Grants       Permissions `json:"grants"`
	Permissions  Permissions `json:"permissions"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Group != nil {
		g := *u.Group
		c.Group = &g
	}
	c.Grants = u.Grants.Clone()
	c.Permissions = u.Permissions.Clone()
	return &c
}

type Group struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Color       string      `json:"color"`
	Permissions Permissions `json:"permissions"`
}

func (g *Group) Clone() *Group {
	if g == nil {
		return nil
	}
	c := *g
	c.Permissions = g.Permissions.Clone()
	return &c
}

// Actor is the authenticated identity behind a request.
type Actor struct {
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        Role        `json:"role"`
	Permissions Permissions `json:"permissions"`
}
