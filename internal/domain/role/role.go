// internal/domain/role/role.go
package role

import (
	"regexp"
	"strings"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/system"
)

// Role is a privilege level, most privileged first.
type Role string

const (
	A1 Role = "A1"
	A2 Role = "A2"
	A3 Role = "A3"
	A4 Role = "A4"
)

// Ordered lists every role from most to least privileged.
var Ordered = []Role{A1, A2, A3, A4}

var tokenPattern = regexp.MustCompile(`A[1-4]`)

func (r Role) rank() int {
	for i, o := range Ordered {
		if o == r {
			return i
		}
	}
	return -1
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.rank() >= 0
}

// Dominates returns r plus every less privileged role. Unknown roles dominate nothing.
func Dominates(r Role) []Role {
	i := r.rank()
	if i < 0 {
		return nil
	}
	out := make([]Role, len(Ordered)-i)
	copy(out, Ordered[i:])
	return out
}

// Covers reports whether holding r grants target.
func Covers(r, target Role) bool {
	ri, ti := r.rank(), target.rank()
	return ri >= 0 && ti >= 0 && ri <= ti
}

// Parse accepts a role token exactly (surrounding spaces and case ignored).
func Parse(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Extract returns the first role token found in s, defaulting to the least
// privileged role when none is present.
func Extract(s string) Role {
	if m := tokenPattern.FindString(strings.ToUpper(s)); m != "" {
		return Role(m)
	}
	return A4
}

// IsTopTier reports whether r is one of the two most privileged roles.
func IsTopTier(r Role) bool {
	return r == A1 || r == A2
}

func grants(c identity.Company) bool {
	return c.CompanyActive && c.UserActive
}

// CanAccessSystem is true when, for some permission, the user holds a role in
// that permission's company that covers the permission's role.
func CanAccessSystem(companies []identity.Company, permissions []system.Permission) bool {
	for _, p := range permissions {
		want, ok := Parse(p.Role)
		if !ok {
			continue
		}
		for _, c := range companies {
			if c.Name != p.Company || !grants(c) {
				continue
			}
			for _, raw := range c.Roles {
				held, ok := Parse(raw)
				if ok && Covers(held, want) {
					return true
				}
			}
		}
	}
	return false
}

// CanConfigure is true when the user holds A1 or A2 in at least one company.
func CanConfigure(companies []identity.Company) bool {
	for _, c := range companies {
		if !grants(c) {
			continue
		}
		for _, raw := range c.Roles {
			if IsTopTier(Extract(raw)) {
				return true
			}
		}
	}
	return false
}

// CanEditSystem requires, for some permission of sys, membership in the
// permission's company whose primary role string contains the permission's
// role and extracts to A1 or A2. Secondary role strings do not count.
func CanEditSystem(companies []identity.Company, sys *system.SecondarySystem) bool {
	if sys == nil {
		return false
	}
	for _, p := range sys.Permissions {
		token := strings.TrimSpace(p.Role)
		if token == "" {
			continue
		}
		for _, c := range companies {
			if c.Name != p.Company || !grants(c) || len(c.Roles) == 0 {
				continue
			}
			primary := c.Roles[0]
			if strings.Contains(primary, token) && IsTopTier(Extract(primary)) {
				return true
			}
		}
	}
	return false
}

// CanUseRelays gates the derived-login launcher: A1, A2 or A3 in some company.
func CanUseRelays(companies []identity.Company) bool {
	for _, c := range companies {
		if !grants(c) {
			continue
		}
		for _, raw := range c.Roles {
			if Covers(Extract(raw), A3) {
				return true
			}
		}
	}
	return false
}
