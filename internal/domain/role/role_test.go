package role

import (
	"testing"

	"ledroitcheck-service/internal/domain/identity"
	"ledroitcheck-service/internal/domain/system"

	"github.com/stretchr/testify/assert"
)

func company(name string, roles ...string) identity.Company {
	return identity.Company{Name: name, CompanyActive: true, UserActive: true, Roles: roles}
}

func TestDominates(t *testing.T) {
	for i, r := range Ordered {
		got := Dominates(r)
		for j, o := range Ordered {
			if j >= i {
				assert.Contains(t, got, o, "%s should dominate %s", r, o)
			} else {
				assert.NotContains(t, got, o, "%s should not dominate %s", r, o)
			}
		}
	}
	assert.Equal(t, []Role{A1, A2, A3, A4}, Dominates(A1))
	assert.Equal(t, []Role{A4}, Dominates(A4))
	assert.Nil(t, Dominates(Role("A9")))
}

func TestExtract(t *testing.T) {
	assert.Equal(t, A2, Extract("A2"))
	assert.Equal(t, A1, Extract("rol-a1-admin"))
	assert.Equal(t, A3, Extract("A3/A1"))
	assert.Equal(t, A4, Extract("supervisor"))
	assert.Equal(t, A4, Extract(""))
}

func TestParse(t *testing.T) {
	r, ok := Parse(" a2 ")
	assert.True(t, ok)
	assert.Equal(t, A2, r)

	_, ok = Parse("A2 admin")
	assert.False(t, ok)
	_, ok = Parse("")
	assert.False(t, ok)
}

func TestCanAccessSystem(t *testing.T) {
	user := []identity.Company{company("ACME", "A2")}

	assert.True(t, CanAccessSystem(user, []system.Permission{{Company: "ACME", Role: "A3"}}))
	assert.True(t, CanAccessSystem(user, []system.Permission{{Company: "ACME", Role: "A2"}}))
	assert.False(t, CanAccessSystem(user, []system.Permission{{Company: "ACME", Role: "A1"}}))
	assert.False(t, CanAccessSystem(user, []system.Permission{{Company: "GLOBEX", Role: "A4"}}))
}

func TestCanAccessSystem_EmptyPermissionsDenyEveryone(t *testing.T) {
	users := [][]identity.Company{
		nil,
		{company("ACME", "A1")},
		{company("ACME", "A1"), company("GLOBEX", "A1", "A2")},
	}
	for _, u := range users {
		assert.False(t, CanAccessSystem(u, nil))
		assert.False(t, CanAccessSystem(u, []system.Permission{}))
	}
}

func TestCanAccessSystem_RolesAreScopedPerCompany(t *testing.T) {
	user := []identity.Company{company("ACME", "A1"), company("GLOBEX", "A4")}
	assert.False(t, CanAccessSystem(user, []system.Permission{{Company: "GLOBEX", Role: "A3"}}))
}

func TestCanAccessSystem_MalformedOrInactiveContributesNothing(t *testing.T) {
	perms := []system.Permission{{Company: "ACME", Role: "A4"}}

	assert.False(t, CanAccessSystem([]identity.Company{company("ACME")}, perms))
	assert.False(t, CanAccessSystem([]identity.Company{company("ACME", "jefe")}, perms))

	inactive := company("ACME", "A1")
	inactive.UserActive = false
	assert.False(t, CanAccessSystem([]identity.Company{inactive}, perms))

	closed := company("ACME", "A1")
	closed.CompanyActive = false
	assert.False(t, CanAccessSystem([]identity.Company{closed}, perms))
}

func TestCanConfigure(t *testing.T) {
	assert.False(t, CanConfigure(nil))
	assert.False(t, CanConfigure([]identity.Company{}))
	assert.True(t, CanConfigure([]identity.Company{company("ACME", "A1")}))
	assert.True(t, CanConfigure([]identity.Company{company("ACME", "A4"), company("GLOBEX", "A2")}))
	assert.False(t, CanConfigure([]identity.Company{company("ACME", "A3", "A4")}))
	assert.False(t, CanConfigure([]identity.Company{company("ACME", "sin rol")}))
}

func TestCanEditSystem(t *testing.T) {
	sys := &system.SecondarySystem{Permissions: []system.Permission{{Company: "ACME", Role: "A2"}}}

	assert.True(t, CanEditSystem([]identity.Company{company("ACME", "A2")}, sys))
	// A1 does not contain the literal token A2.
	assert.False(t, CanEditSystem([]identity.Company{company("ACME", "A1")}, sys))
	assert.False(t, CanEditSystem([]identity.Company{company("GLOBEX", "A2")}, sys))

	lowPerm := &system.SecondarySystem{Permissions: []system.Permission{{Company: "ACME", Role: "A3"}}}
	// A3 could access it, but editing needs A1 or A2.
	assert.True(t, CanAccessSystem([]identity.Company{company("ACME", "A3")}, lowPerm.Permissions))
	assert.False(t, CanEditSystem([]identity.Company{company("ACME", "A3")}, lowPerm))

	topPerm := &system.SecondarySystem{Permissions: []system.Permission{{Company: "ACME", Role: "A1"}}}
	// Only the primary role counts.
	assert.False(t, CanEditSystem([]identity.Company{company("ACME", "A3", "A1")}, topPerm))
	assert.True(t, CanEditSystem([]identity.Company{company("ACME", "A1", "A3")}, topPerm))
	assert.False(t, CanEditSystem([]identity.Company{company("ACME")}, topPerm))

	assert.False(t, CanEditSystem([]identity.Company{company("ACME", "A1")}, nil))
	assert.False(t, CanEditSystem([]identity.Company{company("ACME", "A1")}, &system.SecondarySystem{}))
}

func TestCanUseRelays(t *testing.T) {
	assert.True(t, CanUseRelays([]identity.Company{company("ACME", "A3")}))
	assert.False(t, CanUseRelays([]identity.Company{company("ACME", "A4")}))
	assert.False(t, CanUseRelays(nil))
}
