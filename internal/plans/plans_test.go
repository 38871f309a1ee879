package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/shared"
)

func TestPermissionsUnknownPlanIsEmpty(t *testing.T) {
	assert.Empty(t, Permissions("platinum"))
	assert.NotNil(t, Permissions("platinum"))
	assert.False(t, Known("platinum"))
	assert.False(t, HasPermission("platinum", shared.PermOrderView))
	assert.False(t, HasAllPermissions("platinum", nil))
	assert.False(t, Satisfies("", perm.HasAll()))
}

func TestBasicPlanDoesNotGrantFinanceReports(t *testing.T) {
	assert.True(t, Known("Basic"))
	assert.True(t, HasPermission("basic", shared.PermOrderView))
	assert.False(t, HasPermission("basic", shared.PermFinanceReports))
	assert.True(t, HasAnyPermission("basic", []string{shared.PermFinanceReports, shared.PermOrderEdit}))
	assert.False(t, HasAllPermissions("basic", []string{shared.PermFinanceReports, shared.PermOrderEdit}))
}

func TestPlansAreCumulative(t *testing.T) {
	tiers := []Type{Free, Basic, Pro, Enterprise}
	for i := 1; i < len(tiers); i++ {
		lower := Permissions(string(tiers[i-1]))
		assert.True(t, HasAllPermissions(string(tiers[i]), lower), "%s should include %s", tiers[i], tiers[i-1])
		assert.Greater(t, len(Permissions(string(tiers[i]))), len(lower))
	}
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies("enterprise", perm.HasOne(shared.PermFinanceReports)))
	assert.False(t, Satisfies("pro", perm.HasOne(shared.PermFinanceReports)))
	assert.True(t, Satisfies("pro", perm.HasAll(shared.PermPOSView, shared.PermOrderView)))
}
