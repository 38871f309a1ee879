package rbac_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/rbac/rbactest"
	"github.com/storecraft/backoffice/internal/shared"
)

type recordingAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.logs))
	for _, l := range a.logs {
		out = append(out, l.Action)
	}
	return out
}

type serviceFixture struct {
	store   *rbactest.Store
	audit   *recordingAudit
	svc     *rbac.Service
	actor   rbac.Actor
	perms   map[string]rbac.Permission
	manager rbac.Role
	system  rbac.Role
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	store := rbactest.NewStore()
	perms := map[string]rbac.Permission{}
	for _, key := range []string{"order_view", "order_edit", "pos_view", "product_view"} {
		perms[key] = store.SeedPermission(key, "commerce")
	}
	perms["settings_general"] = store.SeedPermission("settings_general", "store_settings")
	manager := store.SeedRole("Manager", "biz-1", false, perms["order_view"], perms["order_edit"], perms["pos_view"])
	system := store.SeedRole("Administrator", "", true, perms["order_view"])
	audit := &recordingAudit{}
	return serviceFixture{
		store:   store,
		audit:   audit,
		svc:     rbac.NewService(store, nil, audit, nil),
		actor:   rbac.Actor{UID: "owner-1", TenantID: "biz-1"},
		perms:   perms,
		manager: manager,
		system:  system,
	}
}

func (f serviceFixture) keys(t *testing.T, roleID string) []string {
	t.Helper()
	keys, err := rbac.NewResolver(f.store, nil, nil).RolePermissions(context.Background(), roleID)
	require.NoError(t, err)
	return sortedCopy(keys)
}

func TestTogglePermissionOffRemovesOnlyThatKey(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	require.Equal(t, []string{"order_edit", "order_view", "pos_view"}, f.keys(t, f.manager.ID))

	_, err := f.svc.TogglePermission(ctx, f.actor, f.manager.ID, f.perms["order_edit"].ID, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"order_view", "pos_view"}, f.keys(t, f.manager.ID))
	assert.Equal(t, []string{"order_view"}, f.keys(t, f.system.ID))
	assert.Equal(t, []string{"role.permission.toggle"}, f.audit.actions())
}

func TestTogglePermissionOnIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.TogglePermission(ctx, f.actor, f.manager.ID, f.perms["product_view"].ID, true)
	require.NoError(t, err)
	ids, err := f.svc.TogglePermission(ctx, f.actor, f.manager.ID, f.perms["product_view"].ID, true)
	require.NoError(t, err)

	assert.Len(t, ids, 4)
	assert.Equal(t, []string{"order_edit", "order_view", "pos_view", "product_view"}, f.keys(t, f.manager.ID))
}

func TestTogglePermissionBumpsCache(t *testing.T) {
	f := newServiceFixture(t)
	cache, _ := newRedisCache(t)
	svc := rbac.NewService(f.store, cache, nil, nil)
	resolver := rbac.NewResolver(f.store, cache, nil)
	ctx := context.Background()

	before, err := resolver.RolePermissions(ctx, f.manager.ID)
	require.NoError(t, err)
	assert.Contains(t, before, "pos_view")

	_, err = svc.TogglePermission(ctx, f.actor, f.manager.ID, f.perms["pos_view"].ID, false)
	require.NoError(t, err)

	after, err := resolver.RolePermissions(ctx, f.manager.ID)
	require.NoError(t, err)
	assert.NotContains(t, after, "pos_view")
}

func TestSystemRolesAreReadOnly(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.TogglePermission(ctx, f.actor, f.system.ID, f.perms["pos_view"].ID, true)
	assert.ErrorIs(t, err, rbac.ErrSystemRole)
	_, err = f.svc.UpdateRole(ctx, f.actor, f.system.ID, rbac.RoleInput{Name: "Root"})
	assert.ErrorIs(t, err, rbac.ErrSystemRole)
	assert.ErrorIs(t, f.svc.DeleteRole(ctx, f.actor, f.system.ID), rbac.ErrSystemRole)

	roles, err := f.svc.ListRoles(ctx, "biz-1")
	require.NoError(t, err)
	assert.Len(t, roles, 2)
}

func TestRolesAreTenantScoped(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	other := rbac.Actor{UID: "owner-2", TenantID: "biz-2"}

	_, err := f.svc.GetRole(ctx, other.TenantID, f.manager.ID)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	_, err = f.svc.TogglePermission(ctx, other, f.manager.ID, f.perms["pos_view"].ID, false)
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	role, err := f.svc.GetRole(ctx, other.TenantID, f.system.ID)
	require.NoError(t, err)
	assert.True(t, role.IsSystem)
}

func TestManagementRequiresBusiness(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	noBusiness := rbac.Actor{UID: "owner-1"}

	_, err := f.svc.CreateRole(ctx, noBusiness, rbac.RoleInput{Name: "Packer"})
	assert.ErrorIs(t, err, rbac.ErrNoTenant)
	_, err = f.svc.UpdateRole(ctx, noBusiness, f.manager.ID, rbac.RoleInput{Name: "Picker"})
	assert.ErrorIs(t, err, rbac.ErrNoTenant)
	assert.ErrorIs(t, f.svc.DeleteRole(ctx, noBusiness, f.manager.ID), rbac.ErrNoTenant)
	_, err = f.svc.TogglePermission(ctx, noBusiness, f.manager.ID, f.perms["pos_view"].ID, false)
	assert.ErrorIs(t, err, rbac.ErrNoTenant)
	_, err = f.svc.CreateUser(ctx, noBusiness, rbac.UserInput{Email: "a@example.com", RoleID: f.system.ID})
	assert.ErrorIs(t, err, rbac.ErrNoTenant)
	_, err = f.svc.UpdateUser(ctx, noBusiness, "user-1", rbac.UserUpdate{})
	assert.ErrorIs(t, err, rbac.ErrNoTenant)
	assert.Empty(t, f.audit.actions())
}

func TestRoleLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateRole(ctx, f.actor, rbac.RoleInput{Name: "   "})
	assert.ErrorIs(t, err, rbac.ErrValidation)

	role, err := f.svc.CreateRole(ctx, f.actor, rbac.RoleInput{Name: " Packer ", Description: "warehouse"})
	require.NoError(t, err)
	assert.Equal(t, "Packer", role.Name)
	require.NotNil(t, role.TenantID)
	assert.Equal(t, "biz-1", *role.TenantID)

	updated, err := f.svc.UpdateRole(ctx, f.actor, role.ID, rbac.RoleInput{Name: "Picker"})
	require.NoError(t, err)
	assert.Equal(t, "Picker", updated.Name)

	require.NoError(t, f.svc.DeleteRole(ctx, f.actor, role.ID))
	_, err = f.svc.GetRole(ctx, "biz-1", role.ID)
	assert.ErrorIs(t, err, rbac.ErrNotFound)
	assert.Equal(t, []string{"role.create", "role.update", "role.delete"}, f.audit.actions())
}

func TestPermissionGroups(t *testing.T) {
	f := newServiceFixture(t)

	groups, err := f.svc.PermissionGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "commerce", groups[0].Category)
	assert.Equal(t, "Commerce", groups[0].Label)
	assert.Len(t, groups[0].Permissions, 4)
	assert.Equal(t, "Store Settings", groups[1].Label)

	_, err = f.svc.EnsurePermission(context.Background(), rbac.Permission{Key: " "})
	assert.ErrorIs(t, err, rbac.ErrValidation)
}

func TestUserManagement(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, f.actor, rbac.UserInput{Email: "not-an-email", RoleID: f.manager.ID})
	assert.ErrorIs(t, err, rbac.ErrValidation)
	_, err = f.svc.CreateUser(ctx, f.actor, rbac.UserInput{Email: "a@example.com", RoleID: f.manager.ID, Type: rbac.UserTypeSuperAdmin})
	assert.ErrorIs(t, err, rbac.ErrValidation)

	invited, err := f.svc.CreateUser(ctx, f.actor, rbac.UserInput{Email: "a@example.com", RoleID: f.manager.ID})
	require.NoError(t, err)
	assert.Equal(t, rbac.UserStatusInvited, invited.Status)
	assert.Equal(t, rbac.UserTypeTenantStaff, invited.Type)

	active, err := f.svc.CreateUser(ctx, f.actor, rbac.UserInput{Email: "b@example.com", AuthUID: "uid-b", RoleID: f.system.ID})
	require.NoError(t, err)
	assert.Equal(t, rbac.UserStatusActive, active.Status)

	suspended := rbac.UserStatusSuspended
	updated, err := f.svc.UpdateUser(ctx, f.actor, active.ID, rbac.UserUpdate{Status: &suspended})
	require.NoError(t, err)
	assert.Equal(t, rbac.UserStatusSuspended, updated.Status)

	_, err = f.svc.UpdateUser(ctx, rbac.Actor{UID: "x", TenantID: "biz-2"}, active.ID, rbac.UserUpdate{Status: &suspended})
	assert.ErrorIs(t, err, rbac.ErrNotFound)

	users, page, err := f.svc.ListUsers(ctx, "biz-1", 1, 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}
