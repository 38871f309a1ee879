package rbac_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/rbac/rbactest"
	"github.com/storecraft/backoffice/internal/shared"
)

func TestResolverLookupFallsBackToEmail(t *testing.T) {
	store := rbactest.NewStore()
	orderView := store.SeedPermission("order_view", "commerce")
	posView := store.SeedPermission("pos_view", "commerce")
	role := store.SeedRole("Cashier", "biz-1", false, orderView, posView)
	tenant := "biz-1"
	_, err := store.CreateUser(context.Background(), rbac.User{
		Email: "cashier@example.com", RoleID: role.ID, TenantID: &tenant,
		Type: rbac.UserTypeTenantStaff, Status: rbac.UserStatusActive,
	})
	require.NoError(t, err)
	store.UIDErr = errors.New("uid index unavailable")

	r := rbac.NewResolver(store, nil, nil)
	u, err := r.LookupUser(context.Background(), shared.Identity{UID: "uid-9", Email: "cashier@example.com"}, "biz-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, role.ID, u.RoleID)
	assert.Equal(t, []string{"order_view", "pos_view"}, sortedCopy(r.GetUserPermissions(context.Background(), u.RoleID)))
}

func TestResolverLookupReportsUIDErrorWhenEmailMisses(t *testing.T) {
	store := rbactest.NewStore()
	store.UIDErr = errors.New("boom")
	r := rbac.NewResolver(store, nil, nil)

	u, err := r.LookupUser(context.Background(), shared.Identity{UID: "uid-1", Email: "nobody@example.com"}, "biz-1")
	assert.Nil(t, u)
	assert.Error(t, err)
}

func TestResolverLookupSkipsInactiveUsers(t *testing.T) {
	store := rbactest.NewStore()
	tenant := "biz-1"
	_, err := store.CreateUser(context.Background(), rbac.User{
		AuthUID: "uid-1", Email: "s@example.com", RoleID: "r", TenantID: &tenant, Status: rbac.UserStatusSuspended,
	})
	require.NoError(t, err)
	r := rbac.NewResolver(store, nil, nil)

	u, err := r.LookupUser(context.Background(), shared.Identity{UID: "uid-1"}, "biz-1")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = r.LookupUser(context.Background(), shared.Identity{}, "biz-1")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestResolverLookupIsScopedToTenant(t *testing.T) {
	store := rbactest.NewStore()
	ctx := context.Background()
	bizA, bizB := "biz-a", "biz-b"
	adminA := store.SeedRole("Admin", bizA, false)
	clerkB := store.SeedRole("Clerk", bizB, false)
	global := store.SeedRole("Support", "", true)
	_, err := store.CreateUser(ctx, rbac.User{
		AuthUID: "uid-1", Email: "pat@example.com", RoleID: adminA.ID, TenantID: &bizA,
		Type: rbac.UserTypeTenantStaff, Status: rbac.UserStatusActive,
	})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, rbac.User{
		Email: "pat@example.com", RoleID: clerkB.ID, TenantID: &bizB,
		Type: rbac.UserTypeTenantStaff, Status: rbac.UserStatusActive,
	})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, rbac.User{
		AuthUID: "uid-ops", Email: "ops@example.com", RoleID: global.ID,
		Type: rbac.UserTypeSuperAdmin, Status: rbac.UserStatusActive,
	})
	require.NoError(t, err)
	r := rbac.NewResolver(store, nil, nil)
	pat := shared.Identity{UID: "uid-1", Email: "pat@example.com"}

	u, err := r.LookupUser(ctx, pat, bizA)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, adminA.ID, u.RoleID)

	u, err = r.LookupUser(ctx, pat, bizB)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, clerkB.ID, u.RoleID)

	u, err = r.LookupUser(ctx, pat, "biz-c")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = r.LookupUser(ctx, pat, "")
	require.NoError(t, err)
	assert.Nil(t, u)

	u, err = r.LookupUser(ctx, shared.Identity{UID: "uid-ops"}, bizB)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, global.ID, u.RoleID)
}

func TestResolverFailsSoftOnStoreError(t *testing.T) {
	store := rbactest.NewStore()
	store.LinksErr = errors.New("connection reset")
	r := rbac.NewResolver(store, nil, nil)

	assert.Equal(t, []string{}, r.GetUserPermissions(context.Background(), "role-1"))
	assert.False(t, r.CheckPermission(context.Background(), "role-1", "order_view", rbac.UserTypeTenantStaff).Allowed)
	assert.True(t, r.CheckAllPermissions(context.Background(), "role-1", nil, rbac.UserTypeTenantStaff).Allowed)

	_, err := r.RolePermissions(context.Background(), "role-1")
	assert.Error(t, err)
}

func TestResolverChecks(t *testing.T) {
	store := rbactest.NewStore()
	orderView := store.SeedPermission("order_view", "commerce")
	role := store.SeedRole("Viewer", "biz-1", false, orderView)
	r := rbac.NewResolver(store, nil, nil)
	ctx := context.Background()

	assert.True(t, r.CheckPermission(ctx, role.ID, "order_view", rbac.UserTypeTenantStaff).Allowed)
	assert.False(t, r.CheckPermission(ctx, role.ID, "pos_view", rbac.UserTypeTenantStaff).Allowed)
	assert.True(t, r.CheckAnyPermission(ctx, role.ID, []string{"pos_view", "order_view"}, rbac.UserTypeTenantStaff).Allowed)
	assert.False(t, r.CheckAllPermissions(ctx, role.ID, []string{"pos_view", "order_view"}, rbac.UserTypeTenantStaff).Allowed)
	assert.False(t, r.CheckAnyPermission(ctx, role.ID, nil, rbac.UserTypeTenantStaff).Allowed)
	assert.False(t, r.Check(ctx, role.ID, perm.HasOne("finance_reports"), rbac.UserTypeSuperAdmin).Allowed)
	assert.Equal(t, []string{}, r.GetUserPermissions(ctx, ""))
}

func TestResolverUsesCache(t *testing.T) {
	cache, _ := newRedisCache(t)
	store := rbactest.NewStore()
	orderView := store.SeedPermission("order_view", "commerce")
	role := store.SeedRole("Viewer", "biz-1", false, orderView)
	r := rbac.NewResolver(store, cache, nil)
	ctx := context.Background()

	first, err := r.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	calls := store.LinkCalls.Load()

	second, err := r.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, store.LinkCalls.Load())

	require.NoError(t, cache.Bump(ctx))
	_, err = r.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, calls+1, store.LinkCalls.Load())
}

func TestResolverConcurrentLoads(t *testing.T) {
	store := rbactest.NewStore()
	orderView := store.SeedPermission("order_view", "commerce")
	role := store.SeedRole("Viewer", "biz-1", false, orderView)
	r := rbac.NewResolver(store, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			keys, err := r.RolePermissions(context.Background(), role.ID)
			assert.NoError(t, err)
			assert.Equal(t, []string{"order_view"}, keys)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, store.LinkCalls.Load(), int64(16))
}

func TestResolverHonoursCancelledContext(t *testing.T) {
	store := rbactest.NewStore()
	r := rbac.NewResolver(store, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, []string{}, r.GetUserPermissions(ctx, "role-1"))
}

// toggleDuringLoad runs a role-permission write between the link read and the cache write.
type toggleDuringLoad struct {
	*rbactest.Store
	once   sync.Once
	toggle func()
}

func (s *toggleDuringLoad) GetPermissionsByIDs(ctx context.Context, ids []string) ([]rbac.Permission, error) {
	perms, err := s.Store.GetPermissionsByIDs(ctx, ids)
	s.once.Do(s.toggle)
	return perms, err
}

func TestResolverDoesNotCacheKeysRevokedDuringLoad(t *testing.T) {
	cache, _ := newRedisCache(t)
	inner := rbactest.NewStore()
	orderView := inner.SeedPermission("order_view", "commerce")
	posView := inner.SeedPermission("pos_view", "commerce")
	role := inner.SeedRole("Cashier", "biz-1", false, orderView, posView)
	svc := rbac.NewService(inner, cache, nil, nil)
	ctx := context.Background()

	store := &toggleDuringLoad{Store: inner}
	store.toggle = func() {
		_, err := svc.TogglePermission(ctx, rbac.Actor{UID: "owner-1", TenantID: "biz-1"}, role.ID, posView.ID, false)
		assert.NoError(t, err)
	}
	r := rbac.NewResolver(store, cache, nil)

	_, err := r.RolePermissions(ctx, role.ID)
	require.NoError(t, err)

	keys, err := r.RolePermissions(ctx, role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"order_view"}, keys)
}

// blockingLinks holds RolePermissionIDs until released and fails when its ctx is done by then.
type blockingLinks struct {
	*rbactest.Store
	entered     chan struct{}
	release     chan struct{}
	enteredOnce sync.Once
}

func (s *blockingLinks) RolePermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	s.enteredOnce.Do(func() { close(s.entered) })
	<-s.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.RolePermissionIDs(ctx, roleID)
}

func TestResolverSharedLoadSurvivesFirstCallerCancel(t *testing.T) {
	inner := rbactest.NewStore()
	orderView := inner.SeedPermission("order_view", "commerce")
	role := inner.SeedRole("Viewer", "biz-1", false, orderView)
	store := &blockingLinks{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	r := rbac.NewResolver(store, nil, nil)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.RolePermissions(first, role.ID)
		firstErr <- err
	}()
	<-store.entered
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan []string, 1)
	go func() {
		second <- r.GetUserPermissions(context.Background(), role.ID)
	}()
	time.Sleep(50 * time.Millisecond)
	close(store.release)

	select {
	case keys := <-second:
		assert.Equal(t, []string{"order_view"}, keys)
	case <-time.After(2 * time.Second):
		t.Fatal("joined caller never returned")
	}
}

func newRedisCache(t *testing.T) (*rbac.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return rbac.NewCache(client, time.Minute), mr
}

func sortedCopy(in []string) []string {
	return perm.NewSet(in...).Keys()
}
