package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/shared"
)

func newTestRegistry() (*Registry, *stubBusinesses, *stubUsers) {
	businesses := &stubBusinesses{contexts: map[string]*business.Context{
		"biz-1": staffContext(shared.PermOrderView),
		"biz-2": ownerContext("pro"),
	}}
	users := &stubUsers{user: rbacUser("cashier")}
	return NewRegistry(businesses, users, nil), businesses, users
}

func TestRegistryOpenAndSwitchBusiness(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	first, err := reg.Open(ctx, "sid", identity, "biz-1")
	require.NoError(t, err)
	assert.False(t, first.IsOwner())
	assert.Equal(t, "biz-1", first.BusinessID())

	second, err := reg.Open(ctx, "sid", identity, "biz-2")
	require.NoError(t, err)
	assert.True(t, second.IsOwner())
	assert.True(t, first.Disposed())
	assert.Nil(t, first.Business())
	assert.Equal(t, 1, reg.Len())

	got, ok := reg.Get("sid")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegistryOpenErrors(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	_, err := reg.Open(ctx, "sid", shared.Identity{}, "biz-1")
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = reg.Open(ctx, "sid", identity, "missing")
	assert.ErrorIs(t, err, business.ErrBusinessNotFound)
	assert.Zero(t, reg.Len())

	sess, err := reg.Open(ctx, "sid", identity, "")
	require.NoError(t, err)
	assert.Nil(t, sess.Business())
}

func TestRegistryEnsureReusesMatchingSession(t *testing.T) {
	reg, businesses, _ := newTestRegistry()
	ctx := context.Background()

	a, err := reg.Ensure(ctx, "sid", identity, "biz-1")
	require.NoError(t, err)
	b, err := reg.Ensure(ctx, "sid", identity, "biz-1")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, businesses.calls)

	c, err := reg.Ensure(ctx, "sid", identity, "biz-2")
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	assert.True(t, a.Disposed())
}

func TestRegistryRefreshReloadsState(t *testing.T) {
	reg, businesses, users := newTestRegistry()
	ctx := context.Background()

	sess, err := reg.Open(ctx, "sid", identity, "biz-1")
	require.NoError(t, err)
	u, err := sess.RBACUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cashier", u.RoleID)
	_, _ = sess.RBACUser(ctx)
	assert.Equal(t, 1, users.calls)

	ticket := sess.BeginNavigation()
	businesses.contexts["biz-1"] = staffContext(shared.PermOrderView, shared.PermPOSView)
	users.user = rbacUser("manager")

	refreshed, err := reg.Refresh(ctx, "sid")
	require.NoError(t, err)
	assert.Same(t, sess, refreshed)
	assert.True(t, sess.Business().StaffPermissions.Has(shared.PermPOSView))
	assert.False(t, sess.Current(ticket))

	u, err = sess.RBACUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "manager", u.RoleID)

	_, err = reg.Refresh(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRegistryRefreshBusiness(t *testing.T) {
	reg, businesses, _ := newTestRegistry()
	ctx := context.Background()
	other := shared.Identity{UID: "uid-2", Email: "other@example.com"}

	_, err := reg.Open(ctx, "a", identity, "biz-1")
	require.NoError(t, err)
	_, err = reg.Open(ctx, "b", other, "biz-1")
	require.NoError(t, err)
	_, err = reg.Open(ctx, "c", other, "biz-2")
	require.NoError(t, err)

	assert.Equal(t, 2, reg.RefreshBusiness(ctx, "biz-1"))

	businesses.err = errStoreDown
	assert.Equal(t, 0, reg.RefreshBusiness(ctx, "biz-1"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDisposeAndSweep(t *testing.T) {
	reg, _, _ := newTestRegistry()
	ctx := context.Background()

	sess, err := reg.Open(ctx, "sid", identity, "biz-1")
	require.NoError(t, err)
	reg.Dispose("sid")
	reg.Dispose("sid")
	assert.True(t, sess.Disposed())
	_, ok := reg.Get("sid")
	assert.False(t, ok)

	idle, err := reg.Open(ctx, "idle", identity, "biz-1")
	require.NoError(t, err)
	idle.mu.Lock()
	idle.lastSeen = time.Now().Add(-2 * time.Hour)
	idle.mu.Unlock()
	_, err = reg.Open(ctx, "fresh", identity, "biz-1")
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Sweep(time.Hour))
	assert.True(t, idle.Disposed())
	assert.Equal(t, 1, reg.Len())
}

func TestSessionNavigationTickets(t *testing.T) {
	sess := NewSession("sid", identity, staffContext(), nil)

	first := sess.BeginNavigation()
	assert.True(t, sess.Current(first))
	second := sess.BeginNavigation()
	assert.False(t, sess.Current(first))
	assert.True(t, sess.Current(second))

	sess.Dispose()
	assert.False(t, sess.Current(second))
}

func TestSessionRBACLookupErrorsAreRetried(t *testing.T) {
	users := &stubUsers{err: errStoreDown}
	sess := NewSession("sid", identity, nil, users)
	ctx := context.Background()

	_, err := sess.RBACUser(ctx)
	assert.ErrorIs(t, err, errStoreDown)

	users.err = nil
	users.user = rbacUser("cashier")
	u, err := sess.RBACUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cashier", u.RoleID)
	assert.Equal(t, 2, users.calls)
}
