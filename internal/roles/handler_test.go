package roles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/catalog"
	"github.com/storecraft/backoffice/internal/guard"
	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/rbac/rbactest"
	"github.com/storecraft/backoffice/internal/shared"
)

type fakeRefresher struct{ ids []string }

func (f *fakeRefresher) Refresh(_ context.Context, id string) (*access.Session, error) {
	f.ids = append(f.ids, id)
	return nil, nil
}

type fakeEnqueuer struct{ roles []string }

func (f *fakeEnqueuer) EnqueueRoleWarmup(_ context.Context, roleID string) error {
	f.roles = append(f.roles, roleID)
	return nil
}

type fixture struct {
	router    http.Handler
	store     *rbactest.Store
	refresher *fakeRefresher
	enqueuer  *fakeEnqueuer
	role      rbac.Role
	system    rbac.Role
	perms     map[string]rbac.Permission
}

func newFixture(t *testing.T, bc *business.Context) fixture {
	t.Helper()
	store := rbactest.NewStore()
	perms := map[string]rbac.Permission{
		"order_view": store.SeedPermission("order_view", "commerce"),
		"pos_view":   store.SeedPermission("pos_view", "commerce"),
	}
	role := store.SeedRole("Cashier", "biz-1", false, perms["order_view"], perms["pos_view"])
	system := store.SeedRole("Administrator", "", true, perms["order_view"])

	agg := access.NewAggregator(nil, nil, access.DefaultSources(nil)...)
	g := guard.New(catalog.Default(), agg, nil)
	sess := access.NewSession("sid", shared.Identity{UID: "owner-1"}, bc, nil)
	refresher := &fakeRefresher{}
	enqueuer := &fakeEnqueuer{}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(access.ContextWithSession(r.Context(), sess)))
		})
	})
	svc := rbac.NewService(store, nil, nil, nil)
	router.Route("/api/roles", NewHandler(nil, svc, g, refresher, enqueuer).MountRoutes)
	return fixture{router: router, store: store, refresher: refresher, enqueuer: enqueuer, role: role, system: system, perms: perms}
}

func ownerContext() *business.Context {
	return &business.Context{BusinessID: "biz-1", Role: business.RoleOwner, Plan: business.Plan{Type: "enterprise"}}
}

func (f fixture) do(method, target, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestTogglePermissionRefreshesAndWarms(t *testing.T) {
	f := newFixture(t, ownerContext())

	rr := f.do(http.MethodPost, "/api/roles/"+f.role.ID+"/permissions/"+f.perms["pos_view"].ID, `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body struct {
		PermissionIDs []string `json:"permission_ids"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, []string{f.perms["order_view"].ID}, body.PermissionIDs)
	assert.Equal(t, []string{"sid"}, f.refresher.ids)
	assert.Equal(t, []string{f.role.ID}, f.enqueuer.roles)

	ids, err := f.store.RolePermissionIDs(context.Background(), f.role.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{f.perms["order_view"].ID}, ids)
}

func TestToggleRequiresEnabledFlag(t *testing.T) {
	f := newFixture(t, ownerContext())

	rr := f.do(http.MethodPost, "/api/roles/"+f.role.ID+"/permissions/"+f.perms["pos_view"].ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, f.refresher.ids)
}

func TestSystemRoleEditsAreForbidden(t *testing.T) {
	f := newFixture(t, ownerContext())

	rr := f.do(http.MethodPost, "/api/roles/"+f.system.ID+"/permissions/"+f.perms["pos_view"].ID, `{"enabled":true}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	rr = f.do(http.MethodDelete, "/api/roles/"+f.system.ID, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, f.enqueuer.roles)
}

func TestRoleCRUD(t *testing.T) {
	f := newFixture(t, ownerContext())

	rr := f.do(http.MethodPost, "/api/roles/", `{"name":"Packer","description":"warehouse"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created rbac.Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = f.do(http.MethodPut, "/api/roles/"+created.ID, `{"name":"Picker"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/api/roles/"+created.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var detail RoleDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, "Picker", detail.Name)
	assert.Empty(t, detail.PermissionIDs)

	rr = f.do(http.MethodGet, "/api/roles/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Administrator")

	rr = f.do(http.MethodGet, "/api/roles/permissions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"label":"Commerce"`)

	rr = f.do(http.MethodDelete, "/api/roles/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = f.do(http.MethodGet, "/api/roles/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRolesRequireRolesManage(t *testing.T) {
	staff := &business.Context{BusinessID: "biz-1", Role: "staff", StaffPermissions: perm.NewSet(shared.PermOrderView)}
	f := newFixture(t, staff)

	rr := f.do(http.MethodGet, "/api/roles/", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	manager := &business.Context{BusinessID: "biz-1", Role: "staff", StaffPermissions: perm.NewSet(shared.PermRolesManage)}
	f = newFixture(t, manager)
	rr = f.do(http.MethodGet, "/api/roles/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}
