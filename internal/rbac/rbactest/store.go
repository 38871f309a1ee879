// Package rbactest provides an in-memory rbac.Store for tests.
package rbactest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/storecraft/backoffice/internal/rbac"
)

// Store is a concurrency-safe in-memory rbac.Store.
type Store struct {
	mu        sync.Mutex
	roles     map[string]rbac.Role
	perms     map[string]rbac.Permission
	links     map[string][]string
	users     map[string]rbac.User
	seq       int
	LinkCalls atomic.Int64

	UIDErr   error
	LinksErr error
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		roles: map[string]rbac.Role{},
		perms: map[string]rbac.Permission{},
		links: map[string][]string{},
		users: map[string]rbac.User{},
	}
}

func (m *Store) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *Store) ListRoles(_ context.Context, tenantID string) ([]rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.Role
	for _, r := range m.roles {
		if r.TenantID == nil || *r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Store) GetRole(_ context.Context, id string) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	return r, nil
}

func (m *Store) CreateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role.ID == "" {
		role.ID = m.nextID("role")
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *Store) UpdateRole(_ context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[role.ID]; !ok {
		return rbac.Role{}, rbac.ErrNotFound
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *Store) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return rbac.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.links, id)
	return nil
}

func (m *Store) ListPermissions(_ context.Context) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]rbac.Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Store) GetPermissionsByIDs(_ context.Context, ids []string) ([]rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.Permission
	for _, id := range ids {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Store) UpsertPermission(_ context.Context, p rbac.Permission) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.perms {
		if existing.Key == p.Key {
			p.ID = id
			m.perms[id] = p
			return p, nil
		}
	}
	if p.ID == "" {
		p.ID = m.nextID("perm")
	}
	m.perms[p.ID] = p
	return p, nil
}

func (m *Store) RolePermissionIDs(_ context.Context, roleID string) ([]string, error) {
	m.LinkCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LinksErr != nil {
		return nil, m.LinksErr
	}
	return append([]string(nil), m.links[roleID]...), nil
}

func (m *Store) ReplaceRolePermissions(_ context.Context, roleID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[roleID]; !ok {
		return rbac.ErrNotFound
	}
	var kept []string
	for _, id := range ids {
		if _, ok := m.perms[id]; ok {
			kept = append(kept, id)
		}
	}
	m.links[roleID] = kept
	return nil
}

func (m *Store) GetUser(_ context.Context, id string) (rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	return u, nil
}

func (m *Store) FindUserByUID(_ context.Context, uid string) (rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UIDErr != nil {
		return rbac.User{}, m.UIDErr
	}
	for _, u := range m.users {
		if u.AuthUID != "" && u.AuthUID == uid {
			return u, nil
		}
	}
	return rbac.User{}, rbac.ErrNotFound
}

func (m *Store) FindUsersByEmail(_ context.Context, email string) ([]rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rbac.User
	for _, u := range m.users {
		if u.Email != "" && u.Email == email {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) ListUsers(_ context.Context, tenantID string, limit, offset int) ([]rbac.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []rbac.User
	for _, u := range m.users {
		if u.TenantID != nil && *u.TenantID == tenantID {
			all = append(all, u)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	total := len(all)
	if offset >= total {
		return []rbac.User{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Store) CreateUser(_ context.Context, u rbac.User) (rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email && tenantOf(existing) == tenantOf(u) {
			return rbac.User{}, rbac.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = m.nextID("user")
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *Store) UpdateUser(_ context.Context, u rbac.User) (rbac.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return rbac.User{}, rbac.ErrNotFound
	}
	m.users[u.ID] = u
	return u, nil
}

func tenantOf(u rbac.User) string {
	if u.TenantID == nil {
		return ""
	}
	return *u.TenantID
}

// SeedPermission upserts a permission.
func (m *Store) SeedPermission(key, category string) rbac.Permission {
	p, _ := m.UpsertPermission(context.Background(), rbac.Permission{Key: key, Category: category})
	return p
}

// SeedRole creates a role linked to perms. An empty tenantID creates a global role.
func (m *Store) SeedRole(name, tenantID string, system bool, perms ...rbac.Permission) rbac.Role {
	role := rbac.Role{Name: name, IsSystem: system}
	if tenantID != "" {
		tenant := tenantID
		role.TenantID = &tenant
	}
	role, _ = m.CreateRole(context.Background(), role)
	ids := make([]string, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	_ = m.ReplaceRolePermissions(context.Background(), role.ID, ids)
	return role
}
var _ rbac.Store = (*Store)(nil)
