package access

import (
	"context"
	"errors"
	"sync"

	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/shared"
)

var errStoreDown = errors.New("store unavailable")

type stubUsers struct {
	mu      sync.Mutex
	user    *rbac.User
	err     error
	calls   int
	tenants []string
}

func (s *stubUsers) LookupUser(_ context.Context, _ shared.Identity, tenantID string) (*rbac.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.tenants = append(s.tenants, tenantID)
	return s.user, s.err
}

type stubRoles struct {
	perms map[string][]string
	err   error
	calls int
}

func (s *stubRoles) RolePermissions(_ context.Context, roleID string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.perms[roleID], nil
}

type stubBusinesses struct {
	mu       sync.Mutex
	contexts map[string]*business.Context
	err      error
	calls    int
}

func (s *stubBusinesses) Resolve(_ context.Context, _ shared.Identity, businessID string) (*business.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	bc, ok := s.contexts[businessID]
	if !ok {
		return nil, business.ErrBusinessNotFound
	}
	return bc, nil
}

type countingRecorder struct {
	decisions map[string]int
	errors    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{decisions: map[string]int{}, errors: map[string]int{}}
}

func (c *countingRecorder) ObserveDecision(source, kind string, allowed bool) {
	c.decisions[source+"/"+kind]++
}

func (c *countingRecorder) ObserveSourceError(source string) {
	c.errors[source]++
}

var identity = shared.Identity{UID: "uid-1", Email: "staff@example.com"}

func ownerContext(plan string) *business.Context {
	return &business.Context{BusinessID: "biz-1", Role: business.RoleOwner, Plan: business.Plan{Type: plan}}
}

func staffContext(keys ...string) *business.Context {
	return &business.Context{BusinessID: "biz-1", Role: "staff", Plan: business.Plan{Type: "pro"}, StaffPermissions: perm.NewSet(keys...)}
}

func rbacUser(roleID string) *rbac.User {
	return &rbac.User{ID: "user-1", RoleID: roleID, Status: rbac.UserStatusActive}
}

func tenantUser(roleID, tenantID string) *rbac.User {
	u := rbacUser(roleID)
	u.TenantID = &tenantID
	return u
}
