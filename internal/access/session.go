// Package access combines plan, staff and RBAC permission sources into one decision per query.
package access

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/rbac"
	"github.com/storecraft/backoffice/internal/shared"
)

// UserLookup resolves the RBAC user for an identity within a business. A nil user without error
// means none exists there.
type UserLookup interface {
	LookupUser(ctx context.Context, identity shared.Identity, tenantID string) (*rbac.User, error)
}

// Ticket identifies one navigation within a session.
type Ticket uint64

// Session is the permission state of one signed-in identity. It is built at sign-in and
// torn down with Dispose.
type Session struct {
	id       string
	identity shared.Identity
	users    UserLookup

	mu         sync.RWMutex
	business   *business.Context
	rbacUser   *rbac.User
	rbacLoaded bool
	lastSeen   time.Time

	generation atomic.Uint64
	disposed   atomic.Bool
}

// NewSession builds a session. bc may be nil when no business is selected.
func NewSession(id string, identity shared.Identity, bc *business.Context, users UserLookup) *Session {
	return &Session{
		id:       id,
		identity: identity,
		users:    users,
		business: bc,
		lastSeen: time.Now(),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Identity returns the signed-in identity.
func (s *Session) Identity() shared.Identity { return s.identity }

// Business returns the loaded business context, or nil.
func (s *Session) Business() *business.Context {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.business
}

// BusinessID returns the selected business id, or "".
func (s *Session) BusinessID() string {
	if bc := s.Business(); bc != nil {
		return bc.BusinessID
	}
	return ""
}

// IsOwner reports whether the session acts as the owner of its business.
func (s *Session) IsOwner() bool {
	return s.Business().IsOwner()
}

// RBACUser returns the RBAC user for the session identity in the selected business, loading it
// on first use.
// Lookup errors are returned and not remembered, so the next call retries.
func (s *Session) RBACUser(ctx context.Context) (*rbac.User, error) {
	if s == nil || s.Disposed() {
		return nil, nil
	}
	s.mu.RLock()
	if s.rbacLoaded {
		u := s.rbacUser
		s.mu.RUnlock()
		return u, nil
	}
	s.mu.RUnlock()

	if s.users == nil || s.identity.IsZero() {
		return nil, nil
	}
	u, err := s.users.LookupUser(ctx, s.identity, s.BusinessID())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rbacLoaded {
		s.rbacUser = u
		s.rbacLoaded = true
	}
	return s.rbacUser, nil
}

// reset swaps the business context and forgets the RBAC user.
func (s *Session) reset(bc *business.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.business = bc
	s.rbacUser = nil
	s.rbacLoaded = false
}

// BeginNavigation starts a route check and returns its ticket. Earlier tickets become stale.
func (s *Session) BeginNavigation() Ticket {
	s.touch()
	return Ticket(s.generation.Add(1))
}

// Current reports whether t is the latest navigation and the session is still live.
func (s *Session) Current(t Ticket) bool {
	return !s.Disposed() && uint64(t) == s.generation.Load()
}

// Dispose drops all loaded state. A disposed session denies every query.
func (s *Session) Dispose() {
	if s == nil {
		return
	}
	s.disposed.Store(true)
	s.generation.Add(1)
	s.reset(nil)
}

// Disposed reports whether Dispose has run.
func (s *Session) Disposed() bool {
	return s == nil || s.disposed.Load()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}
