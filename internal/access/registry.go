package access

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/shared"
)

// ErrNoSession indicates the session id has no live access session.
var ErrNoSession = errors.New("access: no session")

// BusinessResolver loads the business context for an identity.
type BusinessResolver interface {
	Resolve(ctx context.Context, identity shared.Identity, businessID string) (*business.Context, error)
}

// Registry holds live access sessions keyed by session id.
type Registry struct {
	businesses BusinessResolver
	users      UserLookup
	logger     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry constructs a Registry.
func NewRegistry(businesses BusinessResolver, users UserLookup, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		businesses: businesses,
		users:      users,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

func (r *Registry) loadBusiness(ctx context.Context, identity shared.Identity, businessID string) (*business.Context, error) {
	if businessID == "" || r.businesses == nil {
		return nil, nil
	}
	return r.businesses.Resolve(ctx, identity, businessID)
}

// Open builds a session for identity in businessID, replacing and disposing any previous
// session under id. An empty businessID opens a session without business context.
func (r *Registry) Open(ctx context.Context, id string, identity shared.Identity, businessID string) (*Session, error) {
	if identity.IsZero() {
		return nil, shared.ErrUnauthenticated
	}
	bc, err := r.loadBusiness(ctx, identity, businessID)
	if err != nil {
		return nil, err
	}
	sess := NewSession(id, identity, bc, r.users)

	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = sess
	r.mu.Unlock()
	prev.Dispose()

	r.logger.Debug("access session opened",
		slog.String("session_id", id),
		slog.String("uid", identity.UID),
		slog.String("business_id", businessID))
	return sess, nil
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// Ensure returns the live session for id when it matches identity and businessID, and opens
// a new one otherwise.
func (r *Registry) Ensure(ctx context.Context, id string, identity shared.Identity, businessID string) (*Session, error) {
	if sess, ok := r.Get(id); ok && !sess.Disposed() && sess.Identity() == identity && sess.BusinessID() == businessID {
		sess.touch()
		return sess, nil
	}
	return r.Open(ctx, id, identity, businessID)
}

// Refresh reloads the business context of a live session and forgets its RBAC user so the next
// check reloads it. Navigation tickets issued before the refresh become stale.
func (r *Registry) Refresh(ctx context.Context, id string) (*Session, error) {
	sess, ok := r.Get(id)
	if !ok || sess.Disposed() {
		return nil, ErrNoSession
	}
	bc, err := r.loadBusiness(ctx, sess.Identity(), sess.BusinessID())
	if err != nil {
		return nil, err
	}
	sess.reset(bc)
	sess.generation.Add(1)
	return sess, nil
}

// RefreshBusiness refreshes every live session bound to businessID and returns how many were
// refreshed. Failures are logged and the affected sessions disposed.
func (r *Registry) RefreshBusiness(ctx context.Context, businessID string) int {
	r.mu.RLock()
	var ids []string
	for id, sess := range r.sessions {
		if sess.BusinessID() == businessID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	refreshed := 0
	for _, id := range ids {
		if _, err := r.Refresh(ctx, id); err != nil {
			r.logger.Warn("access session refresh failed", slog.String("session_id", id), slog.Any("error", err))
			r.Dispose(id)
			continue
		}
		refreshed++
	}
	return refreshed
}

// Dispose tears down the session for id. Unknown ids are ignored.
func (r *Registry) Dispose(id string) {
	r.mu.Lock()
	sess := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	sess.Dispose()
}

// Sweep disposes sessions idle for longer than maxIdle and returns how many were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*Session
	for id, sess := range r.sessions {
		if sess.idleSince().Before(cutoff) {
			stale = append(stale, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()
	for _, sess := range stale {
		sess.Dispose()
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
