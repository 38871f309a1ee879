package access

import (
	"context"
	"log/slog"

	"github.com/storecraft/backoffice/internal/business"
	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/plans"
)

// Granting sources reported on a Decision.
const (
	SourcePlan  = "plan"
	SourceOwner = "owner"
	SourceStaff = "staff"
	SourceRBAC  = "rbac"
	SourceNone  = "none"
)

// Decision is the outcome of one permission query.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Source  string `json:"source"`
}

// Source is one non-owner permission source. Sources are consulted in order until one allows.
type Source interface {
	Name() string
	Resolve(ctx context.Context, sess *Session, q perm.Query) (bool, error)
}

// Recorder receives decision telemetry.
type Recorder interface {
	ObserveDecision(source, kind string, allowed bool)
	ObserveSourceError(source string)
}

// RolePermissions loads the permission keys linked to a role.
type RolePermissions interface {
	RolePermissions(ctx context.Context, roleID string) ([]string, error)
}

// StaffSource answers from the staff permissions of the loaded business context.
type StaffSource struct {
	resolver business.StaffResolver
}

// Name implements Source.
func (StaffSource) Name() string { return SourceStaff }

// Resolve implements Source.
func (s StaffSource) Resolve(_ context.Context, sess *Session, q perm.Query) (bool, error) {
	return s.resolver.Satisfies(sess.Business(), q), nil
}

// RBACSource answers from the role of the session's RBAC user.
type RBACSource struct {
	roles RolePermissions
}

// NewRBACSource constructs an RBACSource.
func NewRBACSource(roles RolePermissions) RBACSource {
	return RBACSource{roles: roles}
}

// Name implements Source.
func (RBACSource) Name() string { return SourceRBAC }

// Resolve implements Source. A session without an RBAC user, or whose user belongs to another
// business, resolves to false.
func (s RBACSource) Resolve(ctx context.Context, sess *Session, q perm.Query) (bool, error) {
	user, err := sess.RBACUser(ctx)
	if err != nil {
		return false, err
	}
	if user == nil || s.roles == nil || !user.InTenant(sess.BusinessID()) {
		return false, nil
	}
	keys, err := s.roles.RolePermissions(ctx, user.RoleID)
	if err != nil {
		return false, err
	}
	return perm.NewSet(keys...).Satisfies(q), nil
}

// DefaultSources returns the staff then RBAC source chain.
func DefaultSources(roles RolePermissions) []Source {
	return []Source{StaffSource{}, NewRBACSource(roles)}
}

// Aggregator evaluates permission queries with fixed precedence: owner (after an advisory plan
// check), then each source in order. Sources only add permissions; none can revoke.
type Aggregator struct {
	sources  []Source
	recorder Recorder
	logger   *slog.Logger
}

// NewAggregator constructs an Aggregator. recorder may be nil.
func NewAggregator(logger *slog.Logger, recorder Recorder, sources ...Source) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{sources: sources, recorder: recorder, logger: logger}
}

// Decide evaluates q for sess. Source errors are logged and count as deny for that source.
func (a *Aggregator) Decide(ctx context.Context, sess *Session, q perm.Query) Decision {
	decision := a.decide(ctx, sess, q)
	if a.recorder != nil {
		a.recorder.ObserveDecision(decision.Source, q.Kind.String(), decision.Allowed)
	}
	return decision
}

func (a *Aggregator) decide(ctx context.Context, sess *Session, q perm.Query) Decision {
	if sess.Disposed() {
		return Decision{Source: SourceNone}
	}
	if bc := sess.Business(); bc.IsOwner() {
		if plans.Known(bc.Plan.Type) && plans.Satisfies(bc.Plan.Type, q) {
			return Decision{Allowed: true, Source: SourcePlan}
		}
		return Decision{Allowed: true, Source: SourceOwner}
	}
	for _, src := range a.sources {
		ok, err := src.Resolve(ctx, sess, q)
		if err != nil {
			a.logger.Error("permission source failed",
				slog.String("source", src.Name()),
				slog.String("session_id", sess.ID()),
				slog.String("kind", q.Kind.String()),
				slog.Any("keys", q.Keys),
				slog.Any("error", err))
			if a.recorder != nil {
				a.recorder.ObserveSourceError(src.Name())
			}
			continue
		}
		if ok {
			return Decision{Allowed: true, Source: src.Name()}
		}
	}
	return Decision{Source: SourceNone}
}

// HasPermission reports whether sess holds key.
func (a *Aggregator) HasPermission(ctx context.Context, sess *Session, key string) bool {
	return a.Decide(ctx, sess, perm.HasOne(key)).Allowed
}

// HasAnyPermission reports whether sess holds at least one of keys.
func (a *Aggregator) HasAnyPermission(ctx context.Context, sess *Session, keys []string) bool {
	return a.Decide(ctx, sess, perm.HasAny(keys...)).Allowed
}

// HasAllPermissions reports whether sess holds every key, each source judged on its own.
func (a *Aggregator) HasAllPermissions(ctx context.Context, sess *Session, keys []string) bool {
	return a.Decide(ctx, sess, perm.HasAll(keys...)).Allowed
}
