// Package guard gates dashboard navigation, sidebar entries and in-page actions on the
// permissions of the current access session.
package guard

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/catalog"
	"github.com/storecraft/backoffice/internal/perm"
)

// Check reasons.
const (
	ReasonPublic          = "public"
	ReasonOwner           = "owner"
	ReasonUnmapped        = "unmapped"
	ReasonGranted         = "granted"
	ReasonDenied          = "denied"
	ReasonUnauthenticated = "unauthenticated"
)

// Redirect targets.
const (
	LoginPath    = "/login"
	NoAccessPath = "/no-access"
)

// DefaultPublicPaths are reachable without any permission. Entries ending in "/" match as
// prefixes; the rest match themselves and their subtree.
var DefaultPublicPaths = []string{LoginPath, NoAccessPath, "/site/", "/preview/", "/super-admin"}

// Decision is the outcome of a route check.
type Decision struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason"`
	Source   string   `json:"source,omitempty"`
	Required []string `json:"required"`
	Redirect string   `json:"redirect,omitempty"`
	Stale    bool     `json:"stale,omitempty"`
}

// StaleRecorder counts route checks superseded by newer navigation.
type StaleRecorder interface {
	ObserveStaleCheck()
}

// Guard evaluates route access with the catalog and aggregator.
type Guard struct {
	catalog    *catalog.RouteCatalog
	aggregator *access.Aggregator
	public     []string
	stale      StaleRecorder
	logger     *slog.Logger
}

// Option customises a Guard.
type Option func(*Guard)

// WithPublicPaths replaces the public allowlist.
func WithPublicPaths(paths ...string) Option {
	return func(g *Guard) { g.public = paths }
}

// WithStaleRecorder sets the recorder for superseded checks.
func WithStaleRecorder(rec StaleRecorder) Option {
	return func(g *Guard) { g.stale = rec }
}

// New constructs a Guard.
func New(cat *catalog.RouteCatalog, aggregator *access.Aggregator, logger *slog.Logger, opts ...Option) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Guard{catalog: cat, aggregator: aggregator, public: DefaultPublicPaths, logger: logger}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Catalog returns the route catalog in use.
func (g *Guard) Catalog() *catalog.RouteCatalog { return g.catalog }

// Aggregator returns the permission aggregator in use.
func (g *Guard) Aggregator() *access.Aggregator { return g.aggregator }

// IsPublic reports whether pathname is on the public allowlist.
func (g *Guard) IsPublic(pathname string) bool {
	p := cleanPath(pathname)
	for _, entry := range g.public {
		if strings.HasSuffix(entry, "/") {
			if strings.HasPrefix(p+"/", entry) {
				return true
			}
			continue
		}
		if p == entry || strings.HasPrefix(p, entry+"/") {
			return true
		}
	}
	return false
}

// Check decides whether sess may open pathname. Unmapped routes are allowed; protected routes
// need any one of their catalog permissions.
func (g *Guard) Check(ctx context.Context, sess *access.Session, pathname string) Decision {
	p := cleanPath(pathname)
	if g.IsPublic(p) {
		return Decision{Allowed: true, Reason: ReasonPublic, Required: []string{}}
	}
	if sess.Disposed() {
		return Decision{Reason: ReasonUnauthenticated, Required: []string{}, Redirect: LoginPath}
	}
	if sess.IsOwner() {
		return Decision{Allowed: true, Reason: ReasonOwner, Source: access.SourceOwner, Required: []string{}}
	}
	required := g.catalog.GetRoutePermissions(p)
	if len(required) == 0 {
		return Decision{Allowed: true, Reason: ReasonUnmapped, Required: required}
	}
	d := g.aggregator.Decide(ctx, sess, perm.HasAny(required...))
	if d.Allowed {
		return Decision{Allowed: true, Reason: ReasonGranted, Source: d.Source, Required: required}
	}
	g.logger.Debug("route denied",
		slog.String("path", p),
		slog.String("session_id", sess.ID()),
		slog.Any("required", required))
	return Decision{Reason: ReasonDenied, Source: d.Source, Required: required, Redirect: NoAccessPath}
}

// CheckNavigation runs Check as a new navigation of sess. When a later navigation starts
// before this one finishes, the decision is returned with Stale set and must not be applied.
func (g *Guard) CheckNavigation(ctx context.Context, sess *access.Session, pathname string) Decision {
	if sess.Disposed() {
		return g.Check(ctx, sess, pathname)
	}
	ticket := sess.BeginNavigation()
	d := g.Check(ctx, sess, pathname)
	if !sess.Current(ticket) {
		d.Stale = true
		if g.stale != nil {
			g.stale.ObserveStaleCheck()
		}
	}
	return d
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
