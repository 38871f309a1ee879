package guard

import (
	"net/http"

	"github.com/storecraft/backoffice/internal/access"
	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/platform/httpx"
)

// DenyMode selects what a Gate renders when the check fails.
type DenyMode int

const (
	// DenyHide renders nothing.
	DenyHide DenyMode = iota
	// DenyFallback delegates to a fallback handler.
	DenyFallback
	// DenyMessage renders an explicit access denied problem.
	DenyMessage
)

// Middleware gates page navigation. Denied requests are redirected to the no-access page and
// signed-out requests to the login page.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := access.SessionFromContext(r.Context())
		d := g.Check(r.Context(), sess, r.URL.Path)
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
	})
}

// Gate guards an in-page action with q. fallback is used only with DenyFallback.
func (g *Guard) Gate(q perm.Query, mode DenyMode, fallback http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := access.SessionFromContext(r.Context())
			if sess.Disposed() {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
				return
			}
			if g.aggregator.Decide(r.Context(), sess, q).Allowed {
				next.ServeHTTP(w, r)
				return
			}
			switch mode {
			case DenyHide:
				w.WriteHeader(http.StatusNoContent)
			case DenyFallback:
				if fallback != nil {
					fallback.ServeHTTP(w, r)
					return
				}
				w.WriteHeader(http.StatusNoContent)
			default:
				httpx.Problem(w, http.StatusForbidden, "Access Denied", "you do not have permission to perform this action")
			}
		})
	}
}

// RequireAny ensures the session holds at least one of keys.
func (g *Guard) RequireAny(keys ...string) func(http.Handler) http.Handler {
	normalized := perm.Normalize(keys)
	if len(normalized) == 0 {
		return passThrough
	}
	return g.Gate(perm.HasAny(normalized...), DenyMessage, nil)
}

// RequireAll ensures the session holds every key.
func (g *Guard) RequireAll(keys ...string) func(http.Handler) http.Handler {
	normalized := perm.Normalize(keys)
	if len(normalized) == 0 {
		return passThrough
	}
	return g.Gate(perm.HasAll(normalized...), DenyMessage, nil)
}

func passThrough(next http.Handler) http.Handler { return next }
