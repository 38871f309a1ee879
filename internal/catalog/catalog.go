// Package catalog maps dashboard route paths to the permission keys required to view them.
package catalog

import (
	"fmt"
	"strings"
)

// MatchMode selects how a pathname without an exact entry is matched against route prefixes.
type MatchMode string

const (
	// MatchFirst returns the first route, in declaration order, whose path prefixes the pathname.
	MatchFirst MatchMode = "first"
	// MatchLongest returns the most specific route whose path prefixes the pathname.
	MatchLongest MatchMode = "longest"
)

// ParseMatchMode converts a configuration value into a MatchMode.
func ParseMatchMode(raw string) (MatchMode, error) {
	switch MatchMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", MatchFirst:
		return MatchFirst, nil
	case MatchLongest:
		return MatchLongest, nil
	default:
		return "", fmt.Errorf("catalog: unknown match mode %q", raw)
	}
}

// Route is a single catalog entry.
type Route struct {
	Path        string   `json:"path"`
	Permissions []string `json:"permissions"`
}

// Overlap describes an earlier prefix entry that shadows a later, more specific entry.
type Overlap struct {
	Shadowing Route
	Shadowed  Route
}

// RouteCatalog is an immutable, ordered route → permission table.
type RouteCatalog struct {
	routes []Route
	exact  map[string]int
	mode   MatchMode
}

// New builds a catalog from routes in declaration order. Duplicate paths keep the first entry.
func New(routes []Route, mode MatchMode) *RouteCatalog {
	if mode == "" {
		mode = MatchFirst
	}
	c := &RouteCatalog{
		routes: make([]Route, 0, len(routes)),
		exact:  make(map[string]int, len(routes)),
		mode:   mode,
	}
	for _, r := range routes {
		path := strings.TrimSpace(r.Path)
		if path == "" {
			continue
		}
		if _, dup := c.exact[path]; dup {
			continue
		}
		perms := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			if p = strings.TrimSpace(p); p != "" {
				perms = append(perms, p)
			}
		}
		c.exact[path] = len(c.routes)
		c.routes = append(c.routes, Route{Path: path, Permissions: perms})
	}
	return c
}

// Mode reports the prefix matching strategy.
func (c *RouteCatalog) Mode() MatchMode {
	if c == nil {
		return MatchFirst
	}
	return c.mode
}

// Routes returns a copy of the catalog entries in declaration order.
func (c *RouteCatalog) Routes() []Route {
	if c == nil {
		return nil
	}
	out := make([]Route, len(c.routes))
	for i, r := range c.routes {
		out[i] = Route{Path: r.Path, Permissions: clone(r.Permissions)}
	}
	return out
}

// GetRoutePermissions returns the permissions required for pathname. An empty result means the
// route is public. The returned slice is never nil and is safe to mutate.
func (c *RouteCatalog) GetRoutePermissions(pathname string) []string {
	if c == nil {
		return []string{}
	}
	if idx, ok := c.exact[pathname]; ok {
		return clone(c.routes[idx].Permissions)
	}
	match := -1
	for i, r := range c.routes {
		if !strings.HasPrefix(pathname, r.Path) {
			continue
		}
		if c.mode != MatchLongest {
			match = i
			break
		}
		if match < 0 || len(r.Path) > len(c.routes[match].Path) {
			match = i
		}
	}
	if match < 0 {
		return []string{}
	}
	return clone(c.routes[match].Permissions)
}

// RouteRequiresPermission reports whether pathname maps to at least one permission.
func (c *RouteCatalog) RouteRequiresPermission(pathname string) bool {
	return len(c.GetRoutePermissions(pathname)) > 0
}

// Overlaps lists entries whose prefix match is decided by an earlier, shorter path. Under
// MatchFirst the later entry is only reachable through its exact path.
func (c *RouteCatalog) Overlaps() []Overlap {
	if c == nil {
		return nil
	}
	var out []Overlap
	for i, earlier := range c.routes {
		for _, later := range c.routes[i+1:] {
			if later.Path != earlier.Path && strings.HasPrefix(later.Path, earlier.Path) {
				out = append(out, Overlap{Shadowing: earlier, Shadowed: later})
			}
		}
	}
	return out
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
