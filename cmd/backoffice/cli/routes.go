// Package cli holds the operator subcommands of the backoffice binary.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/storecraft/backoffice/internal/catalog"
)

// ExitOverlaps is returned by the overlaps command when shadowed entries exist.
const ExitOverlaps = 10

// RoutesOptions carries the shared flags of the routes commands.
type RoutesOptions struct {
	CatalogPath string
	Mode        string
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

func (o *RoutesOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

// RoutesCommand runs `routes <list|check|overlaps>` with args and returns the exit code.
func RoutesCommand(args []string, stdout, stderr io.Writer) int {
	opts := RoutesOptions{Stdout: stdout, Stderr: stderr}
	opts.defaults()
	if len(args) == 0 {
		routesUsage(opts.Stderr)
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("routes "+sub, flag.ContinueOnError)
	fs.SetOutput(opts.Stderr)
	fs.StringVar(&opts.CatalogPath, "catalog", os.Getenv("ROUTE_CATALOG_PATH"), "route catalog YAML (default: embedded table)")
	fs.StringVar(&opts.Mode, "mode", envOr("ROUTE_MATCH_MODE", string(catalog.MatchFirst)), "prefix match mode: first or longest")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	cat, err := loadCatalog(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "routes: %v\n", err)
		return 1
	}
	switch sub {
	case "list":
		return ListRoutes(cat, opts)
	case "check":
		if fs.NArg() == 0 {
			_, _ = fmt.Fprintln(opts.Stderr, "routes check: at least one path is required")
			return 2
		}
		return CheckRoutes(cat, fs.Args(), opts)
	case "overlaps":
		return ListOverlaps(cat, opts)
	default:
		routesUsage(opts.Stderr)
		return 2
	}
}

func routesUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: backoffice routes <command> [flags] [args]")
	_, _ = fmt.Fprintln(w, "\nAvailable commands:")
	_, _ = fmt.Fprintln(w, "  list              Print the route table in match order")
	_, _ = fmt.Fprintln(w, "  check <path>...   Print the permissions a path requires")
	_, _ = fmt.Fprintln(w, "  overlaps          Print prefix entries shadowed by earlier ones")
}

func loadCatalog(opts RoutesOptions) (*catalog.RouteCatalog, error) {
	mode, err := catalog.ParseMatchMode(opts.Mode)
	if err != nil {
		return nil, err
	}
	return catalog.Load(opts.CatalogPath, mode)
}

// ListRoutes prints every catalog entry.
func ListRoutes(cat *catalog.RouteCatalog, opts RoutesOptions) int {
	opts.defaults()
	routes := cat.Routes()
	if opts.JSONOutput {
		return encode(opts, routes)
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tPERMISSIONS")
	for _, r := range routes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", r.Path, strings.Join(r.Permissions, ", "))
	}
	_ = tw.Flush()
	return 0
}

// RouteCheck is the JSON shape of one checked path.
type RouteCheck struct {
	Path        string   `json:"path"`
	Protected   bool     `json:"protected"`
	Permissions []string `json:"permissions"`
}

// CheckRoutes prints the permissions each path requires.
func CheckRoutes(cat *catalog.RouteCatalog, paths []string, opts RoutesOptions) int {
	opts.defaults()
	out := make([]RouteCheck, 0, len(paths))
	for _, p := range paths {
		perms := cat.GetRoutePermissions(p)
		out = append(out, RouteCheck{Path: p, Protected: len(perms) > 0, Permissions: perms})
	}
	if opts.JSONOutput {
		return encode(opts, out)
	}
	tw := tabwriter.NewWriter(opts.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PATH\tREQUIRES")
	for _, c := range out {
		requires := "(public)"
		if c.Protected {
			requires = "any of: " + strings.Join(c.Permissions, ", ")
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", c.Path, requires)
	}
	_ = tw.Flush()
	return 0
}

// OverlapView is the JSON shape of one overlap.
type OverlapView struct {
	Shadowing string `json:"shadowing"`
	Shadowed  string `json:"shadowed"`
}

// ListOverlaps prints shadowed entries and returns ExitOverlaps when any exist under first-match.
func ListOverlaps(cat *catalog.RouteCatalog, opts RoutesOptions) int {
	opts.defaults()
	overlaps := cat.Overlaps()
	views := make([]OverlapView, 0, len(overlaps))
	for _, o := range overlaps {
		views = append(views, OverlapView{Shadowing: o.Shadowing.Path, Shadowed: o.Shadowed.Path})
	}
	if opts.JSONOutput {
		if code := encode(opts, views); code != 0 {
			return code
		}
	} else if len(views) == 0 {
		_, _ = fmt.Fprintln(opts.Stdout, "no overlapping prefixes")
	} else {
		for _, v := range views {
			_, _ = fmt.Fprintf(opts.Stdout, "%s shadows %s for prefix matches\n", v.Shadowing, v.Shadowed)
		}
	}
	if len(views) > 0 && cat.Mode() == catalog.MatchFirst {
		return ExitOverlaps
	}
	return 0
}

func encode(opts RoutesOptions, v any) int {
	enc := json.NewEncoder(opts.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "routes: encode json: %v\n", err)
		return 1
	}
	return 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
