// Package sections stores page-builder sections and edits their nested data and style documents.
package sections

import (
	"fmt"
	"time"

	"github.com/storecraft/backoffice/internal/platform/httpx"
)

// Type names a section layout.
type Type string

// Known section types.
const (
	TypeHero         Type = "hero"
	TypeNavbar       Type = "navbar"
	TypeFooter       Type = "footer"
	TypeFeatures     Type = "features"
	TypeGallery      Type = "gallery"
	TypeTestimonials Type = "testimonials"
	TypeContact      Type = "contact"
	TypeCustom       Type = "custom"
)

var knownTypes = map[Type]struct{}{
	TypeHero: {}, TypeNavbar: {}, TypeFooter: {}, TypeFeatures: {},
	TypeGallery: {}, TypeTestimonials: {}, TypeContact: {}, TypeCustom: {},
}

// Valid reports whether t is a known section type.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Path roots.
const (
	RootData  = "data"
	RootStyle = "style"
)

var (
	// ErrNotFound indicates the section does not exist.
	ErrNotFound = fmt.Errorf("sections: %w", httpx.ErrNotFound)
	// ErrInvalidPath indicates a malformed or type-mismatched document path.
	ErrInvalidPath = fmt.Errorf("sections: invalid path: %w", httpx.ErrValidation)
	// ErrValidation wraps request validation failures.
	ErrValidation = fmt.Errorf("sections: %w", httpx.ErrValidation)
)

// Section is one block of a site page. Data holds content and Style holds presentation; both
// are loosely typed JSON objects.
type Section struct {
	ID        string         `json:"id"`
	SiteID    string         `json:"site_id"`
	Type      Type           `json:"type"`
	Position  int            `json:"position"`
	Data      map[string]any `json:"data"`
	Style     map[string]any `json:"style"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of s.
func (s Section) Clone() Section {
	out := s
	out.Data = cloneValue(s.Data).(map[string]any)
	out.Style = cloneValue(s.Style).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = cloneValue(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = cloneValue(child)
		}
		return out
	default:
		return t
	}
}
