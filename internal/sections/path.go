package sections

import (
	"fmt"
	"strconv"
	"strings"
)

// splitPath validates a dotted path and returns its root and remaining segments.
func splitPath(path string) (string, []string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if seg == "" {
			return "", nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	if segs[0] != RootData && segs[0] != RootStyle {
		return "", nil, fmt.Errorf("%w: %q must start with data or style", ErrInvalidPath, path)
	}
	return segs[0], segs[1:], nil
}

func (s *Section) root(name string) map[string]any {
	if name == RootStyle {
		if s.Style == nil {
			s.Style = map[string]any{}
		}
		return s.Style
	}
	if s.Data == nil {
		s.Data = map[string]any{}
	}
	return s.Data
}

// Get returns the value at path. Numeric segments index arrays.
func (s *Section) Get(path string) (any, bool) {
	rootName, segs, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var node any
	if rootName == RootStyle {
		node = s.Style
	} else {
		node = s.Data
	}
	if node == nil {
		return nil, false
	}
	for _, seg := range segs {
		switch n := node.(type) {
		case map[string]any:
			child, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = child
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(n) {
				return nil, false
			}
			node = n[idx]
		default:
			return nil, false
		}
	}
	return node, true
}

// GetString returns the string at path, or fallback when absent or not a string.
func (s *Section) GetString(path, fallback string) string {
	v, ok := s.Get(path)
	if !ok {
		return fallback
	}
	str, ok := v.(string)
	if !ok {
		return fallback
	}
	return str
}

// Set writes value at path, creating intermediate objects. An array index equal to the array
// length appends.
func (s *Section) Set(path string, value any) error {
	rootName, segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		obj, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s must be an object", ErrInvalidPath, rootName)
		}
		if rootName == RootStyle {
			s.Style = obj
		} else {
			s.Data = obj
		}
		return nil
	}
	_, err = setIn(s.root(rootName), segs, value, path)
	return err
}

func setIn(node any, segs []string, value any, path string) (any, error) {
	if len(segs) == 0 {
		return value, nil
	}
	seg := segs[0]
	switch n := node.(type) {
	case map[string]any:
		child, err := setIn(n[seg], segs[1:], value, path)
		if err != nil {
			return nil, err
		}
		n[seg] = child
		return n, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx > len(n) {
			return nil, fmt.Errorf("%w: %q index %s out of range", ErrInvalidPath, path, seg)
		}
		if idx == len(n) {
			n = append(n, nil)
		}
		child, err := setIn(n[idx], segs[1:], value, path)
		if err != nil {
			return nil, err
		}
		n[idx] = child
		return n, nil
	case nil:
		return setIn(map[string]any{}, segs, value, path)
	default:
		return nil, fmt.Errorf("%w: %q crosses a %T at %s", ErrInvalidPath, path, node, seg)
	}
}

// Delete removes the value at path. Array elements are spliced out. Missing paths are a no-op.
func (s *Section) Delete(path string) error {
	rootName, segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		if rootName == RootStyle {
			s.Style = map[string]any{}
		} else {
			s.Data = map[string]any{}
		}
		return nil
	}
	_, err = deleteIn(s.root(rootName), segs, path)
	return err
}

func deleteIn(node any, segs []string, path string) (any, error) {
	seg := segs[0]
	last := len(segs) == 1
	switch n := node.(type) {
	case map[string]any:
		child, ok := n[seg]
		if !ok {
			return n, nil
		}
		if last {
			delete(n, seg)
			return n, nil
		}
		updated, err := deleteIn(child, segs[1:], path)
		if err != nil {
			return nil, err
		}
		n[seg] = updated
		return n, nil
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q expects an index at %s", ErrInvalidPath, path, seg)
		}
		if idx < 0 || idx >= len(n) {
			return n, nil
		}
		if last {
			return append(n[:idx:idx], n[idx+1:]...), nil
		}
		updated, err := deleteIn(n[idx], segs[1:], path)
		if err != nil {
			return nil, err
		}
		n[idx] = updated
		return n, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q crosses a %T at %s", ErrInvalidPath, path, node, seg)
	}
}
