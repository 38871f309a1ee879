package sections

import "fmt"

// Op kinds.
const (
	OpSet    = "set"
	OpDelete = "delete"
)

// Op is one edit applied by the section editor.
type Op struct {
	Op    string `json:"op" validate:"required,oneof=set delete"`
	Path  string `json:"path" validate:"required"`
	Value any    `json:"value,omitempty"`
}

// Apply runs ops in order. Either every op applies or s is left unchanged.
func (s *Section) Apply(ops []Op) error {
	work := s.Clone()
	for i, op := range ops {
		var err error
		switch op.Op {
		case OpSet:
			err = work.Set(op.Path, op.Value)
		case OpDelete:
			err = work.Delete(op.Path)
		default:
			err = fmt.Errorf("%w: unknown op %q", ErrValidation, op.Op)
		}
		if err != nil {
			return fmt.Errorf("op %d: %w", i, err)
		}
	}
	*s = work
	return nil
}
