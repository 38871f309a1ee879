package sections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RepositoryPort is the persistence contract for sections.
type RepositoryPort interface {
	SiteBusiness(ctx context.Context, siteID string) (string, error)
	List(ctx context.Context, siteID string) ([]Section, error)
	Get(ctx context.Context, siteID, id string) (Section, error)
	Create(ctx context.Context, s Section) (Section, error)
	Mutate(ctx context.Context, siteID, id string, fn func(*Section) error) (Section, error)
	Delete(ctx context.Context, siteID, id string) error
}

// CreateInput describes a new section.
type CreateInput struct {
	Type  Type           `json:"type" validate:"required"`
	Data  map[string]any `json:"data"`
	Style map[string]any `json:"style"`
}

// PatchInput carries ordered edits.
type PatchInput struct {
	Ops []Op `json:"ops" validate:"required,min=1,max=200,dive"`
}

// Service coordinates section edits.
type Service struct {
	repo      RepositoryPort
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validator: validator.New()}
}

func (s *Service) validate(v any) error {
	if err := s.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrValidation, strings.ToLower(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// authorize ensures siteID belongs to businessID. Foreign sites read as missing.
func (s *Service) authorize(ctx context.Context, businessID, siteID string) error {
	owner, err := s.repo.SiteBusiness(ctx, siteID)
	if err != nil {
		return err
	}
	if businessID == "" || owner != businessID {
		return ErrNotFound
	}
	return nil
}

// List returns the sections of a site.
func (s *Service) List(ctx context.Context, businessID, siteID string) ([]Section, error) {
	if err := s.authorize(ctx, businessID, siteID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, siteID)
}

// Get returns one section.
func (s *Service) Get(ctx context.Context, businessID, siteID, id string) (Section, error) {
	if err := s.authorize(ctx, businessID, siteID); err != nil {
		return Section{}, err
	}
	return s.repo.Get(ctx, siteID, id)
}

// Create adds a section to a site.
func (s *Service) Create(ctx context.Context, businessID, siteID string, in CreateInput) (Section, error) {
	if err := s.authorize(ctx, businessID, siteID); err != nil {
		return Section{}, err
	}
	if err := s.validate(in); err != nil {
		return Section{}, err
	}
	if !in.Type.Valid() {
		return Section{}, fmt.Errorf("%w: unknown section type %q", ErrValidation, in.Type)
	}
	return s.repo.Create(ctx, Section{SiteID: siteID, Type: in.Type, Data: nonNil(in.Data), Style: nonNil(in.Style)})
}

// Patch applies ops to a section in order under a row lock. A failing op aborts the whole patch.
func (s *Service) Patch(ctx context.Context, businessID, siteID, id string, in PatchInput) (Section, error) {
	if err := s.authorize(ctx, businessID, siteID); err != nil {
		return Section{}, err
	}
	if err := s.validate(in); err != nil {
		return Section{}, err
	}
	out, err := s.repo.Mutate(ctx, siteID, id, func(sec *Section) error {
		return sec.Apply(in.Ops)
	})
	if err != nil {
		return Section{}, err
	}
	s.logger.Debug("section patched", slog.String("site_id", siteID), slog.String("section_id", id), slog.Int("ops", len(in.Ops)))
	return out, nil
}

// Delete removes a section.
func (s *Service) Delete(ctx context.Context, businessID, siteID, id string) error {
	if err := s.authorize(ctx, businessID, siteID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, siteID, id)
}
