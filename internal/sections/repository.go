package sections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storecraft/backoffice/internal/platform/db"
)

// Repository persists sections in site_sections with jsonb documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const sectionColumns = `id, site_id, type, position, data, style, updated_at`

func scanSection(row pgx.Row) (Section, error) {
	var (
		s           Section
		data, style []byte
	)
	if err := row.Scan(&s.ID, &s.SiteID, &s.Type, &s.Position, &data, &style, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Section{}, ErrNotFound
		}
		return Section{}, err
	}
	if err := decodeDoc(data, &s.Data); err != nil {
		return Section{}, fmt.Errorf("sections: decode data: %w", err)
	}
	if err := decodeDoc(style, &s.Style); err != nil {
		return Section{}, fmt.Errorf("sections: decode style: %w", err)
	}
	return s, nil
}

func decodeDoc(raw []byte, target *map[string]any) error {
	if len(raw) == 0 {
		*target = map[string]any{}
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return err
	}
	if *target == nil {
		*target = map[string]any{}
	}
	return nil
}

func encodeDocs(s Section) ([]byte, []byte, error) {
	data, err := json.Marshal(nonNil(s.Data))
	if err != nil {
		return nil, nil, err
	}
	style, err := json.Marshal(nonNil(s.Style))
	if err != nil {
		return nil, nil, err
	}
	return data, style, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// SiteBusiness returns the business that owns siteID.
func (r *Repository) SiteBusiness(ctx context.Context, siteID string) (string, error) {
	var businessID string
	err := r.pool.QueryRow(ctx, `SELECT business_id FROM sites WHERE id = $1`, siteID).Scan(&businessID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return businessID, err
}

// List returns the sections of a site by position.
func (r *Repository) List(ctx context.Context, siteID string) ([]Section, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sectionColumns+` FROM site_sections WHERE site_id = $1 ORDER BY position, id`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Section{}
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get fetches one section of a site.
func (r *Repository) Get(ctx context.Context, siteID, id string) (Section, error) {
	return scanSection(r.pool.QueryRow(ctx, `SELECT `+sectionColumns+` FROM site_sections WHERE site_id = $1 AND id = $2`, siteID, id))
}

// Create inserts a section at the end of the site.
func (r *Repository) Create(ctx context.Context, s Section) (Section, error) {
	data, style, err := encodeDocs(s)
	if err != nil {
		return Section{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return scanSection(r.pool.QueryRow(ctx, `
INSERT INTO site_sections (id, site_id, type, position, data, style, updated_at)
VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position) + 1, 0) FROM site_sections WHERE site_id = $2), $4, $5, NOW())
RETURNING `+sectionColumns, s.ID, s.SiteID, s.Type, data, style))
}

// Mutate loads a section under a row lock, applies fn and writes the result.
func (r *Repository) Mutate(ctx context.Context, siteID, id string, fn func(*Section) error) (Section, error) {
	var out Section
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		s, err := scanSection(tx.QueryRow(ctx, `SELECT `+sectionColumns+` FROM site_sections WHERE site_id = $1 AND id = $2 FOR UPDATE`, siteID, id))
		if err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		data, style, err := encodeDocs(s)
		if err != nil {
			return err
		}
		out, err = scanSection(tx.QueryRow(ctx, `
UPDATE site_sections SET data = $3, style = $4, updated_at = NOW()
WHERE site_id = $1 AND id = $2
RETURNING `+sectionColumns, siteID, id, data, style))
		return err
	})
	return out, err
}

// Delete removes a section.
func (r *Repository) Delete(ctx context.Context, siteID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM site_sections WHERE site_id = $1 AND id = $2`, siteID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
