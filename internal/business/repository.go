package business

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetBusiness loads a business by id.
func (r *Repository) GetBusiness(ctx context.Context, id string) (Business, error) {
	var b Business
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner_uid, plan_type FROM businesses WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &b.OwnerUID, &b.PlanType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Business{}, ErrBusinessNotFound
		}
		return Business{}, err
	}
	return b, nil
}

// FindMember looks up an active membership by uid, then by email.
func (r *Repository) FindMember(ctx context.Context, businessID, uid, email string) (Member, error) {
	const query = `
		SELECT business_id, member_uid, member_email, role, permissions, status
		FROM business_members
		WHERE business_id = $1 AND status = 'active'
		  AND ((member_uid <> '' AND member_uid = $2) OR (member_email <> '' AND lower(member_email) = lower($3)))
		ORDER BY (member_uid = $2) DESC
		LIMIT 1`
	var m Member
	err := r.pool.QueryRow(ctx, query, businessID, uid, email).
		Scan(&m.BusinessID, &m.UID, &m.Email, &m.Role, &m.Permissions, &m.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, ErrNoMembership
		}
		return Member{}, err
	}
	return m, nil
}

// ListForIdentity returns businesses owned by uid or where the identity is an active member.
func (r *Repository) ListForIdentity(ctx context.Context, uid, email string) ([]Summary, error) {
	const query = `
		SELECT b.id, b.name, 'owner' AS role
		FROM businesses b
		WHERE $1 <> '' AND b.owner_uid = $1
		UNION
		SELECT b.id, b.name, m.role
		FROM businesses b
		JOIN business_members m ON m.business_id = b.id
		WHERE m.status = 'active'
		  AND ((m.member_uid <> '' AND m.member_uid = $1) OR (m.member_email <> '' AND lower(m.member_email) = lower($2)))
		ORDER BY 2`
	rows, err := r.pool.Query(ctx, query, uid, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Role); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
