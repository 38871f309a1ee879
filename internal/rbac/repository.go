package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storecraft/backoffice/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

const roleColumns = `id, name, description, tenant_id, is_system, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.TenantID, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// ListRoles returns tenant roles plus global roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context, tenantID string) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE tenant_id IS NULL OR tenant_id = $1 ORDER BY is_system DESC, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id string) (Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM rbac_roles WHERE id = $1`, id))
	if err != nil {
		return Role{}, mapError(err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	created, err := scanRole(r.pool.QueryRow(ctx, `
		INSERT INTO rbac_roles (id, name, description, tenant_id, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+roleColumns, role.ID, role.Name, role.Description, role.TenantID, role.IsSystem))
	if err != nil {
		return Role{}, mapError(err)
	}
	return created, nil
}

// UpdateRole overwrites name and description of an existing role.
func (r *Repository) UpdateRole(ctx context.Context, role Role) (Role, error) {
	updated, err := scanRole(r.pool.QueryRow(ctx, `
		UPDATE rbac_roles SET name = $2, description = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING `+roleColumns, role.ID, role.Name, role.Description))
	if err != nil {
		return Role{}, mapError(err)
	}
	return updated, nil
}

// DeleteRole removes a role and its permission links. Returns ErrNotFound if nothing was deleted.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM rbac_role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rbac_roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListPermissions returns all permissions ordered by category and key.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, key, category, description FROM rbac_permissions ORDER BY category, key`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// GetPermissionsByIDs resolves permission records for ids; unknown ids are skipped.
func (r *Repository) GetPermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error) {
	if len(ids) == 0 {
		return []Permission{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, key, category, description FROM rbac_permissions WHERE id = ANY($1) ORDER BY key`, ids)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func collectPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	perms := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Category, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// UpsertPermission inserts a permission keyed by Key, refreshing category and description.
func (r *Repository) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	var out Permission
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rbac_permissions (id, key, category, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET category = EXCLUDED.category, description = EXCLUDED.description
		RETURNING id, key, category, description`, p.ID, p.Key, p.Category, p.Description).
		Scan(&out.ID, &out.Key, &out.Category, &out.Description)
	if err != nil {
		return Permission{}, mapError(err)
	}
	return out, nil
}

// RolePermissionIDs returns the permission ids linked to roleID.
func (r *Repository) RolePermissionIDs(ctx context.Context, roleID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT permission_id FROM rbac_role_permissions WHERE role_id = $1 ORDER BY permission_id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// ReplaceRolePermissions overwrites the full permission id set of a role. Concurrent writers
// are last-write-wins.
func (r *Repository) ReplaceRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rbac_roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rbac_role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO rbac_role_permissions (role_id, permission_id)
			SELECT $1, p.id FROM rbac_permissions p WHERE p.id = ANY($2)
			ON CONFLICT DO NOTHING`, roleID, permissionIDs)
		return err
	})
}

const userColumns = `id, auth_uid, email, role_id, tenant_id, type, status, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.AuthUID, &u.Email, &u.RoleID, &u.TenantID, &u.Type, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetUser fetches a user by id.
func (r *Repository) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM rbac_users WHERE id = $1`, id))
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// FindUserByUID looks a user up by external auth uid.
func (r *Repository) FindUserByUID(ctx context.Context, uid string) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM rbac_users WHERE auth_uid = $1 LIMIT 1`, uid))
	if err != nil {
		return User{}, mapError(err)
	}
	return u, nil
}

// FindUsersByEmail returns every user with a case-insensitive email match, oldest first. An
// email may be provisioned in more than one tenant.
func (r *Repository) FindUsersByEmail(ctx context.Context, email string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM rbac_users WHERE lower(email) = lower($1) ORDER BY created_at`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUsers returns a page of tenant users and the total count.
func (r *Repository) ListUsers(ctx context.Context, tenantID string, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM rbac_users WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM rbac_users WHERE tenant_id = $1 ORDER BY email LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	created, err := scanUser(r.pool.QueryRow(ctx, `
		INSERT INTO rbac_users (id, auth_uid, email, role_id, tenant_id, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING `+userColumns, u.ID, u.AuthUID, u.Email, u.RoleID, u.TenantID, u.Type, u.Status))
	if err != nil {
		return User{}, mapError(err)
	}
	return created, nil
}

// UpdateUser overwrites the mutable fields of a user.
func (r *Repository) UpdateUser(ctx context.Context, u User) (User, error) {
	updated, err := scanUser(r.pool.QueryRow(ctx, `
		UPDATE rbac_users SET auth_uid = $2, email = $3, role_id = $4, status = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns, u.ID, u.AuthUID, u.Email, u.RoleID, u.Status))
	if err != nil {
		return User{}, mapError(err)
	}
	return updated, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}
