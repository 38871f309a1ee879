package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/storecraft/backoffice/internal/shared"
)

// RoleInput carries editable role fields.
type RoleInput struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=500"`
}

// UserInput carries fields for provisioning an RBAC user.
type UserInput struct {
	AuthUID string   `json:"auth_uid" validate:"max=128"`
	Email   string   `json:"email" validate:"required,email"`
	RoleID  string   `json:"role_id" validate:"required"`
	Type    UserType `json:"type" validate:"omitempty,oneof=super_admin tenant_staff"`
}

// UserUpdate carries optional user changes.
type UserUpdate struct {
	RoleID *string     `json:"role_id" validate:"omitempty,min=1"`
	Status *UserStatus `json:"status" validate:"omitempty,oneof=active invited suspended"`
}

// Service orchestrates RBAC management operations for the roles and users pages.
type Service struct {
	store     Store
	cache     *Cache
	audit     shared.AuditRecorder
	logger    *slog.Logger
	validator *validator.Validate
}

// NewService constructs a Service. cache and audit may be nil.
func NewService(store Store, cache *Cache, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		cache:     cache,
		audit:     audit,
		logger:    logger,
		validator: validator.New(),
	}
}

func (s *Service) validate(v any) error {
	if err := s.validator.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%w: %s failed %s", ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actor Actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorUID:   actor.UID,
		BusinessID: actor.TenantID,
		Action:     action,
		Entity:     entity,
		EntityID:   entityID,
		Meta:       meta,
	}); err != nil {
		s.logger.Warn("rbac audit record", slog.String("action", action), slog.Any("error", err))
	}
}

// ListRoles returns tenant roles and system roles.
func (s *Service) ListRoles(ctx context.Context, tenantID string) ([]Role, error) {
	return s.store.ListRoles(ctx, tenantID)
}

// GetRole fetches a role visible to tenantID.
func (s *Service) GetRole(ctx context.Context, tenantID, id string) (Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if !tenantMatches(role.TenantID, tenantID) {
		return Role{}, ErrNotFound
	}
	return role, nil
}

// mutableRole fetches a role the actor may modify.
func (s *Service) mutableRole(ctx context.Context, actor Actor, id string) (Role, error) {
	if actor.TenantID == "" {
		return Role{}, ErrNoTenant
	}
	role, err := s.GetRole(ctx, actor.TenantID, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem || role.TenantID == nil {
		return Role{}, ErrSystemRole
	}
	return role, nil
}

// CreateRole inserts a tenant role.
func (s *Service) CreateRole(ctx context.Context, actor Actor, in RoleInput) (Role, error) {
	if actor.TenantID == "" {
		return Role{}, ErrNoTenant
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate(in); err != nil {
		return Role{}, err
	}
	tenant := actor.TenantID
	role, err := s.store.CreateRole(ctx, Role{Name: in.Name, Description: in.Description, TenantID: &tenant})
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actor, "role.create", "role", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole renames or re-describes a tenant role.
func (s *Service) UpdateRole(ctx context.Context, actor Actor, id string, in RoleInput) (Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate(in); err != nil {
		return Role{}, err
	}
	role, err := s.mutableRole(ctx, actor, id)
	if err != nil {
		return Role{}, err
	}
	role.Name = in.Name
	role.Description = in.Description
	updated, err := s.store.UpdateRole(ctx, role)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, actor, "role.update", "role", id, map[string]any{"name": updated.Name})
	return updated, nil
}

// DeleteRole removes a tenant role. System roles cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, actor Actor, id string) error {
	if _, err := s.mutableRole(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.bump(ctx)
	s.record(ctx, actor, "role.delete", "role", id, nil)
	return nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.ListPermissions(ctx)
}

// PermissionGroups returns permissions grouped by category in category order.
func (s *Service) PermissionGroups(ctx context.Context) ([]PermissionGroup, error) {
	perms, err := s.store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	titler := cases.Title(language.English)
	index := map[string]int{}
	var groups []PermissionGroup
	for _, p := range perms {
		i, ok := index[p.Category]
		if !ok {
			i = len(groups)
			index[p.Category] = i
			groups = append(groups, PermissionGroup{
				Category: p.Category,
				Label:    titler.String(strings.ReplaceAll(p.Category, "_", " ")),
			})
		}
		groups[i].Permissions = append(groups[i].Permissions, p)
	}
	sort.SliceStable(groups, func(a, b int) bool { return groups[a].Category < groups[b].Category })
	return groups, nil
}

// EnsurePermission upserts a catalog permission.
func (s *Service) EnsurePermission(ctx context.Context, p Permission) (Permission, error) {
	p.Key = strings.TrimSpace(p.Key)
	if p.Key == "" {
		return Permission{}, fmt.Errorf("%w: permission key required", ErrValidation)
	}
	return s.store.UpsertPermission(ctx, p)
}

// RolePermissionIDs returns the permission ids linked to a role visible to tenantID.
func (s *Service) RolePermissionIDs(ctx context.Context, tenantID, roleID string) ([]string, error) {
	if _, err := s.GetRole(ctx, tenantID, roleID); err != nil {
		return nil, err
	}
	return s.store.RolePermissionIDs(ctx, roleID)
}

// TogglePermission checks or unchecks one permission for a role. The full resulting id set is
// recomputed and persisted; concurrent toggles are last-write-wins.
func (s *Service) TogglePermission(ctx context.Context, actor Actor, roleID, permissionID string, enabled bool) ([]string, error) {
	if strings.TrimSpace(permissionID) == "" {
		return nil, fmt.Errorf("%w: permission id required", ErrValidation)
	}
	if _, err := s.mutableRole(ctx, actor, roleID); err != nil {
		return nil, err
	}
	current, err := s.store.RolePermissionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	next := make([]string, 0, len(current)+1)
	present := false
	for _, id := range current {
		if id == permissionID {
			present = true
			if !enabled {
				continue
			}
		}
		next = append(next, id)
	}
	if enabled && !present {
		next = append(next, permissionID)
	}
	sort.Strings(next)
	if err := s.store.ReplaceRolePermissions(ctx, roleID, next); err != nil {
		return nil, err
	}
	s.bump(ctx)
	s.record(ctx, actor, "role.permission.toggle", "role", roleID, map[string]any{"permission_id": permissionID, "enabled": enabled})
	return next, nil
}

// SetRolePermissions replaces the permission ids of any role, including system roles. It is
// intended for seeding.
func (s *Service) SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if err := s.store.ReplaceRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return err
	}
	s.bump(ctx)
	return nil
}

func (s *Service) bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("rbac cache bump", slog.Any("error", err))
	}
}

// ListUsers returns a page of tenant users.
func (s *Service) ListUsers(ctx context.Context, tenantID string, page, perPage int) ([]User, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	users, total, err := s.store.ListUsers(ctx, tenantID, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(p.Page, p.PerPage, total), nil
}

// CreateUser provisions an RBAC user in the actor's tenant.
func (s *Service) CreateUser(ctx context.Context, actor Actor, in UserInput) (User, error) {
	if actor.TenantID == "" {
		return User{}, ErrNoTenant
	}
	in.Email = strings.TrimSpace(in.Email)
	in.AuthUID = strings.TrimSpace(in.AuthUID)
	if in.Type == "" {
		in.Type = UserTypeTenantStaff
	}
	if err := s.validate(in); err != nil {
		return User{}, err
	}
	if in.Type == UserTypeSuperAdmin {
		return User{}, fmt.Errorf("%w: super admins cannot be provisioned by tenants", ErrValidation)
	}
	if _, err := s.GetRole(ctx, actor.TenantID, in.RoleID); err != nil {
		return User{}, err
	}
	tenant := actor.TenantID
	status := UserStatusInvited
	if in.AuthUID != "" {
		status = UserStatusActive
	}
	u, err := s.store.CreateUser(ctx, User{
		AuthUID:  in.AuthUID,
		Email:    in.Email,
		RoleID:   in.RoleID,
		TenantID: &tenant,
		Type:     in.Type,
		Status:   status,
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.create", "user", u.ID, map[string]any{"email": u.Email, "role_id": u.RoleID})
	return u, nil
}

// UpdateUser changes the role or status of a tenant user.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id string, in UserUpdate) (User, error) {
	if actor.TenantID == "" {
		return User{}, ErrNoTenant
	}
	if err := s.validate(in); err != nil {
		return User{}, err
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.TenantID == nil || *u.TenantID != actor.TenantID {
		return User{}, ErrNotFound
	}
	if in.RoleID != nil {
		if _, err := s.GetRole(ctx, actor.TenantID, *in.RoleID); err != nil {
			return User{}, err
		}
		u.RoleID = *in.RoleID
	}
	if in.Status != nil {
		u.Status = *in.Status
	}
	updated, err := s.store.UpdateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor, "user.update", "user", id, map[string]any{"role_id": updated.RoleID, "status": updated.Status})
	return updated, nil
}
