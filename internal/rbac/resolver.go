package rbac

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/shared"
)

const loadTimeout = 10 * time.Second

// Resolver resolves role permissions and RBAC identities. Permission lookups fail soft: store
// errors are logged and treated as an empty permission set.
type Resolver struct {
	store  Store
	cache  *Cache
	logger *slog.Logger
	loads  singleflight.Group
}

// NewResolver constructs a Resolver. cache may be nil.
func NewResolver(store Store, cache *Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger}
}

// GetUserPermissions returns the permission keys linked to roleID, or an empty set on any error.
func (r *Resolver) GetUserPermissions(ctx context.Context, roleID string) []string {
	keys, err := r.RolePermissions(ctx, roleID)
	if err != nil {
		r.logger.Error("rbac load role permissions", slog.String("role_id", roleID), slog.Any("error", err))
		return []string{}
	}
	return keys
}

// RolePermissions returns the permission keys linked to roleID and surfaces errors.
func (r *Resolver) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return []string{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if keys, ok, err := r.cache.Get(ctx, roleID); err != nil {
		r.logger.Warn("rbac cache read", slog.String("role_id", roleID), slog.Any("error", err))
	} else if ok {
		return keys, nil
	}

	// The shared load outlives any single caller; each caller still stops waiting on its own ctx.
	ch := r.loads.DoChan(roleID, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return r.loadFromStore(loadCtx, roleID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		keys := res.Val.([]string)
		out := make([]string, len(keys))
		copy(out, keys)
		return out, nil
	}
}

// Warm loads roleID from the store and writes it to the cache.
func (r *Resolver) Warm(ctx context.Context, roleID string) error {
	_, err := r.loadFromStore(ctx, roleID)
	return err
}

func (r *Resolver) loadFromStore(ctx context.Context, roleID string) ([]string, error) {
	ver, verErr := r.cache.Version(ctx)
	if verErr != nil {
		r.logger.Warn("rbac cache version", slog.String("role_id", roleID), slog.Any("error", verErr))
	}
	ids, err := r.store.RolePermissionIDs(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := r.store.GetPermissionsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	keys = perm.Normalize(keys)
	if verErr == nil {
		if err := r.cache.Set(ctx, roleID, ver, keys); err != nil {
			r.logger.Warn("rbac cache write", slog.String("role_id", roleID), slog.Any("error", err))
		}
	}
	return keys, nil
}

// Check evaluates q against the permissions of roleID. userType is accepted for callers that
// carry it; super admins get no implicit bypass.
func (r *Resolver) Check(ctx context.Context, roleID string, q perm.Query, userType UserType) CheckResult {
	set := perm.NewSet(r.GetUserPermissions(ctx, roleID)...)
	return CheckResult{Allowed: set.Satisfies(q)}
}

// CheckPermission reports whether roleID grants key.
func (r *Resolver) CheckPermission(ctx context.Context, roleID, key string, userType UserType) CheckResult {
	return r.Check(ctx, roleID, perm.HasOne(key), userType)
}

// CheckAnyPermission reports whether roleID grants at least one of keys.
func (r *Resolver) CheckAnyPermission(ctx context.Context, roleID string, keys []string, userType UserType) CheckResult {
	return r.Check(ctx, roleID, perm.HasAny(keys...), userType)
}

// CheckAllPermissions reports whether roleID grants every key.
func (r *Resolver) CheckAllPermissions(ctx context.Context, roleID string, keys []string, userType UserType) CheckResult {
	return r.Check(ctx, roleID, perm.HasAll(keys...), userType)
}

// LookupUser finds the RBAC user for identity within tenantID: by uid first, then by email.
// Users of another tenant are skipped; global users match every tenant. It returns nil without
// error when nothing matches or the user is not active.
func (r *Resolver) LookupUser(ctx context.Context, identity shared.Identity, tenantID string) (*User, error) {
	var uidErr error
	if identity.UID != "" {
		u, err := r.store.FindUserByUID(ctx, identity.UID)
		switch {
		case err == nil:
			if u.InTenant(tenantID) {
				return activeOrNil(&u), nil
			}
		case errors.Is(err, ErrNotFound):
		default:
			uidErr = err
			r.logger.Warn("rbac lookup by uid", slog.String("uid", identity.UID), slog.Any("error", err))
		}
	}
	if identity.Email == "" {
		return nil, uidErr
	}
	users, err := r.store.FindUsersByEmail(ctx, identity.Email)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].InTenant(tenantID) {
			return activeOrNil(&users[i]), nil
		}
	}
	return nil, uidErr
}

func activeOrNil(u *User) *User {
	if !u.Active() {
		return nil
	}
	return u
}
