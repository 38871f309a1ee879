package business

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for business membership.
type RepositoryPort interface {
	GetBusiness(ctx context.Context, id string) (Business, error)
	FindMember(ctx context.Context, businessID, uid, email string) (Member, error)
	ListForIdentity(ctx context.Context, uid, email string) ([]Summary, error)
}

// Provider resolves the business context of a signed-in identity.
type Provider struct {
	repo RepositoryPort
}

// NewProvider builds a Provider.
func NewProvider(repo RepositoryPort) *Provider {
	return &Provider{repo: repo}
}

// Resolve loads the business context for identity within businessID. The owner UID maps to
// RoleOwner; everyone else needs an active staff membership.
func (p *Provider) Resolve(ctx context.Context, identity shared.Identity, businessID string) (*Context, error) {
	businessID = strings.TrimSpace(businessID)
	if businessID == "" {
		return nil, ErrBusinessNotFound
	}
	b, err := p.repo.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("business: load %s: %w", businessID, err)
	}
	bc := &Context{
		BusinessID:   b.ID,
		BusinessName: b.Name,
		Plan:         Plan{Type: b.PlanType},
	}
	if identity.UID != "" && b.OwnerUID == identity.UID {
		bc.Role = RoleOwner
		bc.StaffPermissions = perm.NewSet()
		return bc, nil
	}
	member, err := p.repo.FindMember(ctx, b.ID, identity.UID, identity.Email)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return nil, ErrNoMembership
		}
		return nil, fmt.Errorf("business: membership %s: %w", businessID, err)
	}
	bc.Role = member.Role
	if bc.Role == RoleOwner {
		// Only the recorded owner UID may act as owner.
		bc.Role = "staff"
	}
	bc.StaffPermissions = perm.NewSet(member.Permissions...)
	return bc, nil
}

// ListForIdentity returns the businesses identity can switch to.
func (p *Provider) ListForIdentity(ctx context.Context, identity shared.Identity) ([]Summary, error) {
	if identity.IsZero() {
		return nil, shared.ErrUnauthenticated
	}
	return p.repo.ListForIdentity(ctx, identity.UID, identity.Email)
}
