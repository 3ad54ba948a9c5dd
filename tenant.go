package tenauth

import (
	"context"
	"errors"
	"fmt"
)

// TenantContext is the result of resolving a request against one
// organization: the org, the caller's active membership in it, and the
// membership's role. Instances are immutable once returned.
type TenantContext struct {
	org        Organization
	membership Membership
	role       Role
}

// Org returns the resolved organization.
func (t *TenantContext) Org() Organization { return t.org }

// Membership returns the caller's active membership.
func (t *TenantContext) Membership() Membership { return t.membership }

// Role returns the role attached to the membership.
func (t *TenantContext) Role() Role { return t.role }

// OrgID is shorthand for Org().ID.
func (t *TenantContext) OrgID() string { return t.org.ID }

// IsOwner reports whether the caller owns the organization.
func (t *TenantContext) IsOwner() bool { return t.membership.IsOwner }

// ResolveTenant establishes the tenant scope for a request: the organization
// must exist and be active, and the user must hold an active membership in
// it. An unknown org resolves to [ErrTenantAccessDenied] the same as a
// missing membership, so callers cannot probe which organizations exist.
func (e *Engine) ResolveTenant(ctx context.Context, userID, orgID string) (*TenantContext, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if orgID == "" {
		return nil, ErrMissingTenant
	}

	org, err := e.stores.Organizations.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricTenantDenied)
			return nil, ErrTenantAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !org.Active {
		e.metricInc(MetricTenantDenied)
		return nil, ErrTenantInactive
	}

	membership, err := e.stores.Organizations.ActiveMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricTenantDenied)
			return nil, ErrTenantAccessDenied
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	role, err := e.stores.Organizations.GetRoleByID(ctx, membership.RoleID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricTenantResolved)
	return &TenantContext{org: *org, membership: *membership, role: *role}, nil
}
