package tenauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tenantkit/tenauth/internal"
)

// CreateOrganization provisions a tenant: the organization row, the six
// seed roles, and an owner membership for the creating user, in one store
// transaction.
func (e *Engine) CreateOrganization(ctx context.Context, userID, name, slug string) (*Organization, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErr("name", "required")
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, validationErr("slug", "required")
	}

	now := e.now()
	org := &Organization{
		ID:        uuid.NewString(),
		Name:      name,
		Slug:      slug,
		Active:    true,
		CreatedAt: now,
	}

	seeds := DefaultRoles()
	roles := make([]*Role, 0, len(seeds))
	var ownerRoleID string
	for _, seed := range seeds {
		role := &Role{
			ID:          uuid.NewString(),
			OrgID:       org.ID,
			Name:        seed.Name,
			Rank:        seed.Rank,
			System:      true,
			Permissions: seed.Permissions,
		}
		if seed.Name == RoleOwner {
			ownerRoleID = role.ID
		}
		roles = append(roles, role)
	}

	if err := e.stores.Organizations.CreateOrganization(ctx, org, roles); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	membership := &Membership{
		ID:        uuid.NewString(),
		UserID:    userID,
		OrgID:     org.ID,
		RoleID:    ownerRoleID,
		Active:    true,
		IsOwner:   true,
		CreatedAt: now,
	}
	if err := e.stores.Organizations.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, EventOrgCreated, userID, org.ID, true, nil)
	return org, nil
}

// InviteMember creates a pending invitation after the inviter passes a
// users.invite check. The Owner role cannot be granted by invitation, and an
// email can hold at most one pending invitation per organization.
func (e *Engine) InviteMember(ctx context.Context, inviterID, orgID, emailAddr, roleName string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email, err := normalizeEmail(emailAddr)
	if err != nil {
		return err
	}
	if strings.EqualFold(roleName, RoleOwner) {
		return validationErr("role", "the owner role cannot be granted by invitation")
	}

	if err := e.RequirePermission(ctx, inviterID, orgID, "users.invite"); err != nil {
		return err
	}

	role, err := e.stores.Organizations.GetRoleByName(ctx, orgID, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return validationErr("role", "unknown role")
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	pending, err := e.stores.Organizations.HasPendingInvitation(ctx, orgID, email, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if pending {
		return ErrDuplicate
	}

	plain, err := internal.NewOpaqueToken(internal.OpaqueTokenBytes)
	if err != nil {
		return err
	}

	inv := &Invitation{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		Email:     email,
		RoleID:    role.ID,
		TokenHash: hashToken(plain),
		InvitedBy: inviterID,
		ExpiresAt: now.Add(e.config.InvitationTTL),
		CreatedAt: now,
	}
	if err := e.stores.Organizations.CreateInvitation(ctx, inv); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var orgName string
	if org, err := e.stores.Organizations.GetOrganization(ctx, orgID); err == nil {
		orgName = org.Name
	}

	e.metricInc(MetricInvitationCreated)
	e.emitAudit(ctx, EventInvitationCreated, inviterID, orgID, true, nil)
	e.notify.send(Notification{
		Kind:      NotifyInvitation,
		Recipient: email,
		Token:     plain,
		OrgName:   orgName,
	})
	return nil
}

// AcceptInvitation redeems an invitation token for the given user. The
// user's email must match the invited address. On success a membership with
// the invited role exists and any cached decisions for the pair are dropped.
func (e *Engine) AcceptInvitation(ctx context.Context, userID, invitationToken string) (*Membership, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if invitationToken == "" {
		return nil, ErrTokenInvalid
	}

	inv, err := e.stores.Organizations.GetInvitationByHash(ctx, hashToken(invitationToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	if !inv.AcceptedAt.IsZero() {
		return nil, ErrTokenInvalid
	}
	if !now.Before(inv.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	user, err := e.stores.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return nil, ErrTokenInvalid
	}

	if existing, err := e.stores.Organizations.ActiveMembership(ctx, userID, inv.OrgID); err == nil && existing != nil {
		return nil, ErrDuplicate
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	membership := &Membership{
		ID:        uuid.NewString(),
		UserID:    userID,
		OrgID:     inv.OrgID,
		RoleID:    inv.RoleID,
		Active:    true,
		CreatedAt: now,
	}
	if err := e.stores.Organizations.CreateMembership(ctx, membership); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.stores.Organizations.MarkInvitationAccepted(ctx, inv.ID, now); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.InvalidatePermissions(ctx, userID, inv.OrgID); err != nil {
		return nil, err
	}

	e.metricInc(MetricInvitationAccepted)
	e.emitAudit(ctx, EventInvitationAccepted, userID, inv.OrgID, true, nil)
	return membership, nil
}

// UpdateMemberRole changes a member's role after the actor passes a
// users.manage check. Owner memberships are immutable, and the Owner role
// cannot be assigned this way.
func (e *Engine) UpdateMemberRole(ctx context.Context, actorID, orgID, membershipID, roleName string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if strings.EqualFold(roleName, RoleOwner) {
		return validationErr("role", "the owner role cannot be assigned")
	}

	if err := e.RequirePermission(ctx, actorID, orgID, "users.manage"); err != nil {
		return err
	}

	membership, err := e.memberInOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if membership.IsOwner {
		return ErrPermissionDenied
	}

	role, err := e.stores.Organizations.GetRoleByName(ctx, orgID, roleName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return validationErr("role", "unknown role")
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.stores.Organizations.UpdateMembershipRole(ctx, membership.ID, role.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.InvalidatePermissions(ctx, membership.UserID, orgID); err != nil {
		return err
	}

	e.metricInc(MetricMembershipChanged)
	e.emitAudit(ctx, EventMemberRoleChanged, actorID, orgID, true, nil)
	return nil
}

// RemoveMember deactivates a membership after the actor passes a
// users.manage check. Owners cannot be removed, and actors cannot remove
// themselves.
func (e *Engine) RemoveMember(ctx context.Context, actorID, orgID, membershipID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.RequirePermission(ctx, actorID, orgID, "users.manage"); err != nil {
		return err
	}

	membership, err := e.memberInOrg(ctx, membershipID, orgID)
	if err != nil {
		return err
	}
	if membership.IsOwner {
		return ErrPermissionDenied
	}
	if membership.UserID == actorID {
		return validationErr("membership", "cannot remove yourself")
	}

	if err := e.stores.Organizations.DeactivateMembership(ctx, membership.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.InvalidatePermissions(ctx, membership.UserID, orgID); err != nil {
		return err
	}

	e.metricInc(MetricMembershipChanged)
	e.emitAudit(ctx, EventMemberRemoved, actorID, orgID, true, nil)
	return nil
}

func (e *Engine) memberInOrg(ctx context.Context, membershipID, orgID string) (*Membership, error) {
	membership, err := e.stores.Organizations.GetMembershipByID(ctx, membershipID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if membership.OrgID != orgID || !membership.Active {
		return nil, ErrNotFound
	}
	return membership, nil
}
