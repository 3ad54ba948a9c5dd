package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tenantkit/tenauth"
)

// Organizations implements tenauth.OrganizationStore.
type Organizations struct {
	db *sql.DB
}

var _ tenauth.OrganizationStore = (*Organizations)(nil)

// CreateOrganization inserts the org, its seed roles, and their permission
// grants in one transaction, so a tenant never exists half-provisioned.
func (o *Organizations) CreateOrganization(ctx context.Context, org *tenauth.Organization, roles []*tenauth.Role) error {
	tx, err := o.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into organizations (id, name, slug, active, created_at)
		values ($1,$2,$3,$4,$5)
	`, org.ID, org.Name, org.Slug, org.Active, org.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return tenauth.ErrDuplicate
		}
		return err
	}

	for _, role := range roles {
		if _, err := tx.ExecContext(ctx, `
			insert into roles (id, org_id, name, rank, is_system)
			values ($1,$2,$3,$4,$5)
		`, role.ID, role.OrgID, role.Name, role.Rank, role.System); err != nil {
			return err
		}
		for _, code := range role.Permissions {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_id, code) values ($1,$2)
			`, role.ID, code); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (o *Organizations) GetOrganization(ctx context.Context, id string) (*tenauth.Organization, error) {
	var org tenauth.Organization
	err := o.db.QueryRowContext(ctx, `
		select id, name, slug, active, created_at from organizations where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Slug, &org.Active, &org.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (o *Organizations) GetRoleByID(ctx context.Context, roleID string) (*tenauth.Role, error) {
	return o.scanRole(o.db.QueryRowContext(ctx, `
		select id, org_id, name, rank, is_system from roles where id = $1
	`, roleID))
}

func (o *Organizations) GetRoleByName(ctx context.Context, orgID, name string) (*tenauth.Role, error) {
	return o.scanRole(o.db.QueryRowContext(ctx, `
		select id, org_id, name, rank, is_system from roles where org_id = $1 and name = $2
	`, orgID, name))
}

func (o *Organizations) RoleHasPermission(ctx context.Context, roleID, code string) (bool, error) {
	var exists bool
	err := o.db.QueryRowContext(ctx, `
		select exists (select 1 from role_permissions where role_id = $1 and code = $2)
	`, roleID, code).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (o *Organizations) ActiveMembership(ctx context.Context, userID, orgID string) (*tenauth.Membership, error) {
	return o.scanMembership(o.db.QueryRowContext(ctx, `
		select id, user_id, org_id, role_id, active, is_owner, created_at
		from memberships where user_id = $1 and org_id = $2 and active
	`, userID, orgID))
}

func (o *Organizations) GetMembershipByID(ctx context.Context, id string) (*tenauth.Membership, error) {
	return o.scanMembership(o.db.QueryRowContext(ctx, `
		select id, user_id, org_id, role_id, active, is_owner, created_at
		from memberships where id = $1
	`, id))
}

func (o *Organizations) CreateMembership(ctx context.Context, m *tenauth.Membership) error {
	_, err := o.db.ExecContext(ctx, `
		insert into memberships (id, user_id, org_id, role_id, active, is_owner, created_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.UserID, m.OrgID, m.RoleID, m.Active, m.IsOwner, m.CreatedAt)
	if isUniqueViolation(err) {
		return tenauth.ErrDuplicate
	}
	return err
}

func (o *Organizations) UpdateMembershipRole(ctx context.Context, id, roleID string) error {
	return o.execOne(ctx, `update memberships set role_id = $2 where id = $1`, id, roleID)
}

func (o *Organizations) DeactivateMembership(ctx context.Context, id string) error {
	return o.execOne(ctx, `update memberships set active = false where id = $1`, id)
}

func (o *Organizations) CreateInvitation(ctx context.Context, inv *tenauth.Invitation) error {
	_, err := o.db.ExecContext(ctx, `
		insert into invitations (id, org_id, email, role_id, token_hash, invited_by,
			expires_at, accepted_at, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, inv.ID, inv.OrgID, inv.Email, inv.RoleID, inv.TokenHash, inv.InvitedBy,
		inv.ExpiresAt, nullTime(inv.AcceptedAt), inv.CreatedAt)
	if isUniqueViolation(err) {
		return tenauth.ErrDuplicate
	}
	return err
}

func (o *Organizations) GetInvitationByHash(ctx context.Context, tokenHash string) (*tenauth.Invitation, error) {
	var (
		inv      tenauth.Invitation
		accepted sql.NullTime
	)
	err := o.db.QueryRowContext(ctx, `
		select id, org_id, email, role_id, token_hash, invited_by, expires_at, accepted_at, created_at
		from invitations where token_hash = $1
	`, tokenHash).Scan(&inv.ID, &inv.OrgID, &inv.Email, &inv.RoleID, &inv.TokenHash,
		&inv.InvitedBy, &inv.ExpiresAt, &accepted, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.AcceptedAt = fromNullTime(accepted)
	return &inv, nil
}

func (o *Organizations) HasPendingInvitation(ctx context.Context, orgID, email string, now time.Time) (bool, error) {
	var exists bool
	err := o.db.QueryRowContext(ctx, `
		select exists (
			select 1 from invitations
			where org_id = $1 and email = $2 and accepted_at is null and expires_at > $3
		)
	`, orgID, email, now).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (o *Organizations) MarkInvitationAccepted(ctx context.Context, id string, at time.Time) error {
	return o.execOne(ctx, `
		update invitations set accepted_at = $2 where id = $1 and accepted_at is null
	`, id, at)
}

func (o *Organizations) execOne(ctx context.Context, query string, args ...any) error {
	res, err := o.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return tenauth.ErrNotFound
	}
	return nil
}

func (o *Organizations) scanRole(row *sql.Row) (*tenauth.Role, error) {
	var role tenauth.Role
	err := row.Scan(&role.ID, &role.OrgID, &role.Name, &role.Rank, &role.System)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (o *Organizations) scanMembership(row *sql.Row) (*tenauth.Membership, error) {
	var m tenauth.Membership
	err := row.Scan(&m.ID, &m.UserID, &m.OrgID, &m.RoleID, &m.Active, &m.IsOwner, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenauth.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
