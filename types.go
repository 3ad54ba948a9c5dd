package tenauth

import (
	"context"
	"time"
)

// UserRecord is the persisted shape of an account as seen by the engine.
// Stores own the schema; the engine treats the record as authoritative state.
type UserRecord struct {
	ID            string
	Email         string
	PasswordHash  string
	FirstName     string
	LastName      string
	EmailVerified bool
	Active        bool

	// FailedLoginCount and LockedUntil drive lockout. LockedUntil is zero
	// when no lockout window is active.
	FailedLoginCount int
	LockedUntil      time.Time

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// Locked reports whether the account is inside an active lockout window.
func (u *UserRecord) Locked(now time.Time) bool {
	return !u.LockedUntil.IsZero() && now.Before(u.LockedUntil)
}

// RefreshTokenRecord is a stored opaque refresh token. Token holds the
// SHA-256 digest of the opaque value, never the value itself.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt time.Time
	CreatedAt time.Time

	// IP and UserAgent record where the token was minted. Advisory only;
	// nothing is enforced against them.
	IP        string
	UserAgent string
}

// Usable reports whether the record can still redeem: not revoked, not
// expired.
func (r *RefreshTokenRecord) Usable(now time.Time) bool {
	return r.RevokedAt.IsZero() && now.Before(r.ExpiresAt)
}

// ActionTokenKind discriminates single-use action tokens.
type ActionTokenKind string

const (
	// ActionVerifyEmail tokens prove ownership of a registered address.
	ActionVerifyEmail ActionTokenKind = "verify_email"
	// ActionResetPassword tokens authorize a password reset.
	ActionResetPassword ActionTokenKind = "reset_password"
)

// ActionTokenRecord is a stored single-use token for email verification or
// password reset. TokenHash holds the SHA-256 digest of the opaque value.
type ActionTokenRecord struct {
	ID        string
	UserID    string
	Kind      ActionTokenKind
	TokenHash string
	ExpiresAt time.Time
	UsedAt    time.Time
	CreatedAt time.Time
}

// Usable reports whether the token can still be consumed.
func (a *ActionTokenRecord) Usable(now time.Time) bool {
	return a.UsedAt.IsZero() && now.Before(a.ExpiresAt)
}

// Organization is a tenant.
type Organization struct {
	ID        string
	Name      string
	Slug      string
	Active    bool
	CreatedAt time.Time
}

// Role is a named permission bundle inside one organization. Rank orders
// roles for comparison; it carries no implicit permissions.
type Role struct {
	ID     string
	OrgID  string
	Name   string
	Rank   int
	System bool

	// Permissions holds the granted codes when the role is being created.
	// Read paths answer grant questions through RoleHasPermission instead of
	// loading this slice.
	Permissions []string
}

// Membership ties a user to an organization with exactly one role.
type Membership struct {
	ID        string
	UserID    string
	OrgID     string
	RoleID    string
	Active    bool
	IsOwner   bool
	CreatedAt time.Time
}

// Invitation is a pending offer of membership, addressed to an email that
// may or may not have an account yet.
type Invitation struct {
	ID         string
	OrgID      string
	Email      string
	RoleID     string
	TokenHash  string
	InvitedBy  string
	ExpiresAt  time.Time
	AcceptedAt time.Time
	CreatedAt  time.Time
}

// Pending reports whether the invitation can still be accepted.
func (i *Invitation) Pending(now time.Time) bool {
	return i.AcceptedAt.IsZero() && now.Before(i.ExpiresAt)
}

// RegisterInput is the payload accepted by [Engine.Register].
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// TokenPair is an access token plus the refresh token that can renew it.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is the successful outcome of Login or Refresh.
type LoginResult struct {
	User   *UserRecord
	Tokens TokenPair
}

// AccessIdentity is the authenticated identity extracted from a valid access
// token.
type AccessIdentity struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// NotificationKind names an outbound message type.
type NotificationKind string

const (
	// NotifyVerifyEmail carries an email verification token.
	NotifyVerifyEmail NotificationKind = "verify_email"
	// NotifyPasswordReset carries a password reset token.
	NotifyPasswordReset NotificationKind = "password_reset"
	// NotifyInvitation carries an organization invitation token.
	NotifyInvitation NotificationKind = "invitation"
)

// Notification is an outbound message handed to the configured Notifier.
// Token is the plaintext opaque token; it exists nowhere else.
type Notification struct {
	Kind      NotificationKind
	Recipient string
	Token     string
	OrgName   string
}

// Notifier delivers notifications. Delivery is fire-and-forget: the engine
// never fails an operation because a notification could not be sent.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, user *UserRecord) error
	GetByID(ctx context.Context, id string) (*UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*UserRecord, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	// SetLoginFailure records a failed attempt: the new counter value and,
	// when a lockout begins, the window end.
	SetLoginFailure(ctx context.Context, id string, failedCount int, lockedUntil time.Time) error
	// SetLoginSuccess clears the failure counter and lockout and stamps the
	// login time.
	SetLoginSuccess(ctx context.Context, id string, at time.Time) error
	SetVerified(ctx context.Context, id string) error
}

// RefreshTokenStore persists refresh token records.
type RefreshTokenStore interface {
	Create(ctx context.Context, rec *RefreshTokenRecord) error
	GetByHash(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error)
	// MarkRevoked revokes the record only if it is not already revoked and
	// reports whether this call performed the revocation.
	MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
}

// ActionTokenStore persists single-use verification and reset tokens.
type ActionTokenStore interface {
	Create(ctx context.Context, rec *ActionTokenRecord) error
	GetByHash(ctx context.Context, kind ActionTokenKind, tokenHash string) (*ActionTokenRecord, error)
	// MarkUsed consumes the token only if it is still unused and reports
	// whether this call performed the consumption.
	MarkUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// OrganizationStore persists tenants, roles, memberships, and invitations.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *Organization, roles []*Role) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)

	GetRoleByID(ctx context.Context, roleID string) (*Role, error)
	GetRoleByName(ctx context.Context, orgID, name string) (*Role, error)
	RoleHasPermission(ctx context.Context, roleID, code string) (bool, error)

	// ActiveMembership returns the user's active membership in the org, or
	// ErrNotFound.
	ActiveMembership(ctx context.Context, userID, orgID string) (*Membership, error)
	GetMembershipByID(ctx context.Context, id string) (*Membership, error)
	CreateMembership(ctx context.Context, m *Membership) error
	UpdateMembershipRole(ctx context.Context, id, roleID string) error
	DeactivateMembership(ctx context.Context, id string) error

	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitationByHash(ctx context.Context, tokenHash string) (*Invitation, error)
	HasPendingInvitation(ctx context.Context, orgID, email string, now time.Time) (bool, error)
	MarkInvitationAccepted(ctx context.Context, id string, at time.Time) error
}

// Stores bundles the persistence collaborators the engine requires.
type Stores struct {
	Users         UserStore
	RefreshTokens RefreshTokenStore
	ActionTokens  ActionTokenStore
	Organizations OrganizationStore
}
