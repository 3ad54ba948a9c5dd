package tenauth

import "github.com/tenantkit/tenauth/internal/audit"

// AuditEvent re-exports the audit record type for sink implementers.
type AuditEvent = audit.Event

// AuditSink re-exports the audit sink interface.
type AuditSink = audit.Sink

// NewAuditChannelSink returns a sink that buffers events into a channel.
func NewAuditChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// Audit event type names. Stable: log pipelines key on them.
const (
	EventLogin              = "auth.login"
	EventLoginFailed        = "auth.login_failed"
	EventAccountLocked      = "auth.account_locked"
	EventLogout             = "auth.logout"
	EventLogoutAll          = "auth.logout_all"
	EventRefresh            = "auth.refresh"
	EventRefreshReuse       = "auth.refresh_reuse"
	EventRegister           = "auth.register"
	EventEmailVerified      = "auth.email_verified"
	EventPasswordResetReq   = "auth.password_reset_requested"
	EventPasswordReset      = "auth.password_reset"
	EventPasswordChanged    = "auth.password_changed"
	EventTenantDenied       = "tenant.denied"
	EventPermissionDenied   = "perm.denied"
	EventOrgCreated         = "org.created"
	EventInvitationCreated  = "org.invitation_created"
	EventInvitationAccepted = "org.invitation_accepted"
	EventMemberRoleChanged  = "org.member_role_changed"
	EventMemberRemoved      = "org.member_removed"
)
