package tenauth

import (
	"errors"
	"time"

	"github.com/tenantkit/tenauth/internal/audit"
	"github.com/tenantkit/tenauth/password"
	"github.com/tenantkit/tenauth/token"
)

// Config is the full engine configuration. Zero-value fields are filled from
// defaultConfig by the builder; Validate runs after the merge.
type Config struct {
	// AccessToken configures the stateless access token codec.
	AccessToken token.Config
	// RefreshTokenTTL is the opaque refresh token lifetime. Days-scale.
	RefreshTokenTTL time.Duration
	// Lockout configures failed-login lockout.
	Lockout LockoutConfig
	// Password configures hashing costs and the strength policy.
	Password PasswordConfig
	// VerificationTokenTTL bounds email verification tokens.
	VerificationTokenTTL time.Duration
	// ResetTokenTTL bounds password reset tokens.
	ResetTokenTTL time.Duration
	// InvitationTTL bounds organization invitations.
	InvitationTTL time.Duration
	// PermissionCacheTTL bounds cached permission decisions.
	PermissionCacheTTL time.Duration
	// Audit configures the async audit dispatcher.
	Audit audit.Config
	// Metrics controls counter collection.
	Metrics MetricsConfig
	// NotifyBuffer sizes the async notification dispatch queue.
	NotifyBuffer int
}

// LockoutConfig controls failed-login lockout behavior.
type LockoutConfig struct {
	// Threshold is the consecutive failure count that starts a lockout.
	Threshold int
	// Duration is the length of the lockout window.
	Duration time.Duration
}

// PasswordConfig groups hashing parameters with the acceptance policy.
type PasswordConfig struct {
	Params password.Params
	Policy password.Policy
}

func defaultConfig() Config {
	return Config{
		AccessToken: token.Config{
			Lifetime: 15 * time.Minute,
			Leeway:   30 * time.Second,
		},
		RefreshTokenTTL: 7 * 24 * time.Hour,
		Lockout: LockoutConfig{
			Threshold: 10,
			Duration:  30 * time.Minute,
		},
		Password: PasswordConfig{
			Params: password.DefaultParams(),
			Policy: password.DefaultPolicy(),
		},
		VerificationTokenTTL: 24 * time.Hour,
		ResetTokenTTL:        time.Hour,
		InvitationTTL:        7 * 24 * time.Hour,
		PermissionCacheTTL:   5 * time.Minute,
		Audit: audit.Config{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics:      MetricsConfig{Enabled: true},
		NotifyBuffer: 256,
	}
}

func (c *Config) validate() error {
	if len(c.AccessToken.SigningKey) == 0 {
		return errors.New("tenauth: access token signing key is required")
	}
	if c.RefreshTokenTTL < time.Hour {
		return errors.New("tenauth: refresh token ttl must be at least one hour")
	}
	if c.RefreshTokenTTL <= c.AccessToken.Lifetime {
		return errors.New("tenauth: refresh token ttl must exceed access token lifetime")
	}
	if c.Lockout.Threshold < 1 {
		return errors.New("tenauth: lockout threshold must be >= 1")
	}
	if c.Lockout.Duration < time.Minute {
		return errors.New("tenauth: lockout duration must be at least one minute")
	}
	if c.VerificationTokenTTL < time.Minute || c.ResetTokenTTL < time.Minute {
		return errors.New("tenauth: action token ttls must be at least one minute")
	}
	if c.ResetTokenTTL > c.VerificationTokenTTL {
		return errors.New("tenauth: reset token ttl must not exceed verification token ttl")
	}
	if c.InvitationTTL < time.Hour {
		return errors.New("tenauth: invitation ttl must be at least one hour")
	}
	if c.PermissionCacheTTL < time.Second || c.PermissionCacheTTL > time.Hour {
		return errors.New("tenauth: permission cache ttl must be between 1s and 1h")
	}
	if c.NotifyBuffer < 1 {
		return errors.New("tenauth: notify buffer must be >= 1")
	}
	return nil
}

// fill copies defaults into unset fields without overriding explicit values.
func (c *Config) fill(def Config) {
	if c.AccessToken.Lifetime == 0 {
		c.AccessToken.Lifetime = def.AccessToken.Lifetime
	}
	if c.AccessToken.Leeway == 0 {
		c.AccessToken.Leeway = def.AccessToken.Leeway
	}
	if c.RefreshTokenTTL == 0 {
		c.RefreshTokenTTL = def.RefreshTokenTTL
	}
	if c.Lockout.Threshold == 0 {
		c.Lockout.Threshold = def.Lockout.Threshold
	}
	if c.Lockout.Duration == 0 {
		c.Lockout.Duration = def.Lockout.Duration
	}
	if c.Password.Params == (password.Params{}) {
		c.Password.Params = def.Password.Params
	}
	if c.Password.Policy == (password.Policy{}) {
		c.Password.Policy = def.Password.Policy
	}
	if c.VerificationTokenTTL == 0 {
		c.VerificationTokenTTL = def.VerificationTokenTTL
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = def.ResetTokenTTL
	}
	if c.InvitationTTL == 0 {
		c.InvitationTTL = def.InvitationTTL
	}
	if c.PermissionCacheTTL == 0 {
		c.PermissionCacheTTL = def.PermissionCacheTTL
	}
	if c.Audit.BufferSize == 0 {
		c.Audit = def.Audit
	}
	if c.NotifyBuffer == 0 {
		c.NotifyBuffer = def.NotifyBuffer
	}
}
