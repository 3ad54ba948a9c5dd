package tenauth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Login authenticates an email/password pair and returns a fresh token pair.
//
// Failure ordering is fixed: a locked account is reported before the
// password is checked, so attempts during a lockout window never extend it,
// and a deactivated account is reported only after the password verifies.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, emailAddr, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(emailAddr)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	user, err := e.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			// Burn a hash anyway so unknown emails cost the same as known
			// ones.
			_, _ = e.hasher.Verify(pass, burnHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	if user.Locked(now) {
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, EventLoginFailed, user.ID, "", false, ErrAccountLocked)
		return nil, ErrAccountLocked
	}
	ok, err := e.hasher.Verify(pass, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginFailed, user.ID, "", false, ErrInvalidCredentials)
		if err := e.recordLoginFailure(ctx, user); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	// Only revealed once the caller has proven the password, so probing a
	// deactivated account without it looks like any other bad login.
	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, EventLoginFailed, user.ID, "", false, ErrAccountDisabled)
		return nil, ErrAccountDisabled
	}

	if err := e.clearLoginFailures(ctx, user); err != nil {
		return nil, err
	}

	if upgrade, _ := e.hasher.NeedsRehash(user.PasswordHash); upgrade {
		if rehash, err := e.hasher.Hash(pass); err == nil {
			if err := e.stores.Users.UpdatePassword(ctx, user.ID, rehash); err != nil {
				e.logger.Warn(ctx, "password rehash upgrade failed", "user_id", user.ID, "error", err)
			}
		}
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	user.FailedLoginCount = 0
	user.LockedUntil = time.Time{}
	user.LastLoginAt = now

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, EventLogin, user.ID, "", true, nil)
	return &LoginResult{User: user, Tokens: pair}, nil
}

// burnHash is a valid argon2id hash of random bytes used to equalize timing
// for unknown emails.
const burnHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$Z3VhcmRndWFyZGd1YXJkZ3VhcmRndWFyZGd1YXJ4"
