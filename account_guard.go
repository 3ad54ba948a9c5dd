package tenauth

import (
	"context"
	"fmt"
)

// recordLoginFailure advances the user's consecutive failure counter and
// opens a lockout window when the counter reaches the threshold. The window
// length is fixed; further failures inside it are never counted because
// locked accounts short-circuit before password verification.
func (e *Engine) recordLoginFailure(ctx context.Context, user *UserRecord) error {
	failed := user.FailedLoginCount + 1
	lockedUntil := user.LockedUntil

	if failed >= e.config.Lockout.Threshold {
		lockedUntil = e.now().Add(e.config.Lockout.Duration)
		e.metricInc(MetricLockoutStarted)
		e.logger.Warn(ctx, "account lockout started",
			"user_id", user.ID, "failed_count", failed, "locked_until", lockedUntil)
		e.emitAudit(ctx, EventAccountLocked, user.ID, "", false, ErrAccountLocked)
	}

	if err := e.stores.Users.SetLoginFailure(ctx, user.ID, failed, lockedUntil); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// clearLoginFailures resets the counter and any lockout window after a
// successful authentication and stamps the login time.
func (e *Engine) clearLoginFailures(ctx context.Context, user *UserRecord) error {
	if err := e.stores.Users.SetLoginSuccess(ctx, user.ID, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
