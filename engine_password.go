package tenauth

import (
	"context"
	"errors"
	"fmt"
)

// RequestPasswordReset issues a reset token for the account behind the email
// and hands it to the notifier. The call is deliberately silent about
// whether the email exists.
func (e *Engine) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	if err := e.ready(); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)

	email, err := normalizeEmail(emailAddr)
	if err != nil {
		return nil
	}

	user, err := e.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.Active {
		return nil
	}

	plain, err := e.createActionToken(ctx, user.ID, ActionResetPassword, e.config.ResetTokenTTL)
	if err != nil {
		return err
	}

	e.emitAudit(ctx, EventPasswordResetReq, user.ID, "", true, nil)
	e.notify.send(Notification{
		Kind:      NotifyPasswordReset,
		Recipient: user.Email,
		Token:     plain,
	})
	return nil
}

// ResetPassword consumes a reset token, installs the new password, and
// revokes every refresh token the user holds.
func (e *Engine) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		return validationErr("password", err.Error())
	}

	rec, err := e.consumeActionToken(ctx, ActionResetPassword, resetToken)
	if err != nil {
		return err
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.stores.Users.UpdatePassword(ctx, rec.UserID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.stores.RefreshTokens.RevokeAllForUser(ctx, rec.UserID, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, EventPasswordReset, rec.UserID, "", true, nil)
	return nil
}

// ChangePassword rotates the password of an authenticated user after
// re-verifying the current one, then revokes every refresh token so other
// devices must log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.config.Password.Policy.Validate(newPassword); err != nil {
		return validationErr("password", err.Error())
	}

	user, err := e.stores.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, EventPasswordChanged, userID, "", false, ErrInvalidCredentials)
		return ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := e.stores.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := e.stores.RefreshTokens.RevokeAllForUser(ctx, userID, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordChange)
	e.emitAudit(ctx, EventPasswordChanged, userID, "", true, nil)
	return nil
}
