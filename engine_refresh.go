package tenauth

import (
	"context"
	"errors"
	"fmt"
)

// Refresh redeems a refresh token for a new token pair. Each token redeems
// at most once; redeeming a token rotated away longer than reuseGraceWindow
// ago revokes the user's whole token family.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrTokenNotFound
	}

	user, pair, err := e.rotateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, EventRefresh, user.ID, "", true, nil)
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Logout revokes one refresh token. Revoking a token that is already revoked
// or unknown is not an error.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}

	rec, err := e.stores.RefreshTokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, err := e.stores.RefreshTokens.MarkRevoked(ctx, rec.ID, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, EventLogout, rec.UserID, "", true, nil)
	return nil
}

// LogoutAll revokes every refresh token the user holds, across devices.
// Outstanding access tokens stay valid until expiry.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	if err := e.stores.RefreshTokens.RevokeAllForUser(ctx, userID, e.now()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, EventLogoutAll, userID, "", true, nil)
	return nil
}
