package tenauth

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenantkit/tenauth/internal"
)

func hashToken(plain string) string {
	digest := internal.HashToken(plain)
	return hex.EncodeToString(digest[:])
}

// issueTokenPair mints an access token and a fresh refresh token for the
// user. The refresh token record stores only the digest.
func (e *Engine) issueTokenPair(ctx context.Context, user *UserRecord) (TokenPair, error) {
	now := e.now()

	access, err := e.codec.Issue(user.ID, user.Email, now)
	if err != nil {
		return TokenPair{}, err
	}

	plain, err := internal.NewOpaqueToken(internal.OpaqueTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}

	rec := &RefreshTokenRecord{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(e.config.RefreshTokenTTL),
		CreatedAt: now,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
	}
	if err := e.stores.RefreshTokens.Create(ctx, rec); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  now.Add(e.codec.Lifetime()),
		RefreshToken:     plain,
		RefreshExpiresAt: rec.ExpiresAt,
	}, nil
}

// reuseGraceWindow bounds how fresh a revocation may be while still being
// attributed to a concurrent rotation of the same token rather than replay.
// Inside the window the caller fails with ErrTokenInvalid and the token
// family is left alone; the winner of the race keeps its successor.
const reuseGraceWindow = 10 * time.Second

// rotateRefreshToken redeems one refresh token for a successor.
//
// The successor is persisted before the old record is conditionally revoked,
// so a crash between the two steps leaves an extra usable token rather than
// a user locked out of their session. Redeeming a token revoked longer than
// reuseGraceWindow ago is treated as theft evidence: every token the user
// holds is revoked.
func (e *Engine) rotateRefreshToken(ctx context.Context, plain string) (*UserRecord, TokenPair, error) {
	now := e.now()

	rec, err := e.stores.RefreshTokens.GetByHash(ctx, hashToken(plain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, TokenPair{}, ErrTokenNotFound
		}
		return nil, TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !rec.RevokedAt.IsZero() {
		if now.Sub(rec.RevokedAt) < reuseGraceWindow {
			// A concurrent rotation committed between our lookup and theirs.
			e.metricInc(MetricRefreshFailure)
			return nil, TokenPair{}, ErrTokenInvalid
		}
		e.metricInc(MetricRefreshReuseDetected)
		e.logger.Warn(ctx, "refresh token reuse detected", "user_id", rec.UserID, "token_id", rec.ID)
		e.emitAudit(ctx, EventRefreshReuse, rec.UserID, "", false, ErrTokenInvalid)
		if err := e.stores.RefreshTokens.RevokeAllForUser(ctx, rec.UserID, now); err != nil {
			return nil, TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil, TokenPair{}, ErrTokenInvalid
	}

	if !now.Before(rec.ExpiresAt) {
		e.metricInc(MetricRefreshFailure)
		return nil, TokenPair{}, ErrTokenInvalid
	}

	user, err := e.stores.Users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, TokenPair{}, ErrTokenInvalid
		}
		return nil, TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !user.Active {
		e.metricInc(MetricRefreshFailure)
		return nil, TokenPair{}, ErrAccountDisabled
	}

	pair, err := e.issueTokenPair(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	performed, err := e.stores.RefreshTokens.MarkRevoked(ctx, rec.ID, now)
	if err != nil {
		return nil, TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !performed {
		// A concurrent rotation won. Retire our successor so exactly one
		// winner holds a live token.
		e.metricInc(MetricRefreshFailure)
		e.revokeByPlaintext(ctx, pair.RefreshToken, now)
		return nil, TokenPair{}, ErrTokenInvalid
	}

	e.metricInc(MetricRefreshSuccess)
	return user, pair, nil
}

func (e *Engine) revokeByPlaintext(ctx context.Context, plain string, now time.Time) {
	rec, err := e.stores.RefreshTokens.GetByHash(ctx, hashToken(plain))
	if err != nil {
		e.logger.Error(ctx, "failed to retire successor refresh token", "error", err)
		return
	}
	if _, err := e.stores.RefreshTokens.MarkRevoked(ctx, rec.ID, now); err != nil {
		e.logger.Error(ctx, "failed to retire successor refresh token", "error", err)
	}
}
