package tenauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tenantkit/tenauth/internal"
)

// createActionToken mints a single-use opaque token of the given kind and
// persists its digest. The plaintext is returned once and never stored.
func (e *Engine) createActionToken(ctx context.Context, userID string, kind ActionTokenKind, ttl time.Duration) (string, error) {
	plain, err := internal.NewOpaqueToken(internal.OpaqueTokenBytes)
	if err != nil {
		return "", err
	}

	now := e.now()
	rec := &ActionTokenRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := e.stores.ActionTokens.Create(ctx, rec); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return plain, nil
}

// consumeActionToken validates and atomically consumes a single-use token,
// returning its record. Expired tokens map to ErrTokenExpired; unknown,
// wrong-kind, and already-used tokens map to ErrTokenInvalid.
func (e *Engine) consumeActionToken(ctx context.Context, kind ActionTokenKind, plain string) (*ActionTokenRecord, error) {
	if plain == "" {
		return nil, ErrTokenInvalid
	}

	rec, err := e.stores.ActionTokens.GetByHash(ctx, kind, hashToken(plain))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	now := e.now()
	if !rec.UsedAt.IsZero() {
		return nil, ErrTokenInvalid
	}
	if !now.Before(rec.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	performed, err := e.stores.ActionTokens.MarkUsed(ctx, rec.ID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !performed {
		// Lost a race with a concurrent consumption.
		return nil, ErrTokenInvalid
	}

	rec.UsedAt = now
	return rec, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
// Verifying an already-verified account is a no-op as long as the token is
// valid.
func (e *Engine) VerifyEmail(ctx context.Context, verificationToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	rec, err := e.consumeActionToken(ctx, ActionVerifyEmail, verificationToken)
	if err != nil {
		return err
	}

	if err := e.stores.Users.SetVerified(ctx, rec.UserID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricEmailVerified)
	e.emitAudit(ctx, EventEmailVerified, rec.UserID, "", true, nil)
	return nil
}
