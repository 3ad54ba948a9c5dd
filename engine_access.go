package tenauth

import (
	"context"
	"errors"

	"github.com/tenantkit/tenauth/token"
)

// ValidateAccess verifies an access token string and returns the identity it
// proves. Purely computational: no storage round trip, so a disabled account
// keeps validating until its outstanding tokens expire.
func (e *Engine) ValidateAccess(_ context.Context, accessToken string) (*AccessIdentity, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.codec.Verify(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	return &AccessIdentity{
		UserID:    claims.UserID(),
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
