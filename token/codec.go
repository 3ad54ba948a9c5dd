package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned by Verify when the token signature is valid but the
// embedded expiry has passed.
var ErrExpired = errors.New("access token expired")

// ErrMalformed is returned by Verify for any structural or signature failure.
var ErrMalformed = errors.New("access token malformed")

// Config defines a public type used by tenauth APIs.
//
// Config instances are intended to be configured during initialization and then
// treated as immutable.
type Config struct {
	// Lifetime is the fixed access token lifetime. Minutes-scale.
	Lifetime time.Duration
	// SigningKey is the HMAC-SHA256 secret. Verification uses the same key.
	SigningKey []byte
	// Issuer, when set, is embedded and required on verification.
	Issuer string
	// Leeway tolerates small clock skew on verification. Capped at 2 minutes.
	Leeway time.Duration
}

// Claims is the signed claim set carried by an access token: subject (user
// id), email, issued-at and expiry. Nothing else — the token is identity
// proof, not an authorization carrier.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Codec issues and verifies signed access tokens. Both operations are pure:
// no storage round trip, no revocation list. Trust rests on the signature and
// the embedded expiry alone.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Lifetime <= 0 {
		return nil, errors.New("token: lifetime must be positive")
	}
	if cfg.Lifetime > time.Hour {
		return nil, errors.New("token: lifetime exceeds the short-lived ceiling")
	}
	if len(cfg.SigningKey) < 32 {
		return nil, errors.New("token: signing key must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}

	return &Codec{config: cfg}, nil
}

// Lifetime reports the fixed configured lifetime.
func (c *Codec) Lifetime() time.Duration {
	return c.config.Lifetime
}

// Issue signs a new access token for the given user. expiry = issued-at +
// configured lifetime, always.
func (c *Codec) Issue(userID, email string, now time.Time) (string, error) {
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.config.Lifetime)),
			Issuer:    c.config.Issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.SigningKey)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token string. It distinguishes exactly two
// failure kinds: [ErrExpired] and [ErrMalformed].
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.config.SigningKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrMalformed
	}

	return claims, nil
}
