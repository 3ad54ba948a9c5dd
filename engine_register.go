package tenauth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
)

// Register creates an account, issues an email verification token, and hands
// it to the notifier. The account starts active but unverified.
func (e *Engine) Register(ctx context.Context, input RegisterInput) (*UserRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := e.config.Password.Policy.Validate(input.Password); err != nil {
		return nil, validationErr("password", err.Error())
	}

	hash, err := e.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &UserRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Active:       true,
		CreatedAt:    now,
	}

	if err := e.stores.Users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			e.metricInc(MetricRegisterDuplicate)
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, EventRegister, user.ID, "", true, nil)

	if err := e.sendVerification(ctx, user); err != nil {
		// The account exists; verification can be re-requested later.
		e.logger.Error(ctx, "verification token issue failed", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// RequestEmailVerification issues a fresh verification token for an existing
// unverified account. Silent when the email is unknown or already verified.
func (e *Engine) RequestEmailVerification(ctx context.Context, emailAddr string) error {
	if err := e.ready(); err != nil {
		return err
	}

	email, err := normalizeEmail(emailAddr)
	if err != nil {
		return err
	}

	user, err := e.stores.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.EmailVerified || !user.Active {
		return nil
	}

	return e.sendVerification(ctx, user)
}

func (e *Engine) sendVerification(ctx context.Context, user *UserRecord) error {
	plain, err := e.createActionToken(ctx, user.ID, ActionVerifyEmail, e.config.VerificationTokenTTL)
	if err != nil {
		return err
	}
	e.notify.send(Notification{
		Kind:      NotifyVerifyEmail,
		Recipient: user.Email,
		Token:     plain,
	})
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", validationErr("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationErr("email", "invalid address")
	}
	return email, nil
}
