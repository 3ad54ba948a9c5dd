package tenauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "horse-staple-9")

	res, err := env.engine.Login(ctx, "alice@example.com", "horse-staple-9")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Tokens.AccessToken == "" || res.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if !res.User.LastLoginAt.Equal(env.now) {
		t.Fatalf("LastLoginAt = %v, want %v", res.User.LastLoginAt, env.now)
	}

	identity, err := env.engine.ValidateAccess(ctx, res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if identity.UserID != res.User.ID || identity.Email != "alice@example.com" {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestLoginEmailCaseNormalized(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "Alice@Example.com", "horse-staple-9")

	if _, err := env.engine.Login(context.Background(), "ALICE@example.COM", "horse-staple-9"); err != nil {
		t.Fatalf("Login with differently-cased email: %v", err)
	}
}

func TestLoginUnknownAndWrongPasswordIndistinguishable(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "horse-staple-9")

	_, errUnknown := env.engine.Login(ctx, "ghost@example.com", "whatever-pass")
	_, errWrong := env.engine.Login(ctx, "alice@example.com", "not-the-password")

	if !errors.Is(errUnknown, ErrInvalidCredentials) || !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("unknown=%v wrong=%v, both must be ErrInvalidCredentials", errUnknown, errWrong)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.seedUser(t, "alice@example.com", "horse-staple-9")
	env.db.user(user.ID).Active = false

	_, err := env.engine.Login(context.Background(), "alice@example.com", "horse-staple-9")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestLoginDisabledAccountWrongPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.seedUser(t, "alice@example.com", "horse-staple-9")
	env.db.user(user.ID).Active = false

	// Without the password the account's disabled state stays hidden, and
	// the failure still counts toward lockout.
	_, err := env.engine.Login(context.Background(), "alice@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if got := env.db.user(user.ID).FailedLoginCount; got != 1 {
		t.Fatalf("failed login count = %d, want 1", got)
	}
}

func TestLockoutAfterTenFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com", "horse-staple-9")

	for i := 0; i < 10; i++ {
		_, err := env.engine.Login(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	rec := env.db.user(user.ID)
	if rec.FailedLoginCount != 10 {
		t.Fatalf("FailedLoginCount = %d, want 10", rec.FailedLoginCount)
	}
	if !rec.Locked(env.now) {
		t.Fatal("account should be locked after the tenth failure")
	}

	// The eleventh attempt fails with AccountLocked even with the correct
	// password.
	_, err := env.engine.Login(ctx, "alice@example.com", "horse-staple-9")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
}

func TestLockoutAttemptsDoNotExtendWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com", "horse-staple-9")

	for i := 0; i < 10; i++ {
		_, _ = env.engine.Login(ctx, "alice@example.com", "wrong-password")
	}
	lockedUntil := env.db.user(user.ID).LockedUntil
	failures := env.db.callCount("users.SetLoginFailure")

	// Hammering a locked account must neither move the window nor touch the
	// counter.
	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(ctx, "alice@example.com", "wrong-password")
		if !errors.Is(err, ErrAccountLocked) {
			t.Fatalf("err = %v, want ErrAccountLocked", err)
		}
	}
	if got := env.db.user(user.ID).LockedUntil; !got.Equal(lockedUntil) {
		t.Fatalf("lock window moved: %v -> %v", lockedUntil, got)
	}
	if got := env.db.callCount("users.SetLoginFailure"); got != failures {
		t.Fatalf("SetLoginFailure called %d times during lockout, want %d", got, failures)
	}
}

func TestLockoutExpiresAndCounterResets(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user := env.seedUser(t, "alice@example.com", "horse-staple-9")

	for i := 0; i < 10; i++ {
		_, _ = env.engine.Login(ctx, "alice@example.com", "wrong-password")
	}

	env.advance(30*time.Minute + time.Second)

	res, err := env.engine.Login(ctx, "alice@example.com", "horse-staple-9")
	if err != nil {
		t.Fatalf("Login after lock expiry: %v", err)
	}
	if res.User.FailedLoginCount != 0 {
		t.Fatalf("FailedLoginCount = %d, want 0", res.User.FailedLoginCount)
	}
	rec := env.db.user(user.ID)
	if rec.FailedLoginCount != 0 || !rec.LockedUntil.IsZero() {
		t.Fatalf("stored counter not reset: %+v", rec)
	}
}

func TestLoginMetrics(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.seedUser(t, "alice@example.com", "horse-staple-9")

	_, _ = env.engine.Login(ctx, "alice@example.com", "horse-staple-9")
	_, _ = env.engine.Login(ctx, "alice@example.com", "wrong-password")

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("counters = %+v", snap.Counters)
	}
}
