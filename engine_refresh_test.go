package tenauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func loginPair(t *testing.T, env *testEnv) (*UserRecord, TokenPair) {
	t.Helper()
	env.seedUser(t, "alice@example.com", "horse-staple-9")
	res, err := env.engine.Login(context.Background(), "alice@example.com", "horse-staple-9")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return res.User, res.Tokens
}

func TestRefreshRotates(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user, pair := loginPair(t, env)

	res, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Tokens.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must mint a new refresh token")
	}
	if res.User.ID != user.ID {
		t.Fatalf("user = %s, want %s", res.User.ID, user.ID)
	}
	if env.db.liveRefreshCount(user.ID) != 1 {
		t.Fatalf("live refresh tokens = %d, want 1", env.db.liveRefreshCount(user.ID))
	}
}

func TestRefreshReuseRevokesFamily(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user, pair := loginPair(t, env)

	second, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	// Replaying a token revoked longer ago than the grace window burns
	// everything, including the successor.
	env.advance(reuseGraceWindow + time.Second)
	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replay err = %v, want ErrTokenInvalid", err)
	}
	if env.db.liveRefreshCount(user.ID) != 0 {
		t.Fatalf("live refresh tokens after reuse = %d, want 0", env.db.liveRefreshCount(user.ID))
	}
	_, err = env.engine.Refresh(ctx, second.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("successor err = %v, want ErrTokenInvalid", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] == 0 {
		t.Fatal("reuse metric not bumped")
	}
}

func TestRefreshReplayWithinGraceWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user, pair := loginPair(t, env)

	second, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh: %v", err)
	}

	// A replay right after rotation looks like a lost race, not theft. The
	// caller fails but the successor survives.
	_, err = env.engine.Refresh(ctx, pair.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("replay err = %v, want ErrTokenInvalid", err)
	}
	if env.db.liveRefreshCount(user.ID) != 1 {
		t.Fatalf("live refresh tokens = %d, want 1", env.db.liveRefreshCount(user.ID))
	}
	if _, err := env.engine.Refresh(ctx, second.Tokens.RefreshToken); err != nil {
		t.Fatalf("successor must stay redeemable: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 0 {
		t.Fatal("grace-window replay must not count as reuse")
	}
}

func TestRefreshConcurrentRotationSingleWinner(t *testing.T) {
	env := newTestEnv(t, nil)
	user, pair := loginPair(t, env)

	const callers = 2
	var (
		start = make(chan struct{})
		wg    sync.WaitGroup
		wins  atomic.Int64
		errs  = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := env.engine.Refresh(context.Background(), pair.RefreshToken)
			if err == nil {
				wins.Add(1)
			}
			errs[i] = err
		}(i)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("winners = %d, want 1 (errors: %v)", wins.Load(), errs)
	}
	for _, err := range errs {
		if err != nil && !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("loser err = %v, want ErrTokenInvalid", err)
		}
	}
	if got := env.db.liveRefreshCount(user.ID); got != 1 {
		t.Fatalf("live refresh tokens = %d, want 1", got)
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRefreshReuseDetected] != 0 {
		t.Fatal("racing rotation must not count as reuse")
	}
}

// racingTokenStore lets another full rotation of the same token commit just
// before the wrapped MarkRevoked runs, so the conditional revoke reports
// that it did not perform the revocation.
type racingTokenStore struct {
	RefreshTokenStore
	refresh func() (*LoginResult, error)
	raced   bool
	winner  *LoginResult
	winErr  error
}

func (s *racingTokenStore) MarkRevoked(ctx context.Context, id string, at time.Time) (bool, error) {
	if !s.raced {
		s.raced = true
		s.winner, s.winErr = s.refresh()
	}
	return s.RefreshTokenStore.MarkRevoked(ctx, id, at)
}

func TestRefreshLosingRaceRevokesOwnSuccessor(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := newFakeDB()
	racer := &racingTokenStore{RefreshTokenStore: (*fakeRefresh)(db)}
	stores := db.stores()
	stores.RefreshTokens = racer

	engine, err := New().
		WithConfig(testEngineConfig()).
		WithStores(stores).
		WithRedis(client).
		WithNotifier(&recordingNotifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	if _, err := engine.Register(context.Background(), RegisterInput{
		Email:    "race@example.com",
		Password: "horse-staple-9",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res, err := engine.Login(context.Background(), "race@example.com", "horse-staple-9")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	racer.refresh = func() (*LoginResult, error) {
		return engine.Refresh(context.Background(), res.Tokens.RefreshToken)
	}

	_, err = engine.Refresh(context.Background(), res.Tokens.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("loser err = %v, want ErrTokenInvalid", err)
	}
	if racer.winErr != nil {
		t.Fatalf("winner Refresh: %v", racer.winErr)
	}
	if got := db.liveRefreshCount(res.User.ID); got != 1 {
		t.Fatalf("live refresh tokens = %d, want 1", got)
	}
	if _, err := engine.Refresh(context.Background(), racer.winner.Tokens.RefreshToken); err != nil {
		t.Fatalf("winner successor must stay redeemable: %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	_, pair := loginPair(t, env)

	env.advance(7*24*time.Hour + time.Minute)

	_, err := env.engine.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("err = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	env := newTestEnv(t, nil)
	loginPair(t, env)

	_, err := env.engine.Refresh(context.Background(), "completely-made-up")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("err = %v, want ErrTokenNotFound", err)
	}
	_, err = env.engine.Refresh(context.Background(), "")
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("empty token err = %v, want ErrTokenNotFound", err)
	}
}

func TestRefreshDisabledUser(t *testing.T) {
	env := newTestEnv(t, nil)
	user, pair := loginPair(t, env)
	env.db.user(user.ID).Active = false

	_, err := env.engine.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestLogoutRevokesSingleToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user, pair := loginPair(t, env)

	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if env.db.liveRefreshCount(user.ID) != 0 {
		t.Fatal("token still live after logout")
	}

	// Idempotent: repeat logout and unknown tokens are fine.
	if err := env.engine.Logout(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := env.engine.Logout(ctx, "unknown"); err != nil {
		t.Fatalf("unknown Logout: %v", err)
	}
}

func TestLogoutAll(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	user, _ := loginPair(t, env)

	// A second device.
	if _, err := env.engine.Login(ctx, "alice@example.com", "horse-staple-9"); err != nil {
		t.Fatal(err)
	}
	if env.db.liveRefreshCount(user.ID) != 2 {
		t.Fatalf("live tokens = %d, want 2", env.db.liveRefreshCount(user.ID))
	}

	if err := env.engine.LogoutAll(ctx, user.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if env.db.liveRefreshCount(user.ID) != 0 {
		t.Fatal("tokens survived LogoutAll")
	}
}

func TestValidateAccessExpired(t *testing.T) {
	env := newTestEnv(t, nil)
	_, pair := loginPair(t, env)

	// Engine clock moves but token verification uses wall time with a fixed
	// lifetime, so craft expiry by waiting out the codec instead: issue with
	// a past engine clock.
	env.advance(-time.Hour)
	res, err := env.engine.Login(context.Background(), "alice@example.com", "horse-staple-9")
	if err != nil {
		t.Fatal(err)
	}

	_, err = env.engine.ValidateAccess(context.Background(), res.Tokens.AccessToken)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}

	_, err = env.engine.ValidateAccess(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("current token: %v", err)
	}

	_, err = env.engine.ValidateAccess(context.Background(), "garbage")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage err = %v, want ErrTokenInvalid", err)
	}
}
