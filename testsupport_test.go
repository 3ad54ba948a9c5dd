package tenauth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// fakeDB is the in-memory store bundle for engine tests. Call counters let
// tests assert how often the engine reached for storage.
type fakeDB struct {
	mu sync.Mutex

	users       map[string]*UserRecord
	refresh     map[string]*RefreshTokenRecord
	action      map[string]*ActionTokenRecord
	orgs        map[string]*Organization
	roles       map[string]*Role
	perms       map[string]map[string]bool
	memberships map[string]*Membership
	invitations map[string]*Invitation

	calls map[string]int

	failNext map[string]error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		users:       map[string]*UserRecord{},
		refresh:     map[string]*RefreshTokenRecord{},
		action:      map[string]*ActionTokenRecord{},
		orgs:        map[string]*Organization{},
		roles:       map[string]*Role{},
		perms:       map[string]map[string]bool{},
		memberships: map[string]*Membership{},
		invitations: map[string]*Invitation{},
		calls:       map[string]int{},
		failNext:    map[string]error{},
	}
}

func (db *fakeDB) stores() Stores {
	return Stores{
		Users:         (*fakeUsers)(db),
		RefreshTokens: (*fakeRefresh)(db),
		ActionTokens:  (*fakeAction)(db),
		Organizations: (*fakeOrgs)(db),
	}
}

func (db *fakeDB) callCount(name string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.calls[name]
}

// enter bumps the call counter and pops any injected failure.
func (db *fakeDB) enter(name string) error {
	db.calls[name]++
	if err, ok := db.failNext[name]; ok {
		delete(db.failNext, name)
		return err
	}
	return nil
}

func (db *fakeDB) user(id string) *UserRecord {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.users[id]
}

func (db *fakeDB) liveRefreshCount(userID string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, rec := range db.refresh {
		if rec.UserID == userID && rec.RevokedAt.IsZero() {
			n++
		}
	}
	return n
}

type fakeUsers fakeDB

func (s *fakeUsers) Create(_ context.Context, u *UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.Create"); err != nil {
		return err
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *fakeUsers) GetByID(_ context.Context, id string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUsers) GetByEmail(_ context.Context, email string) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.GetByEmail"); err != nil {
		return nil, err
	}
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeUsers) UpdatePassword(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.UpdatePassword"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (s *fakeUsers) SetLoginFailure(_ context.Context, id string, count int, lockedUntil time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.SetLoginFailure"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FailedLoginCount = count
	u.LockedUntil = lockedUntil
	return nil
}

func (s *fakeUsers) SetLoginSuccess(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.SetLoginSuccess"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.FailedLoginCount = 0
	u.LockedUntil = time.Time{}
	u.LastLoginAt = at
	return nil
}

func (s *fakeUsers) SetVerified(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("users.SetVerified"); err != nil {
		return err
	}
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EmailVerified = true
	return nil
}

type fakeRefresh fakeDB

func (s *fakeRefresh) Create(_ context.Context, rec *RefreshTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("refresh.Create"); err != nil {
		return err
	}
	cp := *rec
	s.refresh[rec.ID] = &cp
	return nil
}

func (s *fakeRefresh) GetByHash(_ context.Context, hash string) (*RefreshTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("refresh.GetByHash"); err != nil {
		return nil, err
	}
	for _, rec := range s.refresh {
		if rec.TokenHash == hash {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeRefresh) MarkRevoked(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("refresh.MarkRevoked"); err != nil {
		return false, err
	}
	rec, ok := s.refresh[id]
	if !ok {
		return false, ErrNotFound
	}
	if !rec.RevokedAt.IsZero() {
		return false, nil
	}
	rec.RevokedAt = at
	return true, nil
}

func (s *fakeRefresh) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("refresh.RevokeAllForUser"); err != nil {
		return err
	}
	for _, rec := range s.refresh {
		if rec.UserID == userID && rec.RevokedAt.IsZero() {
			rec.RevokedAt = at
		}
	}
	return nil
}

type fakeAction fakeDB

func (s *fakeAction) Create(_ context.Context, rec *ActionTokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("action.Create"); err != nil {
		return err
	}
	cp := *rec
	s.action[rec.ID] = &cp
	return nil
}

func (s *fakeAction) GetByHash(_ context.Context, kind ActionTokenKind, hash string) (*ActionTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("action.GetByHash"); err != nil {
		return nil, err
	}
	for _, rec := range s.action {
		if rec.Kind == kind && rec.TokenHash == hash {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeAction) MarkUsed(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("action.MarkUsed"); err != nil {
		return false, err
	}
	rec, ok := s.action[id]
	if !ok {
		return false, ErrNotFound
	}
	if !rec.UsedAt.IsZero() {
		return false, nil
	}
	rec.UsedAt = at
	return true, nil
}

type fakeOrgs fakeDB

func (s *fakeOrgs) CreateOrganization(_ context.Context, org *Organization, roles []*Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.CreateOrganization"); err != nil {
		return err
	}
	cp := *org
	s.orgs[org.ID] = &cp
	for _, role := range roles {
		rc := *role
		s.roles[role.ID] = &rc
		grants := map[string]bool{}
		for _, code := range role.Permissions {
			grants[code] = true
		}
		s.perms[role.ID] = grants
	}
	return nil
}

func (s *fakeOrgs) GetOrganization(_ context.Context, id string) (*Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.GetOrganization"); err != nil {
		return nil, err
	}
	org, ok := s.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (s *fakeOrgs) GetRoleByID(_ context.Context, id string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.GetRoleByID"); err != nil {
		return nil, err
	}
	role, ok := s.roles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (s *fakeOrgs) GetRoleByName(_ context.Context, orgID, name string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.GetRoleByName"); err != nil {
		return nil, err
	}
	for _, role := range s.roles {
		if role.OrgID == orgID && role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeOrgs) RoleHasPermission(_ context.Context, roleID, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.RoleHasPermission"); err != nil {
		return false, err
	}
	return s.perms[roleID][code], nil
}

func (s *fakeOrgs) ActiveMembership(_ context.Context, userID, orgID string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.ActiveMembership"); err != nil {
		return nil, err
	}
	for _, m := range s.memberships {
		if m.UserID == userID && m.OrgID == orgID && m.Active {
			cp := *m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeOrgs) GetMembershipByID(_ context.Context, id string) (*Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.GetMembershipByID"); err != nil {
		return nil, err
	}
	m, ok := s.memberships[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *fakeOrgs) CreateMembership(_ context.Context, m *Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.CreateMembership"); err != nil {
		return err
	}
	cp := *m
	s.memberships[m.ID] = &cp
	return nil
}

func (s *fakeOrgs) UpdateMembershipRole(_ context.Context, id, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.UpdateMembershipRole"); err != nil {
		return err
	}
	m, ok := s.memberships[id]
	if !ok {
		return ErrNotFound
	}
	m.RoleID = roleID
	return nil
}

func (s *fakeOrgs) DeactivateMembership(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.DeactivateMembership"); err != nil {
		return err
	}
	m, ok := s.memberships[id]
	if !ok {
		return ErrNotFound
	}
	m.Active = false
	return nil
}

func (s *fakeOrgs) CreateInvitation(_ context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.CreateInvitation"); err != nil {
		return err
	}
	cp := *inv
	s.invitations[inv.ID] = &cp
	return nil
}

func (s *fakeOrgs) GetInvitationByHash(_ context.Context, hash string) (*Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.GetInvitationByHash"); err != nil {
		return nil, err
	}
	for _, inv := range s.invitations {
		if inv.TokenHash == hash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeOrgs) HasPendingInvitation(_ context.Context, orgID, email string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.HasPendingInvitation"); err != nil {
		return false, err
	}
	for _, inv := range s.invitations {
		if inv.OrgID == orgID && inv.Email == email && inv.Pending(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeOrgs) MarkInvitationAccepted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := (*fakeDB)(s).enter("orgs.MarkInvitationAccepted"); err != nil {
		return err
	}
	inv, ok := s.invitations[id]
	if !ok {
		return ErrNotFound
	}
	inv.AcceptedAt = at
	return nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (n *recordingNotifier) Send(_ context.Context, notif Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notif)
	return nil
}

func (n *recordingNotifier) byKind(kind NotificationKind) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, notif := range n.sent {
		if notif.Kind == kind {
			out = append(out, notif)
		}
	}
	return out
}

// waitForNotifications polls until the notifier has at least n messages of
// the kind, or the deadline passes. Delivery is async.
func (n *recordingNotifier) waitFor(t *testing.T, kind NotificationKind, want int) []Notification {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := n.byKind(kind); len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s notifications", want, kind)
	return nil
}

func testEngineConfig() Config {
	cfg := defaultConfig()
	cfg.AccessToken.SigningKey = []byte("0123456789abcdef0123456789abcdef")
	// Keep hashing cheap in tests.
	cfg.Password.Params.Memory = 8 * 1024
	cfg.Password.Params.Time = 1
	cfg.Password.Params.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine   *Engine
	db       *fakeDB
	notifier *recordingNotifier
	redis    *miniredis.Miniredis
	now      time.Time
}

// advance moves the engine clock forward.
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	cfg := testEngineConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := newFakeDB()
	notifier := &recordingNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithStores(db.stores()).
		WithRedis(client).
		WithNotifier(notifier).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })

	env := &testEnv{
		engine:   engine,
		db:       db,
		notifier: notifier,
		redis:    mr,
		// Anchored to wall time because access token verification inside
		// the JWT parser uses the real clock.
		now: time.Now().UTC().Truncate(time.Second),
	}
	engine.now = func() time.Time { return env.now }
	return env
}

// seedUser registers a user through the engine and returns the record.
func (env *testEnv) seedUser(t *testing.T, email, pass string) *UserRecord {
	t.Helper()
	user, err := env.engine.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return user
}

// seedOrg creates an org owned by the user.
func (env *testEnv) seedOrg(t *testing.T, ownerID, name, slug string) *Organization {
	t.Helper()
	org, err := env.engine.CreateOrganization(context.Background(), ownerID, name, slug)
	if err != nil {
		t.Fatalf("CreateOrganization(%s): %v", name, err)
	}
	return org
}
