package sshauth

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
)

// testConfig returns a config with cheap Argon2 parameters so hashing does
// not dominate test time.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.JWT.PrivateKey = []byte("test-signing-secret")
	return cfg
}

type mockUserProvider struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*Account

	updateErr error
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{nextID: 1, users: map[int64]*Account{}}
}

func (p *mockUserProvider) GetUserByEmail(_ context.Context, email string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == email {
			clone := cloneAccount(u)
			return clone, nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) GetUserByID(_ context.Context, id int64) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.users[id]; ok {
		return cloneAccount(u), nil
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) GetUserByResetToken(_ context.Context, token string) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.ResetToken != "" && u.ResetToken == token {
			return cloneAccount(u), nil
		}
	}
	return nil, ErrUserNotFound
}

func (p *mockUserProvider) CreateUser(_ context.Context, input CreateUserInput) (*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, u := range p.users {
		if u.Email == input.Email {
			return nil, ErrDuplicateEmail
		}
	}

	now := time.Now()
	account := &Account{
		ID:           p.nextID,
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
		IsAdmin:      input.IsAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	p.nextID++
	p.users[account.ID] = account

	return cloneAccount(account), nil
}

func (p *mockUserProvider) UpdateUser(_ context.Context, account *Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	if _, ok := p.users[account.ID]; !ok {
		return ErrUserNotFound
	}
	clone := cloneAccount(account)
	clone.UpdatedAt = time.Now()
	p.users[account.ID] = clone
	return nil
}

// stored returns the provider's committed row, bypassing the engine. Fails
// the test when the user does not exist.
func (p *mockUserProvider) stored(t *testing.T, id int64) *Account {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[id]
	if !ok {
		t.Fatalf("no stored user with id %d", id)
	}
	return cloneAccount(u)
}

// put installs a row directly, bypassing the engine.
func (p *mockUserProvider) put(account *Account) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if account.ID >= p.nextID {
		p.nextID = account.ID + 1
	}
	p.users[account.ID] = cloneAccount(account)
}

func cloneAccount(a *Account) *Account {
	clone := *a
	if a.BackupCodes != nil {
		clone.BackupCodes = append([]string(nil), a.BackupCodes...)
	}
	if a.LockedUntil != nil {
		v := *a.LockedUntil
		clone.LockedUntil = &v
	}
	if a.ResetTokenExpires != nil {
		v := *a.ResetTokenExpires
		clone.ResetTokenExpires = &v
	}
	if a.LastLogin != nil {
		v := *a.LastLogin
		clone.LastLogin = &v
	}
	return &clone
}

type mockDeviceProvider struct {
	mu      sync.Mutex
	devices map[string]*TrustedDevice
}

func newMockDeviceProvider() *mockDeviceProvider {
	return &mockDeviceProvider{devices: map[string]*TrustedDevice{}}
}

func (p *mockDeviceProvider) GetActiveDevice(_ context.Context, userID int64, fingerprint string) (*TrustedDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range p.devices {
		if d.UserID == userID && d.Fingerprint == fingerprint && d.Active {
			clone := *d
			return &clone, nil
		}
	}
	return nil, ErrDeviceNotFound
}

func (p *mockDeviceProvider) GetDeviceByID(_ context.Context, userID int64, deviceID string) (*TrustedDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.devices[deviceID]; ok && d.UserID == userID {
		clone := *d
		return &clone, nil
	}
	return nil, ErrDeviceNotFound
}

func (p *mockDeviceProvider) ListActiveDevices(_ context.Context, userID int64) ([]TrustedDevice, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []TrustedDevice
	for _, d := range p.devices {
		if d.UserID == userID && d.Active {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUsed.After(out[j].LastUsed) })
	return out, nil
}

func (p *mockDeviceProvider) SaveDevice(_ context.Context, device *TrustedDevice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := *device
	p.devices[device.ID] = &clone
	return nil
}

func (p *mockDeviceProvider) DeactivateExpired(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var n int64
	for _, d := range p.devices {
		if d.Active && d.ExpiresAt.Before(cutoff) {
			d.Active = false
			n++
		}
	}
	return n, nil
}

func (p *mockDeviceProvider) count(userID int64, activeOnly bool) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, d := range p.devices {
		if d.UserID == userID && (!activeOnly || d.Active) {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
	emails []string
	err    error
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.emails = append(n.emails, email)
	n.tokens = append(n.tokens, token)
	return nil
}

func (n *recordingNotifier) lastToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		return ""
	}
	return n.tokens[len(n.tokens)-1]
}

type testEnv struct {
	engine   *Engine
	users    *mockUserProvider
	devices  *mockDeviceProvider
	notifier *recordingNotifier
	redis    *miniredis.Miniredis
}

func newTestEngine(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	return newTestEngineWithSink(t, cfg, nil)
}

func newTestEngineWithSink(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	users := newMockUserProvider()
	devices := newMockDeviceProvider()
	notifier := &recordingNotifier{}

	builder := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserProvider(users).
		WithDeviceProvider(devices).
		WithNotifier(notifier)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{
		engine:   engine,
		users:    users,
		devices:  devices,
		notifier: notifier,
		redis:    mr,
	}
}

// registerUser creates an account through the public API and returns it.
func (env *testEnv) registerUser(t *testing.T, email, password string) *Account {
	t.Helper()
	account, err := env.engine.Register(context.Background(), email, password)
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return account
}

// enableMFA walks the full setup/confirm flow and returns the secret and
// backup codes.
func (env *testEnv) enableMFA(t *testing.T, userID int64, password string) *MFASetup {
	t.Helper()
	ctx := context.Background()

	setup, err := env.engine.SetupMFA(ctx, userID, password)
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	if err := env.engine.ConfirmMFA(ctx, userID, totpCodeAt(t, setup.Secret, time.Now())); err != nil {
		t.Fatalf("ConfirmMFA failed: %v", err)
	}
	return setup
}

// totpCodeAt computes the code an authenticator would show for secret at
// the given instant.
func totpCodeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom failed: %v", err)
	}
	return code
}
