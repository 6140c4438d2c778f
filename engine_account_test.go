package sshauth

import (
	"context"
	"errors"
	"testing"
)

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEngine(t, testConfig())
	env.registerUser(t, "alice@example.com", "correct-horse")

	_, err := env.engine.Register(context.Background(), "alice@example.com", "other-password")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestRegister_RejectsEmptyInput(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	if _, err := env.engine.Register(ctx, "", "password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty email: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Register(ctx, "alice@example.com", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRegister_StoresOnlyHash(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")

	stored := env.users.stored(t, account.ID)
	if stored.PasswordHash == "correct-horse" || stored.PasswordHash == "" {
		t.Fatal("provider must receive a hash, never the plaintext")
	}
}

func TestChangePassword_Flow(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")
	ctx := context.Background()

	login, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := env.engine.ChangePassword(ctx, account.ID, "wrong", "new-password"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, account.ID, "correct-horse", ""); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("empty new password: expected ErrInvalidPassword, got %v", err)
	}

	if err := env.engine.ChangePassword(ctx, account.ID, "correct-horse", "new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	// Old credential gone, new one works.
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "new-password",
	}); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}

	// Sessions from before the change are revoked.
	if _, _, err := env.engine.ValidateToken(ctx, login.AccessToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected pre-change session revoked, got %v", err)
	}
}

func TestChangePassword_ClearsLockout(t *testing.T) {
	cfg := testConfig()
	env := newTestEngine(t, cfg)
	account := env.registerUser(t, "alice@example.com", "correct-horse")
	ctx := context.Background()

	for i := 0; i < cfg.Security.MaxLoginAttempts-1; i++ {
		failLogin(t, env, "alice@example.com")
	}

	if err := env.engine.ChangePassword(ctx, account.ID, "correct-horse", "new-password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	stored := env.users.stored(t, account.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("lockout state survived the change: %+v", stored)
	}
}

func TestChangeEmail_Flow(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")
	ctx := context.Background()

	// Mark verified so the reset is observable.
	stored := env.users.stored(t, account.ID)
	stored.IsVerified = true
	env.users.put(stored)

	if err := env.engine.ChangeEmail(ctx, account.ID, "wrong", "new@example.com"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}

	if err := env.engine.ChangeEmail(ctx, account.ID, "correct-horse", "new@example.com"); err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}

	stored = env.users.stored(t, account.ID)
	if stored.Email != "new@example.com" {
		t.Fatalf("email not changed: %s", stored.Email)
	}
	if stored.IsVerified {
		t.Fatal("email change must reset the verified flag")
	}

	// The old address no longer logs in; the new one does.
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "alice@example.com",
		Password: "correct-horse",
	}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old email still accepted: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "new@example.com",
		Password: "correct-horse",
	}); err != nil {
		t.Fatalf("new email rejected: %v", err)
	}
}

func TestChangeEmail_Conflict(t *testing.T) {
	env := newTestEngine(t, testConfig())
	alice := env.registerUser(t, "alice@example.com", "correct-horse")
	env.registerUser(t, "bob@example.com", "correct-horse")

	err := env.engine.ChangeEmail(context.Background(), alice.ID, "correct-horse", "bob@example.com")
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestChangeEmail_SameAddressIsNoOp(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")

	stored := env.users.stored(t, account.ID)
	stored.IsVerified = true
	env.users.put(stored)

	if err := env.engine.ChangeEmail(context.Background(), account.ID, "correct-horse", "alice@example.com"); err != nil {
		t.Fatalf("same-address change failed: %v", err)
	}

	// No-op keeps the verified flag.
	stored = env.users.stored(t, account.ID)
	if !stored.IsVerified {
		t.Fatal("no-op change must not reset verification")
	}
}

func TestUpdateProfile_PhoneNumber(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")
	ctx := context.Background()

	updated, err := env.engine.UpdateProfile(ctx, account.ID, " +1 555 0100 ")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.PhoneNumber != "+1 555 0100" {
		t.Fatalf("unexpected phone: %q", updated.PhoneNumber)
	}

	updated, err = env.engine.UpdateProfile(ctx, account.ID, "")
	if err != nil {
		t.Fatalf("UpdateProfile clear failed: %v", err)
	}
	if updated.PhoneNumber != "" {
		t.Fatalf("expected cleared phone, got %q", updated.PhoneNumber)
	}
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	env := newTestEngine(t, testConfig())
	ctx := context.Background()

	first, created, err := env.engine.SeedAdmin(ctx, "admin@example.com", "admin-password")
	if err != nil {
		t.Fatalf("SeedAdmin failed: %v", err)
	}
	if !created {
		t.Fatal("first seed must create the account")
	}
	if !first.IsAdmin {
		t.Fatal("seeded account must be an admin")
	}

	stored := env.users.stored(t, first.ID)
	if !stored.IsVerified {
		t.Fatal("seeded admin must be verified")
	}

	second, created, err := env.engine.SeedAdmin(ctx, "admin@example.com", "different-password")
	if err != nil {
		t.Fatalf("repeat SeedAdmin failed: %v", err)
	}
	if created {
		t.Fatal("repeat seed must not create a second account")
	}
	if second.ID != first.ID {
		t.Fatalf("repeat seed returned a different account: %d vs %d", second.ID, first.ID)
	}

	// The original password still logs in; the repeat's password was ignored.
	if _, err := env.engine.Authenticate(ctx, AuthenticateRequest{
		Email:    "admin@example.com",
		Password: "admin-password",
	}); err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
}

func TestGetAccount(t *testing.T) {
	env := newTestEngine(t, testConfig())
	account := env.registerUser(t, "alice@example.com", "correct-horse")

	got, err := env.engine.GetAccount(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	if got.Email != "alice@example.com" {
		t.Fatalf("unexpected account: %+v", got)
	}

	if _, err := env.engine.GetAccount(context.Background(), 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
