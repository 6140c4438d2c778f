package sshauth

import (
	"context"
	"errors"
	"strings"
)

// GetAccount loads one account by ID.
func (e *Engine) GetAccount(ctx context.Context, userID int64) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	return e.users.GetUserByID(ctx, userID)
}

// ChangePassword installs a new password after re-verifying the current
// one. The lockout state is cleared alongside: a user who proved the old
// credential is not the attacker the counter was tracking. All sessions are
// revoked so the credential change takes effect everywhere.
func (e *Engine) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if newPassword == "" {
		return ErrInvalidPassword
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, account.ID, "", ErrInvalidPassword, nil)
		return ErrInvalidPassword
	}

	passwordHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = passwordHash
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	if e.sessions != nil {
		if _, revokeErr := e.sessions.DeleteAllForUser(ctx, account.ID); revokeErr != nil {
			e.warn("session revocation after password change failed: " + revokeErr.Error())
		}
	}

	e.emitAudit(ctx, auditEventPasswordChanged, true, account.ID, "", nil, nil)
	return nil
}

// ChangeEmail moves the account to a new address after re-verifying the
// current password. The verified flag resets: the new address has proven
// nothing yet.
func (e *Engine) ChangeEmail(ctx context.Context, userID int64, currentPassword, newEmail string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	newEmail = strings.TrimSpace(newEmail)
	if newEmail == "" {
		return ErrInvalidCredentials
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		e.emitAudit(ctx, auditEventEmailChangeFailure, false, account.ID, "", ErrInvalidPassword, nil)
		return ErrInvalidPassword
	}

	if newEmail == account.Email {
		return nil
	}

	existing, err := e.users.GetUserByEmail(ctx, newEmail)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return err
	}
	if err == nil && existing.ID != account.ID {
		e.emitAudit(ctx, auditEventEmailChangeFailure, false, account.ID, "", ErrDuplicateEmail, nil)
		return ErrDuplicateEmail
	}

	previous := account.Email
	account.Email = newEmail
	account.IsVerified = false
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventEmailChanged, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"previous": previous, "email": newEmail}
	})
	return nil
}

// UpdateProfile sets the account's contact phone number. An empty value
// clears it.
func (e *Engine) UpdateProfile(ctx context.Context, userID int64, phoneNumber string) (*Account, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	account.PhoneNumber = strings.TrimSpace(phoneNumber)
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// SeedAdmin ensures an administrator account exists, creating it verified
// and active on first call. Idempotent: when the email is already
// registered the existing account is returned unchanged and created is
// false, so deployment scripts can run it on every start.
func (e *Engine) SeedAdmin(ctx context.Context, email, password string) (*Account, bool, error) {
	if !e.ready() {
		return nil, false, ErrEngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, false, ErrInvalidCredentials
	}

	existing, err := e.users.GetUserByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	passwordHash, err := e.passwordHash.Hash(password)
	if err != nil {
		return nil, false, err
	}

	account, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      true,
	})
	if err != nil {
		// Lost a race with a concurrent seeder; the account exists now.
		if errors.Is(err, ErrDuplicateEmail) {
			account, err = e.users.GetUserByEmail(ctx, email)
			if err != nil {
				return nil, false, err
			}
			return account, false, nil
		}
		return nil, false, err
	}

	account.IsVerified = true
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return nil, false, err
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountSeeded, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return account, true, nil
}
