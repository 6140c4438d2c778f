package sshauth

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// isLocked reports whether the account's lockout window is active at now.
// The window ends at LockedUntil exactly: an attempt at the deadline is
// allowed.
func isLocked(account *Account, now time.Time) bool {
	return account.LockedUntil != nil && now.Before(*account.LockedUntil)
}

// recordLoginFailure advances the failed-attempt counter and, at the
// threshold, opens the lockout window. The counter is NOT reset when the
// lock engages: attempts past the threshold keep the account locked without
// inflating the count.
func (e *Engine) recordLoginFailure(ctx context.Context, account *Account) error {
	now := time.Now()

	if isLocked(account, now) {
		return nil
	}
	clearExpiredLock(account, now)

	account.FailedLoginAttempts++
	if account.FailedLoginAttempts >= e.config.Security.MaxLoginAttempts && account.LockedUntil == nil {
		lockedUntil := now.Add(e.config.Security.LockoutDuration)
		account.LockedUntil = &lockedUntil

		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditEventAccountAutoLocked, false, account.ID, "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"failed_attempts": strconv.Itoa(account.FailedLoginAttempts),
				"locked_until":    lockedUntil.UTC().Format(time.RFC3339),
			}
		})
	}

	return e.users.UpdateUser(ctx, account)
}

// recordLoginSuccess clears the failure counter and any lockout, and stamps
// the login time. Runs at password success, before the MFA gate: a pending
// challenge starts from a clean counter.
func (e *Engine) recordLoginSuccess(ctx context.Context, account *Account) error {
	now := time.Now()

	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.LastLogin = &now

	return e.users.UpdateUser(ctx, account)
}

// clearExpiredLock drops a lockout whose window has lapsed. The failure
// counter survives: the next failure after an expired lock re-locks
// immediately, since the count already sits at the threshold.
func clearExpiredLock(account *Account, now time.Time) {
	if account.LockedUntil != nil && !now.Before(*account.LockedUntil) {
		account.LockedUntil = nil
	}
}

// UnlockAccount clears the lockout window and failure counter for an
// account, the administrative override for a user locked out of a machine
// they need now.
func (e *Engine) UnlockAccount(ctx context.Context, userID int64) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	account.FailedLoginAttempts = 0
	account.LockedUntil = nil

	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventAccountUnlocked, true, account.ID, "", nil, nil)
	return nil
}
