package sshauth

import (
	"context"
	"errors"
	"time"

	"github.com/keselyoleren/sshauth/internal"
)

// RequestPasswordReset issues a reset token for the account and hands it to
// the notifier. The call reports success for unknown emails too, so the
// response never reveals whether an account exists.
//
// Issuing a new token replaces any outstanding one: at most one reset token
// is live per account. Notifier failures are audited and swallowed; the
// token stays valid so the user can retry delivery out of band.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventPasswordResetRequest, true, 0, "", nil, func() map[string]string {
				return map[string]string{"email": email, "known_account": "false"}
			})
			return nil
		}
		return err
	}

	token, err := internal.NewResetToken()
	if err != nil {
		return err
	}

	expires := time.Now().Add(e.config.PasswordReset.TokenTTL)
	account.ResetToken = token
	account.ResetTokenExpires = &expires
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, account.ID, "", nil, nil)

	if e.notifier != nil {
		if sendErr := e.notifier.SendPasswordReset(ctx, account.Email, token); sendErr != nil {
			e.warn("password reset notification failed: " + sendErr.Error())
			e.emitAudit(ctx, auditEventResetNotificationFailed, false, account.ID, "", sendErr, nil)
		}
	}

	return nil
}

// ConfirmPasswordReset redeems a token and installs the new password. A
// token is expired strictly after its deadline; redemption at the deadline
// succeeds.
//
// A successful reset fully rehabilitates the account: the token is
// consumed, the failure counter and any lockout are cleared, and every
// session is revoked so stolen sessions do not survive the new credential.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrResetTokenInvalid
	}

	account, err := e.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricPasswordResetFailure)
			e.emitAudit(ctx, auditEventPasswordResetFailure, false, 0, "", ErrResetTokenInvalid, nil)
			return ErrResetTokenInvalid
		}
		return err
	}

	if account.ResetTokenExpires == nil || time.Now().After(*account.ResetTokenExpires) {
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, account.ID, "", ErrResetTokenExpired, nil)
		return ErrResetTokenExpired
	}

	passwordHash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return err
	}

	account.PasswordHash = passwordHash
	account.ResetToken = ""
	account.ResetTokenExpires = nil
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	if e.sessions != nil {
		if _, revokeErr := e.sessions.DeleteAllForUser(ctx, account.ID); revokeErr != nil {
			e.warn("session revocation after password reset failed: " + revokeErr.Error())
		}
	}

	e.metricInc(MetricPasswordResetConfirm)
	e.emitAudit(ctx, auditEventPasswordResetConfirm, true, account.ID, "", nil, nil)
	return nil
}
