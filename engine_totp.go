package sshauth

import (
	"context"
	"time"
)

// SetupMFA begins TOTP enrollment. It re-verifies the current password,
// generates a fresh secret and backup codes, and stores them on the account
// in the pending state (MFAEnabled stays false). Nothing is enforced until
// [Engine.ConfirmMFA] proves the authenticator produces matching codes.
//
// Calling SetupMFA again before confirming replaces the pending material;
// the superseded secret can never confirm.
func (e *Engine) SetupMFA(ctx context.Context, userID int64, currentPassword string) (*MFASetup, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.MFAEnabled {
		return nil, ErrMFAAlreadyEnabled
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}

	secret, err := e.totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	backupCodes, err := e.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	account.MFASecret = secret
	account.BackupCodes = backupCodes
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return nil, err
	}

	uri := e.totp.ProvisionURI(secret, account.Email)
	qr, err := e.totp.QRDataURI(uri)
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventMFASetupRequested, true, account.ID, "", nil, nil)

	return &MFASetup{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qr,
		BackupCodes:     backupCodes,
	}, nil
}

// ConfirmMFA completes enrollment by round-tripping one code from the
// authenticator against the pending secret. Only a successful round trip
// flips MFAEnabled on; a wrong code leaves the pending state untouched for
// retry.
func (e *Engine) ConfirmMFA(ctx context.Context, userID int64, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if account.MFAEnabled {
		return ErrMFAAlreadyEnabled
	}
	if account.MFASecret == "" {
		return ErrMFANotInitiated
	}

	if !e.totp.VerifyCode(account.MFASecret, code, time.Now()) {
		e.metricInc(MetricMFAFailure)
		e.emitAudit(ctx, auditEventMFAFailure, false, account.ID, "", ErrInvalidMFACode, func() map[string]string {
			return map[string]string{"phase": "confirm"}
		})
		return ErrInvalidMFACode
	}

	account.MFAEnabled = true
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventMFAEnabled, true, account.ID, "", nil, nil)
	return nil
}

// DisableMFA turns the second factor off after re-verifying both factors:
// the current password and a live code (TOTP or a remaining backup code).
// The secret and remaining backup codes are discarded; trust rows become
// inert because device checks only run when MFA is enabled.
func (e *Engine) DisableMFA(ctx context.Context, userID int64, currentPassword, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !account.MFAEnabled {
		return ErrMFANotEnabled
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidPassword
	}

	if !e.totp.VerifyCode(account.MFASecret, code, time.Now()) {
		// Backup codes are about to be wiped, so a match here does not
		// need to be consumed and persisted separately.
		if _, matched := consumeBackupCode(account.BackupCodes, code); !matched {
			e.metricInc(MetricMFAFailure)
			e.emitAudit(ctx, auditEventMFAFailure, false, account.ID, "", ErrInvalidMFACode, func() map[string]string {
				return map[string]string{"phase": "disable"}
			})
			return ErrInvalidMFACode
		}
	}

	account.MFAEnabled = false
	account.MFASecret = ""
	account.BackupCodes = nil
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return err
	}

	e.emitAudit(ctx, auditEventMFADisabled, true, account.ID, "", nil, nil)
	return nil
}
