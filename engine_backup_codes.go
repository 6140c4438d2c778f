package sshauth

import (
	"context"
	"strconv"
)

// RegenerateBackupCodes replaces the account's backup codes with a fresh
// batch after re-verifying the current password. Any unused codes from the
// old batch stop working immediately.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID int64, currentPassword string) ([]string, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	ok, err := e.passwordHash.Verify(currentPassword, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPassword
	}

	codes, err := e.totp.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}

	account.BackupCodes = codes
	if err := e.users.UpdateUser(ctx, account); err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditEventBackupCodesRegenerated, true, account.ID, "", nil, func() map[string]string {
		return map[string]string{"backup_codes": strconv.Itoa(len(codes))}
	})

	return codes, nil
}

// RemainingBackupCodes reports how many unused backup codes the account
// holds. Callers surface this so users regenerate before running dry.
func (e *Engine) RemainingBackupCodes(ctx context.Context, userID int64) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !account.MFAEnabled {
		return 0, ErrMFANotEnabled
	}

	return len(account.BackupCodes), nil
}
