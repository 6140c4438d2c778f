package sshauth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/keselyoleren/sshauth/session"
)

// Authenticate runs one login attempt through the full state machine:
// account lookup, lockout gate, password verification, MFA (with trusted
// device bypass and backup code fallback), optional device enrollment, and
// finally session plus access-token issuance.
//
// Ordering is deliberate. The lockout gate runs before password
// verification so a locked account reveals nothing about the password.
// Unknown emails and wrong passwords both return [ErrInvalidCredentials],
// and [ErrAccountDisabled] surfaces only once the password has verified.
// Password success resets the failure counter even when an MFA challenge
// follows; MFA failures return [ErrInvalidMFACode] and never advance the
// lockout counter.
//
// A result with MFARequired true is not an error: the password verified and
// the caller should re-submit with MFACode set.
func (e *Engine) Authenticate(ctx context.Context, req AuthenticateRequest) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	now := time.Now()

	account, err := e.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, 0, "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{"email": req.Email, "reason": "unknown_email"}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	// Lockout precedes password verification: a locked account must not
	// leak whether the supplied password was right.
	if isLocked(account, now) {
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, account.ID, "", ErrAccountLocked, nil)
		return nil, ErrAccountLocked
	}
	clearExpiredLock(account, now)

	ok, err := e.passwordHash.Verify(req.Password, account.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := e.recordLoginFailure(ctx, account); err != nil {
			return nil, err
		}
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "wrong_password"}
		})
		return nil, ErrInvalidCredentials
	}

	// The disabled check sits behind password verification so an
	// unauthenticated caller cannot probe which addresses hold accounts.
	if !account.IsActive {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.ID, "", ErrAccountDisabled, nil)
		return nil, ErrAccountDisabled
	}

	// Password success rehabilitates the counter immediately, before any
	// MFA gate: an MFA challenge or a wrong code must not inherit stale
	// failures from earlier attempts.
	if err := e.recordLoginSuccess(ctx, account); err != nil {
		return nil, err
	}

	deviceTrusted := false
	usedBackupCode := false

	if account.MFAEnabled {
		fingerprint := e.requestFingerprint(ctx, req)

		if fingerprint != "" {
			trusted, trustErr := e.isDeviceTrusted(ctx, account.ID, fingerprint, now)
			if trustErr != nil {
				return nil, trustErr
			}
			deviceTrusted = trusted
		}

		switch {
		case deviceTrusted:
			e.metricInc(MetricDeviceTrustBypass)

		case req.MFACode == "":
			e.metricInc(MetricMFARequired)
			e.emitAudit(ctx, auditEventMFARequired, true, account.ID, "", nil, nil)
			return &LoginResult{Account: account, MFARequired: true}, nil

		default:
			usedBackupCode, err = e.verifySecondFactor(ctx, account, req.MFACode, now)
			if err != nil {
				return nil, err
			}
		}

		if req.RememberDevice && !deviceTrusted && fingerprint != "" {
			name := req.DeviceName
			if name == "" {
				name = e.config.DeviceTrust.DefaultDeviceName
			}
			if _, trustErr := e.trustDevice(ctx, account.ID, fingerprint, name, now); trustErr != nil {
				e.warn("device enrollment failed: " + trustErr.Error())
			}
		}
	}

	sess, err := e.sessions.Create(ctx, account.ID, account.Email)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)

	accessToken, err := e.jwtManager.CreateAccess(account.ID, sess.SessionID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.ID, sess.SessionID, nil, func() map[string]string {
		metadata := map[string]string{}
		if deviceTrusted {
			metadata["device_trusted"] = "true"
		}
		if usedBackupCode {
			metadata["backup_code"] = "true"
		}
		return metadata
	})

	return &LoginResult{
		AccessToken:   accessToken,
		SessionID:     sess.SessionID,
		Account:       account,
		DeviceTrusted: deviceTrusted,
	}, nil
}

// verifySecondFactor checks code first as a TOTP code, then as a backup
// code. A matched backup code is consumed and the account committed before
// returning. Reports whether a backup code was used.
func (e *Engine) verifySecondFactor(ctx context.Context, account *Account, code string, now time.Time) (bool, error) {
	if e.totp.VerifyCode(account.MFASecret, code, now) {
		e.metricInc(MetricMFASuccess)
		e.emitAudit(ctx, auditEventMFASuccess, true, account.ID, "", nil, nil)
		return false, nil
	}

	remaining, matched := consumeBackupCode(account.BackupCodes, code)
	if matched {
		account.BackupCodes = remaining
		if err := e.users.UpdateUser(ctx, account); err != nil {
			return false, err
		}
		e.metricInc(MetricBackupCodeUsed)
		e.emitAudit(ctx, auditEventBackupCodeUsed, true, account.ID, "", nil, func() map[string]string {
			return map[string]string{"remaining": strconv.Itoa(len(remaining))}
		})
		return true, nil
	}

	e.metricInc(MetricMFAFailure)
	e.emitAudit(ctx, auditEventMFAFailure, false, account.ID, "", ErrInvalidMFACode, nil)
	return false, ErrInvalidMFACode
}

// Logout revokes one session. Revoking a session that no longer exists is
// not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() || e.sessions == nil {
		return ErrEngineNotReady
	}

	if err := e.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventLogout, true, 0, sessionID, nil, nil)
	return nil
}

// LogoutAll revokes every session the user holds and reports how many were
// revoked.
func (e *Engine) LogoutAll(ctx context.Context, userID int64) (int, error) {
	if !e.ready() || e.sessions == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	e.metricAdd(MetricSessionRevoked, uint64(revoked))
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{"revoked": strconv.Itoa(revoked)}
	})
	return revoked, nil
}

// ValidateToken verifies an access token and confirms its session is still
// live. Returns [ErrTokenInvalid] for bad tokens and [ErrSessionNotFound]
// when the session was revoked or expired out from under the token.
func (e *Engine) ValidateToken(ctx context.Context, accessToken string) (*Account, string, error) {
	if !e.ready() || e.jwtManager == nil || e.sessions == nil {
		return nil, "", ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, "", ErrTokenInvalid
	}

	sess, err := e.sessions.Get(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, "", ErrSessionNotFound
		}
		// Transport failure, not a revoked session.
		return nil, "", err
	}
	if sess.UserID != claims.UID {
		return nil, "", ErrTokenInvalid
	}

	account, err := e.users.GetUserByID(ctx, claims.UID)
	if err != nil {
		return nil, "", err
	}
	if !account.IsActive {
		return nil, "", ErrAccountDisabled
	}

	return account, sess.SessionID, nil
}
