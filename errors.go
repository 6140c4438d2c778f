package sshauth

import "errors"

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong
	// passwords alike; the two cases are deliberately indistinguishable to
	// prevent account enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout window is active.
	ErrAccountLocked = errors.New("account locked due to failed login attempts")
	// ErrAccountDisabled is returned for accounts marked inactive.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrInvalidMFACode is returned when neither the TOTP code nor a backup
	// code matched. MFA failures never advance the lockout counter.
	ErrInvalidMFACode = errors.New("invalid mfa code")
	// ErrInvalidPassword is returned by mutation flows (change password,
	// change email, disable MFA) when current-password re-verification fails.
	ErrInvalidPassword = errors.New("current password is incorrect")
	// ErrDuplicateEmail is returned when registration or an email change
	// collides with an existing account.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrMFAAlreadyEnabled is returned by SetupMFA and ConfirmMFA when MFA is
	// already active on the account.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrMFANotInitiated is returned by ConfirmMFA when no pending secret
	// exists for the account.
	ErrMFANotInitiated = errors.New("mfa setup not initiated")
	// ErrMFANotEnabled is returned by DisableMFA when MFA is off.
	ErrMFANotEnabled = errors.New("mfa not enabled")
	// ErrResetTokenInvalid is returned when no account carries the presented
	// reset token.
	ErrResetTokenInvalid = errors.New("invalid reset token")
	// ErrResetTokenExpired is returned when the reset token exists but its
	// expiry has passed.
	ErrResetTokenExpired = errors.New("reset token has expired")
	// ErrUserNotFound is the provider-level miss sentinel. It never surfaces
	// from Authenticate or RequestPasswordReset.
	ErrUserNotFound = errors.New("user not found")
	// ErrDeviceNotFound is the provider-level miss sentinel for trusted
	// device lookups.
	ErrDeviceNotFound = errors.New("trusted device not found")
	// ErrEngineNotReady is returned when an Engine method is called before a
	// successful Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSessionNotFound is returned when a session credential references a
	// revoked or expired session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrTokenInvalid is returned for malformed or tampered access tokens.
	ErrTokenInvalid = errors.New("invalid token")
)
