package sshauth

import (
	"context"
	"time"
)

// Account is the full account record exchanged with [UserProvider]. The
// account row is the unit of mutation: the engine mutates fields on a copy it
// loaded and commits the whole row through [UserProvider.UpdateUser]
// immediately, never batching across operations.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	PhoneNumber  string

	IsActive   bool
	IsVerified bool
	IsAdmin    bool

	// MFASecret present with MFAEnabled false is the transient
	// "setup pending" state between SetupMFA and ConfirmMFA.
	MFAEnabled  bool
	MFASecret   string
	BackupCodes []string

	FailedLoginAttempts int
	LockedUntil         *time.Time

	// At most one active reset token per account; issuing a new one
	// silently replaces the prior.
	ResetToken        string
	ResetTokenExpires *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	LastLogin *time.Time
}

// TrustedDevice is a device granted MFA bypass for one account. Rows are
// soft-deleted (Active=false) by revocation or the expiry sweep, never
// hard-deleted by normal flow.
type TrustedDevice struct {
	ID          string
	UserID      int64
	Fingerprint string
	Name        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastUsed    time.Time
	Active      bool
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	IsAdmin      bool
}

// UserProvider is the persistence interface callers must implement to
// integrate the engine with their account storage.
//
// Lookup misses return [ErrUserNotFound]. CreateUser returns
// [ErrDuplicateEmail] when the email is already taken (uniqueness is
// enforced at lookup, emails compared as stored). Every UpdateUser call must
// commit before returning: lockout and reset state guard subsequent requests.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (*Account, error)
	GetUserByID(ctx context.Context, id int64) (*Account, error)
	GetUserByResetToken(ctx context.Context, token string) (*Account, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*Account, error)
	UpdateUser(ctx context.Context, account *Account) error
}

// DeviceProvider is the persistence interface for trusted-device rows.
//
// GetActiveDevice and GetDeviceByID return [ErrDeviceNotFound] on a miss.
// ListActiveDevices orders rows most recently used first. SaveDevice inserts
// when the ID is new and updates otherwise. DeactivateExpired flips Active
// off for every row whose expiry precedes cutoff and reports how many.
type DeviceProvider interface {
	GetActiveDevice(ctx context.Context, userID int64, fingerprint string) (*TrustedDevice, error)
	GetDeviceByID(ctx context.Context, userID int64, deviceID string) (*TrustedDevice, error)
	ListActiveDevices(ctx context.Context, userID int64) ([]TrustedDevice, error)
	SaveDevice(ctx context.Context, device *TrustedDevice) error
	DeactivateExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Notifier delivers a password-reset link for the given token. A failure
// must not invalidate the token: the engine audits the error and reports the
// reset request as accepted regardless.
type Notifier interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// AuthenticateRequest carries one login attempt. DeviceFingerprint may be
// supplied by the routing layer; when empty it is derived from the
// user-agent and client IP attached to the context (see [WithUserAgent] and
// [WithClientIP]).
type AuthenticateRequest struct {
	Email             string
	Password          string
	MFACode           string
	DeviceFingerprint string
	RememberDevice    bool
	DeviceName        string
}

// LoginResult is returned by [Engine.Authenticate]. MFARequired true means
// the password verified but a second factor is needed; it is flow control,
// not a failure, and no tokens are present. DeviceTrusted reports whether
// the device was already trusted before this attempt.
type LoginResult struct {
	AccessToken string
	SessionID   string
	Account     *Account

	MFARequired   bool
	DeviceTrusted bool
}

// MFASetup is returned by [Engine.SetupMFA]. QRCode is a data:image/png
// base64 URI rendering the provisioning URI for authenticator enrollment.
// Nothing is enabled until the code round-trip in ConfirmMFA succeeds.
type MFASetup struct {
	Secret          string
	ProvisioningURI string
	QRCode          string
	BackupCodes     []string
}
