package sshauth

import (
	"errors"
	"time"
)

// Config defines the engine configuration. Config instances are intended to
// be set up once before [Builder.Build] and treated as immutable afterwards;
// the engine never reads ambient process state.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Password      PasswordConfig
	TOTP          TOTPConfig
	Security      SecurityConfig
	PasswordReset PasswordResetConfig
	DeviceTrust   DeviceTrustConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access-token signer.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis-backed session store.
type SessionConfig struct {
	RedisPrefix     string
	SessionLifetime time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the Argon2id parameters for the credential hasher.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
TOTP / MFA CONFIG
====================================
*/

// TOTPConfig configures code verification and enrollment material. The
// defaults (SHA1, 6 digits, 30 s period, ±1 step skew) are what authenticator
// apps interoperate with; change them only if every enrolled client changes.
type TOTPConfig struct {
	Issuer           string
	Digits           int
	Period           int
	Skew             int
	BackupCodeCount  int
	BackupCodeLength int // hex characters per code
}

/*
====================================
SECURITY / LOCKOUT CONFIG
====================================
*/

// SecurityConfig governs the account lockout policy: MaxLoginAttempts
// consecutive password failures lock the account for LockoutDuration.
type SecurityConfig struct {
	MaxLoginAttempts int
	LockoutDuration  time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig governs reset-token lifetime.
type PasswordResetConfig struct {
	TokenTTL time.Duration
}

/*
====================================
DEVICE TRUST CONFIG
====================================
*/

// DeviceTrustConfig governs MFA-bypass trust for recognized devices.
type DeviceTrustConfig struct {
	TrustTTL          time.Duration
	DefaultDeviceName string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the configuration the original deployment ran with:
// 5-attempt / 30-minute lockout, 1-hour reset tokens, 30-day device trust,
// 8 backup codes of 8 hex characters, and standard TOTP parameters.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     30 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "sshauth",
		},
		Session: SessionConfig{
			RedisPrefix:     "sshauth",
			SessionLifetime: 7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		TOTP: TOTPConfig{
			Issuer:           "SSH Client",
			Digits:           6,
			Period:           30,
			Skew:             1,
			BackupCodeCount:  8,
			BackupCodeLength: 8,
		},
		Security: SecurityConfig{
			MaxLoginAttempts: 5,
			LockoutDuration:  30 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL: time.Hour,
		},
		DeviceTrust: DeviceTrustConfig{
			TrustTTL:          30 * 24 * time.Hour,
			DefaultDeviceName: "Unknown Device",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Security.MaxLoginAttempts <= 0 {
		return errors.New("security: MaxLoginAttempts must be positive")
	}
	if cfg.Security.LockoutDuration <= 0 {
		return errors.New("security: LockoutDuration must be positive")
	}
	if cfg.TOTP.Digits != 6 && cfg.TOTP.Digits != 8 {
		return errors.New("totp: Digits must be 6 or 8")
	}
	if cfg.TOTP.Period <= 0 {
		return errors.New("totp: Period must be positive")
	}
	if cfg.TOTP.Skew < 0 {
		return errors.New("totp: Skew must not be negative")
	}
	if cfg.TOTP.BackupCodeCount <= 0 {
		return errors.New("totp: BackupCodeCount must be positive")
	}
	if cfg.TOTP.BackupCodeLength <= 0 || cfg.TOTP.BackupCodeLength%2 != 0 {
		return errors.New("totp: BackupCodeLength must be a positive even number")
	}
	if cfg.PasswordReset.TokenTTL <= 0 {
		return errors.New("password reset: TokenTTL must be positive")
	}
	if cfg.DeviceTrust.TrustTTL <= 0 {
		return errors.New("device trust: TrustTTL must be positive")
	}
	if cfg.JWT.AccessTTL <= 0 {
		return errors.New("jwt: AccessTTL must be positive")
	}
	if cfg.Session.SessionLifetime <= 0 {
		return errors.New("session: SessionLifetime must be positive")
	}
	return nil
}
