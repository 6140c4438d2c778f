package sshauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Fingerprint derives the trusted-device fingerprint from a User-Agent
// string and client IP: hex(sha256(userAgent + ":" + ip)).
//
// This is a recognition heuristic, not an authentication factor. Both
// inputs are attacker-influenced, so a fingerprint must never gate anything
// stronger than the MFA convenience bypass it exists for.
func Fingerprint(userAgent, ip string) string {
	sum := sha256.Sum256([]byte(userAgent + ":" + ip))
	return hex.EncodeToString(sum[:])
}

// requestFingerprint returns the request's explicit fingerprint, or derives
// one from the context's user-agent and client IP. Empty when neither is
// available; an empty fingerprint disables device trust for the attempt.
func (e *Engine) requestFingerprint(ctx context.Context, req AuthenticateRequest) string {
	if req.DeviceFingerprint != "" {
		return req.DeviceFingerprint
	}

	userAgent := userAgentFromContext(ctx)
	ip := clientIPFromContext(ctx)
	if userAgent == "" && ip == "" {
		return ""
	}
	return Fingerprint(userAgent, ip)
}

// isDeviceTrusted reports whether the fingerprint maps to a live trust row.
// A hit refreshes the row's last-used time and slides its expiry. An
// expired row counts as absent; it is left for the sweep.
func (e *Engine) isDeviceTrusted(ctx context.Context, userID int64, fingerprint string, now time.Time) (bool, error) {
	device, err := e.devices.GetActiveDevice(ctx, userID, fingerprint)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return false, nil
		}
		return false, err
	}
	if !device.Active || !device.ExpiresAt.After(now) {
		return false, nil
	}

	device.LastUsed = now
	device.ExpiresAt = now.Add(e.config.DeviceTrust.TrustTTL)
	if err := e.devices.SaveDevice(ctx, device); err != nil {
		// Recognition stands even if the refresh write fails.
		e.warn("trusted device refresh failed: " + err.Error())
	}

	return true, nil
}

// IsDeviceTrusted reports whether the fingerprint is currently trusted for
// the user.
func (e *Engine) IsDeviceTrusted(ctx context.Context, userID int64, fingerprint string) (bool, error) {
	if !e.ready() || e.devices == nil {
		return false, ErrEngineNotReady
	}
	return e.isDeviceTrusted(ctx, userID, fingerprint, time.Now())
}

// trustDevice grants (or renews) MFA bypass for the fingerprint. A live row
// with the same fingerprint is refreshed in place rather than duplicated.
func (e *Engine) trustDevice(ctx context.Context, userID int64, fingerprint, name string, now time.Time) (*TrustedDevice, error) {
	existing, err := e.devices.GetActiveDevice(ctx, userID, fingerprint)
	if err != nil && !errors.Is(err, ErrDeviceNotFound) {
		return nil, err
	}

	var device *TrustedDevice
	if err == nil && existing.Active && existing.ExpiresAt.After(now) {
		device = existing
		device.LastUsed = now
		device.ExpiresAt = now.Add(e.config.DeviceTrust.TrustTTL)
		if name != "" && name != e.config.DeviceTrust.DefaultDeviceName {
			device.Name = name
		}
	} else {
		device = &TrustedDevice{
			ID:          uuid.NewString(),
			UserID:      userID,
			Fingerprint: fingerprint,
			Name:        name,
			CreatedAt:   now,
			ExpiresAt:   now.Add(e.config.DeviceTrust.TrustTTL),
			LastUsed:    now,
			Active:      true,
		}
	}

	if err := e.devices.SaveDevice(ctx, device); err != nil {
		return nil, err
	}

	e.metricInc(MetricDeviceTrusted)
	e.emitAudit(ctx, auditEventDeviceTrusted, true, userID, "", nil, func() map[string]string {
		return map[string]string{"device_id": device.ID, "device_name": device.Name}
	})

	return device, nil
}

// TrustDevice grants MFA bypass for the fingerprint on behalf of the user.
// Requires MFA to be enabled: trusting a device on an account with no
// second factor would be recording nothing.
func (e *Engine) TrustDevice(ctx context.Context, userID int64, fingerprint, name string) (*TrustedDevice, error) {
	if !e.ready() || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	if fingerprint == "" {
		return nil, ErrDeviceNotFound
	}

	account, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !account.MFAEnabled {
		return nil, ErrMFANotEnabled
	}

	if name == "" {
		name = e.config.DeviceTrust.DefaultDeviceName
	}

	return e.trustDevice(ctx, userID, fingerprint, name, time.Now())
}

// ListTrustedDevices returns the user's active trust rows, most recently
// used first.
func (e *Engine) ListTrustedDevices(ctx context.Context, userID int64) ([]TrustedDevice, error) {
	if !e.ready() || e.devices == nil {
		return nil, ErrEngineNotReady
	}
	return e.devices.ListActiveDevices(ctx, userID)
}

// RevokeTrustedDevice soft-deletes one trust row. Returns false when the
// device does not exist or belongs to another user; revoking an already
// revoked device is also false, never an error.
func (e *Engine) RevokeTrustedDevice(ctx context.Context, userID int64, deviceID string) (bool, error) {
	if !e.ready() || e.devices == nil {
		return false, ErrEngineNotReady
	}

	device, err := e.devices.GetDeviceByID(ctx, userID, deviceID)
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return false, nil
		}
		return false, err
	}
	if device.UserID != userID || !device.Active {
		return false, nil
	}

	device.Active = false
	if err := e.devices.SaveDevice(ctx, device); err != nil {
		return false, err
	}

	e.metricInc(MetricDeviceRevoked)
	e.emitAudit(ctx, auditEventDeviceRevoked, true, userID, "", nil, func() map[string]string {
		return map[string]string{"device_id": deviceID}
	})

	return true, nil
}

// SweepExpiredDevices deactivates every trust row whose expiry has passed
// and reports how many. Best-effort housekeeping: device checks already
// treat expired rows as absent, so a failed or skipped sweep only leaves
// stale rows behind.
func (e *Engine) SweepExpiredDevices(ctx context.Context) (int64, error) {
	if !e.ready() || e.devices == nil {
		return 0, ErrEngineNotReady
	}

	swept, err := e.devices.DeactivateExpired(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		e.metricAdd(MetricDeviceSwept, uint64(swept))
		e.emitAudit(ctx, auditEventDeviceSweep, true, 0, "", nil, func() map[string]string {
			return map[string]string{"swept": strconv.FormatInt(swept, 10)}
		})
	}

	return swept, nil
}
