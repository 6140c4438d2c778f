package sshauth

import "sync/atomic"

// MetricID identifies a counter in the in-process metrics vector.
type MetricID uint16

const (
	// MetricLoginSuccess counts fully authenticated logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts generic credential failures.
	MetricLoginFailure
	// MetricLoginLocked counts attempts rejected by an active lockout.
	MetricLoginLocked
	// MetricAccountLocked counts lockout activations.
	MetricAccountLocked
	// MetricMFARequired counts logins paused for a second factor.
	MetricMFARequired
	// MetricMFASuccess counts verified MFA codes.
	MetricMFASuccess
	// MetricMFAFailure counts rejected MFA codes.
	MetricMFAFailure
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricDeviceTrustBypass counts MFA checks skipped for trusted devices.
	MetricDeviceTrustBypass
	// MetricDeviceTrusted counts trusted-device enrollments and refreshes.
	MetricDeviceTrusted
	// MetricDeviceRevoked counts trusted-device revocations.
	MetricDeviceRevoked
	// MetricDeviceSwept counts rows deactivated by the expiry sweep.
	MetricDeviceSwept
	// MetricPasswordResetRequest counts reset requests (known email or not).
	MetricPasswordResetRequest
	// MetricPasswordResetConfirm counts successful reset redemptions.
	MetricPasswordResetConfirm
	// MetricPasswordResetFailure counts rejected reset redemptions.
	MetricPasswordResetFailure
	// MetricAccountCreated counts registrations.
	MetricAccountCreated
	// MetricAccountCreationDuplicate counts duplicate-email registrations.
	MetricAccountCreationDuplicate
	// MetricSessionCreated counts issued sessions.
	MetricSessionCreated
	// MetricSessionRevoked counts revoked sessions.
	MetricSessionRevoked

	metricIDCount
)

// Metrics holds atomic counters for engine activity. When disabled, all
// operations are no-ops.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a [Metrics] instance configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Add increments the counter for id by delta.
func (m *Metrics) Add(id MetricID, delta uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(delta)
}

// Get returns the current value of the counter for id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || !m.enabled || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snapshot := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, metricIDCount),
	}
	if m == nil || !m.enabled {
		return snapshot
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snapshot.Counters[id] = m.counters[id].Load()
	}
	return snapshot
}
