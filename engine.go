package sshauth

import (
	"log"

	"github.com/keselyoleren/sshauth/jwt"
	"github.com/keselyoleren/sshauth/password"
	"github.com/keselyoleren/sshauth/session"
)

// Engine composes the credential hasher, TOTP engine, lockout policy, reset
// token manager, device trust store, and session issuance into the
// authentication state machine. Build one through [Builder] and treat it as
// immutable afterwards.
type Engine struct {
	config       Config
	passwordHash *password.Hasher
	totp         *totpManager
	jwtManager   *jwt.Manager
	sessions     *session.Store
	users        UserProvider
	devices      DeviceProvider
	notifier     Notifier
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, delta uint64) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Add(id, delta)
}

func (e *Engine) warn(msg string) {
	log.Println(msg)
}

func (e *Engine) ready() bool {
	return e != nil && e.users != nil && e.passwordHash != nil && e.totp != nil
}
