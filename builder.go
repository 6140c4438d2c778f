package sshauth

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/keselyoleren/sshauth/jwt"
	"github.com/keselyoleren/sshauth/password"
	"github.com/keselyoleren/sshauth/session"
)

// Builder assembles an [Engine] from configuration and collaborators. A
// Builder is single-use; Build returns an error if called twice.
type Builder struct {
	config Config
	redis  *redis.Client

	userProvider   UserProvider
	deviceProvider DeviceProvider
	notifier       Notifier
	auditSink      AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the session store.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithUserProvider sets the account persistence implementation. Required.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithDeviceProvider sets the trusted-device persistence implementation.
// Required.
func (b *Builder) WithDeviceProvider(dp DeviceProvider) *Builder {
	b.deviceProvider = dp
	return b
}

// WithNotifier sets the password-reset link sender. Optional; without one,
// reset tokens are still issued and only the delivery is skipped.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink sets the audit destination. Events are dispatched only when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, constructs every subsystem, and returns
// the ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	cfg := b.config
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if b.deviceProvider == nil {
		return nil, errors.New("device provider required")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		passwordHash: hasher,
		totp:         newTOTPManager(cfg.TOTP),
		jwtManager:   jwtManager,
		sessions:     session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.SessionLifetime),
		users:        b.userProvider,
		devices:      b.deviceProvider,
		notifier:     b.notifier,
		metrics:      NewMetrics(cfg.Metrics),
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)

	return engine, nil
}
