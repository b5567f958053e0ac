package adminauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/adminauth/internal/limiters"
	"github.com/MrEthical07/adminauth/internal/rate"
	"github.com/MrEthical07/adminauth/internal/stores"
	"github.com/MrEthical07/adminauth/jwt"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/refresh"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider    UserProvider
	auditSink       AuditSink
	logger          *slog.Logger
	codeSender      CodeSender
	captchaRenderer CaptchaRenderer
	now             func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the shared cache. Every engine instance serving the same
// users must point at the same Redis deployment.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger for non-fatal side failures. Defaults to a
// discarding logger.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithCodeSender sets the SMS delivery used by [Engine.SendPhoneCode].
func (b *Builder) WithCodeSender(sender CodeSender) *Builder {
	b.codeSender = sender
	return b
}

// WithCaptchaRenderer replaces the default [ImageCaptchaRenderer].
func (b *Builder) WithCaptchaRenderer(r CaptchaRenderer) *Builder {
	b.captchaRenderer = r
	return b
}

// WithClock overrides the token clock. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SMS.Enabled && b.codeSender == nil {
		return nil, errors.New("SMS login requires a CodeSender")
	}
	accounts, _ := b.userProvider.(AccountStore)
	if cfg.Registration.Enabled && accounts == nil {
		return nil, errors.New("registration requires a UserProvider implementing AccountStore")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	renderer := b.captchaRenderer
	if renderer == nil {
		renderer = ImageCaptchaRenderer{}
	}

	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:          cfg,
		logger:          logger,
		now:             now,
		jwtManager:      jm,
		passwordHash:    ph,
		userProvider:    b.userProvider,
		accounts:        accounts,
		codeSender:      b.codeSender,
		captchaRenderer: renderer,
		lockout: limiters.NewLockoutLimiter(b.redis, limiters.LockoutConfig{
			Enabled:   cfg.Lockout.Enabled,
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
			Window:    cfg.Lockout.Window,
		}),
		issueLimiter: rate.New(b.redis, rate.Config{
			Enabled:  cfg.Security.EnableIssueThrottle,
			MaxPerIP: cfg.Security.IssueMaxPerIP,
			Window:   cfg.Security.IssueWindow,
		}),
		captchaStore: stores.NewOneTimeCodeStore(b.redis, cfg.Redis.CaptchaPrefix),
		smsStore:     stores.NewOneTimeCodeStore(b.redis, cfg.Redis.SMSPrefix),
		permCache:    stores.NewPermissionCache(b.redis, cfg.Redis.PermissionPrefix),
		qrStore:      stores.NewQRLoginStore(b.redis, cfg.Redis.QRPrefix),
		sentinel:     refresh.NewSentinel(b.redis, cfg.Refresh.Window),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink, logger, now),
		metrics:      NewMetrics(cfg.Metrics),
	}
	engine.flows = engine.buildFlows()

	b.built = true
	return engine, nil
}
