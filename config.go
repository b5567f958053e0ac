package adminauth

import (
	"errors"
	"time"
)

// Config holds every engine setting. Build one with [DefaultConfig] and
// override fields; [Builder.Build] validates it.
type Config struct {
	JWT          JWTConfig
	Lockout      LockoutConfig
	Refresh      RefreshConfig
	Captcha      CaptchaConfig
	QRLogin      QRLoginConfig
	Permission   PermissionConfig
	SMS          SMSConfig
	Registration RegistrationConfig
	Password     PasswordConfig
	Security     SecurityConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Redis        RedisConfig
}

// JWTConfig configures session token signing. TTL is fixed for every token.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string // "ed25519" or "hs256"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

// LockoutConfig configures the failed-login lockout.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
	// Window is how long partial failure counts survive. Zero means Duration.
	Window time.Duration
}

// RefreshConfig configures the sliding token refresh guard.
type RefreshConfig struct {
	Enabled bool
	// Threshold is the remaining lifetime below which a request refreshes.
	Threshold time.Duration
	// Window is how long one refresh per user blocks further refreshes.
	Window time.Duration
}

// CaptchaConfig configures the login captcha gate.
type CaptchaConfig struct {
	Enabled bool
	TTL     time.Duration
	Length  int
}

// QRLoginConfig configures cross-device QR login.
type QRLoginConfig struct {
	Enabled bool
	TTL     time.Duration
	// ImageSize is the rendered QR PNG edge in pixels. Zero skips rendering.
	ImageSize int
}

type PermissionConfig struct {
	CacheTTL time.Duration
}

// SMSConfig configures phone-number login codes.
type SMSConfig struct {
	Enabled    bool
	CodeLength int
	CodeTTL    time.Duration
}

// RegistrationConfig configures self-service sign-up. Lengths count runes.
type RegistrationConfig struct {
	Enabled bool
	// DefaultRoleKeys are assigned to every registered account.
	DefaultRoleKeys   []string
	UsernameMinLength int
	UsernameMaxLength int
	PasswordMinLength int
	PasswordMaxLength int
}

type PasswordConfig struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityConfig configures the per-IP throttle on captcha issuance, QR
// generation and SMS sending.
type SecurityConfig struct {
	EnableIssueThrottle bool
	IssueMaxPerIP       int
	IssueWindow         time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// RedisConfig holds key prefixes for the shared cache records.
type RedisConfig struct {
	CaptchaPrefix    string
	SMSPrefix        string
	PermissionPrefix string
	QRPrefix         string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           30 * time.Minute,
			SigningMethod: "ed25519",
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Duration:  10 * time.Minute,
		},
		Refresh: RefreshConfig{
			Enabled:   true,
			Threshold: 5 * time.Minute,
			Window:    time.Minute,
		},
		Captcha: CaptchaConfig{
			Enabled: true,
			TTL:     60 * time.Second,
			Length:  4,
		},
		QRLogin: QRLoginConfig{
			Enabled:   true,
			TTL:       2 * time.Minute,
			ImageSize: 256,
		},
		Permission: PermissionConfig{
			CacheTTL: 24 * time.Hour,
		},
		SMS: SMSConfig{
			Enabled:    false,
			CodeLength: 6,
			CodeTTL:    5 * time.Minute,
		},
		Registration: RegistrationConfig{
			Enabled:           false,
			DefaultRoleKeys:   []string{"common"},
			UsernameMinLength: 2,
			UsernameMaxLength: 20,
			PasswordMinLength: 5,
			PasswordMaxLength: 20,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        1,
			Parallelism: 4,
			SaltLength:  16,
			KeyLength:   32,
		},
		Security: SecurityConfig{
			EnableIssueThrottle: true,
			IssueMaxPerIP:       30,
			IssueWindow:         time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Redis: RedisConfig{
			CaptchaPrefix:    "cap",
			SMSPrefix:        "sms",
			PermissionPrefix: "perm",
			QRPrefix:         "qrl",
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Registration.DefaultRoleKeys = append([]string(nil), cfg.Registration.DefaultRoleKeys...)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("Lockout Threshold must be > 0")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("Lockout Duration must be > 0")
		}
		if c.Lockout.Window < 0 {
			return errors.New("Lockout Window must be >= 0")
		}
	}

	if c.Refresh.Enabled {
		if c.Refresh.Threshold <= 0 {
			return errors.New("Refresh Threshold must be > 0")
		}
		if c.Refresh.Threshold >= c.JWT.TTL {
			return errors.New("Refresh Threshold must be shorter than JWT TTL")
		}
		if c.Refresh.Window <= 0 {
			return errors.New("Refresh Window must be > 0")
		}
	}

	if c.Captcha.Enabled {
		if c.Captcha.TTL <= 0 {
			return errors.New("Captcha TTL must be > 0")
		}
		if c.Captcha.Length < 4 || c.Captcha.Length > 8 {
			return errors.New("Captcha Length must be between 4 and 8")
		}
	}

	if c.QRLogin.Enabled {
		if c.QRLogin.TTL <= 0 {
			return errors.New("QRLogin TTL must be > 0")
		}
		if c.QRLogin.ImageSize < 0 {
			return errors.New("QRLogin ImageSize must be >= 0")
		}
	}

	if c.Permission.CacheTTL < c.JWT.TTL {
		return errors.New("Permission CacheTTL must be >= JWT TTL")
	}

	if c.SMS.Enabled {
		if c.SMS.CodeLength < 4 || c.SMS.CodeLength > 10 {
			return errors.New("SMS CodeLength must be between 4 and 10")
		}
		if c.SMS.CodeTTL <= 0 {
			return errors.New("SMS CodeTTL must be > 0")
		}
	}

	if c.Registration.Enabled {
		if c.Registration.UsernameMinLength < 1 || c.Registration.UsernameMaxLength < c.Registration.UsernameMinLength {
			return errors.New("Registration username length bounds are invalid")
		}
		if c.Registration.PasswordMinLength < 1 || c.Registration.PasswordMaxLength < c.Registration.PasswordMinLength {
			return errors.New("Registration password length bounds are invalid")
		}
	}

	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	if c.Security.EnableIssueThrottle {
		if c.Security.IssueMaxPerIP <= 0 {
			return errors.New("Security IssueMaxPerIP must be > 0")
		}
		if c.Security.IssueWindow <= 0 {
			return errors.New("Security IssueWindow must be > 0")
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
