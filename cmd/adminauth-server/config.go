package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "ADMINAUTH_"

// fileConfig is the YAML layout of the server configuration.
type fileConfig struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	Redis struct {
		Addrs    []string `yaml:"addrs"`
		Password string   `yaml:"password"`
		DB       int      `yaml:"db"`
	} `yaml:"redis"`

	Database struct {
		DSN     string `yaml:"dsn"`
		Migrate bool   `yaml:"migrate"`
	} `yaml:"database"`

	JWT struct {
		SigningMethod string        `yaml:"signing_method"`
		Secret        string        `yaml:"secret"`
		PrivateKey    string        `yaml:"private_key"`
		PublicKey     string        `yaml:"public_key"`
		TTL           time.Duration `yaml:"ttl"`
		Issuer        string        `yaml:"issuer"`
		KeyID         string        `yaml:"key_id"`
	} `yaml:"jwt"`

	Captcha struct {
		Enabled *bool `yaml:"enabled"`
		Width   int   `yaml:"width"`
		Height  int   `yaml:"height"`
	} `yaml:"captcha"`

	QRLogin struct {
		Enabled   *bool         `yaml:"enabled"`
		TTL       time.Duration `yaml:"ttl"`
		ImageSize *int          `yaml:"image_size"`
	} `yaml:"qr_login"`

	SMS struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"sms"`

	Registration struct {
		Enabled         bool     `yaml:"enabled"`
		DefaultRoleKeys []string `yaml:"default_role_keys"`
	} `yaml:"registration"`

	Lockout struct {
		Threshold int           `yaml:"threshold"`
		Duration  time.Duration `yaml:"duration"`
	} `yaml:"lockout"`

	Refresh struct {
		Threshold time.Duration `yaml:"threshold"`
		Window    time.Duration `yaml:"window"`
	} `yaml:"refresh"`

	Audit struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"audit"`

	Metrics struct {
		Path string `yaml:"path"`
	} `yaml:"metrics"`

	Seed struct {
		AdminUser     string `yaml:"admin_user"`
		AdminPassword string `yaml:"admin_password"`
	} `yaml:"seed"`
}

func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.Addr = ":8080"
	fc.LogLevel = "info"
	fc.Redis.Addrs = []string{"127.0.0.1:6379"}
	fc.Database.DSN = "adminauth.db"
	fc.Database.Migrate = true
	fc.JWT.SigningMethod = "hs256"
	fc.Metrics.Path = "/metrics"
	return fc
}

// loadConfig reads .env (if present), then path (if non-empty), then applies
// ADMINAUTH_* environment overrides.
func loadConfig(path string) (fileConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fileConfig{}, fmt.Errorf("load .env: %w", err)
	}

	fc := defaultFileConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fileConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return fileConfig{}, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&fc, os.LookupEnv); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

func applyEnv(fc *fileConfig, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}
	str("ADDR", &fc.Addr)
	str("LOG_LEVEL", &fc.LogLevel)
	str("REDIS_PASSWORD", &fc.Redis.Password)
	str("DATABASE_DSN", &fc.Database.DSN)
	str("JWT_SIGNING_METHOD", &fc.JWT.SigningMethod)
	str("JWT_SECRET", &fc.JWT.Secret)
	str("JWT_PRIVATE_KEY", &fc.JWT.PrivateKey)
	str("JWT_PUBLIC_KEY", &fc.JWT.PublicKey)
	str("SEED_ADMIN_USER", &fc.Seed.AdminUser)
	str("SEED_ADMIN_PASSWORD", &fc.Seed.AdminPassword)

	if v, ok := lookup(envPrefix + "REDIS_ADDRS"); ok {
		fc.Redis.Addrs = strings.Split(v, ",")
	}
	if v, ok := lookup(envPrefix + "REDIS_DB"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sREDIS_DB: %w", envPrefix, err)
		}
		fc.Redis.DB = n
	}
	if v, ok := lookup(envPrefix + "JWT_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sJWT_TTL: %w", envPrefix, err)
		}
		fc.JWT.TTL = d
	}
	if v, ok := lookup(envPrefix + "CAPTCHA_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sCAPTCHA_ENABLED: %w", envPrefix, err)
		}
		fc.Captcha.Enabled = &b
	}
	if v, ok := lookup(envPrefix + "SMS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sSMS_ENABLED: %w", envPrefix, err)
		}
		fc.SMS.Enabled = b
	}
	if v, ok := lookup(envPrefix + "REGISTRATION_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sREGISTRATION_ENABLED: %w", envPrefix, err)
		}
		fc.Registration.Enabled = b
	}
	return nil
}

// engineConfig maps the file configuration onto the engine's defaults.
func (fc fileConfig) engineConfig() (adminauth.Config, error) {
	cfg := adminauth.DefaultConfig()

	cfg.JWT.SigningMethod = strings.ToLower(fc.JWT.SigningMethod)
	switch cfg.JWT.SigningMethod {
	case "hs256":
		cfg.JWT.PrivateKey = []byte(fc.JWT.Secret)
	case "ed25519":
		priv, err := base64.StdEncoding.DecodeString(fc.JWT.PrivateKey)
		if err != nil {
			return cfg, fmt.Errorf("jwt private_key: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		if fc.JWT.PublicKey != "" {
			pub, err := base64.StdEncoding.DecodeString(fc.JWT.PublicKey)
			if err != nil {
				return cfg, fmt.Errorf("jwt public_key: %w", err)
			}
			cfg.JWT.PublicKey = pub
		}
	default:
		return cfg, fmt.Errorf("unsupported jwt signing_method %q", fc.JWT.SigningMethod)
	}
	if fc.JWT.TTL > 0 {
		cfg.JWT.TTL = fc.JWT.TTL
	}
	cfg.JWT.Issuer = fc.JWT.Issuer
	cfg.JWT.KeyID = fc.JWT.KeyID

	if fc.Captcha.Enabled != nil {
		cfg.Captcha.Enabled = *fc.Captcha.Enabled
	}
	if fc.QRLogin.Enabled != nil {
		cfg.QRLogin.Enabled = *fc.QRLogin.Enabled
	}
	if fc.QRLogin.TTL > 0 {
		cfg.QRLogin.TTL = fc.QRLogin.TTL
	}
	if fc.QRLogin.ImageSize != nil {
		cfg.QRLogin.ImageSize = *fc.QRLogin.ImageSize
	}
	cfg.SMS.Enabled = fc.SMS.Enabled
	cfg.Registration.Enabled = fc.Registration.Enabled
	if len(fc.Registration.DefaultRoleKeys) > 0 {
		cfg.Registration.DefaultRoleKeys = fc.Registration.DefaultRoleKeys
	}

	if fc.Lockout.Threshold > 0 {
		cfg.Lockout.Threshold = fc.Lockout.Threshold
	}
	if fc.Lockout.Duration > 0 {
		cfg.Lockout.Duration = fc.Lockout.Duration
	}
	if fc.Refresh.Threshold > 0 {
		cfg.Refresh.Threshold = fc.Refresh.Threshold
	}
	if fc.Refresh.Window > 0 {
		cfg.Refresh.Window = fc.Refresh.Window
	}
	cfg.Audit.Enabled = fc.Audit.Enabled
	cfg.Metrics.Enabled = fc.Metrics.Path != ""
	cfg.Metrics.EnableLatencyHistograms = cfg.Metrics.Enabled

	return cfg, cfg.Validate()
}

func (fc fileConfig) slogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(fc.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
