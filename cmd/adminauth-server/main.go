// Command adminauth-server serves the admin panel login API backed by Redis
// and a SQLite user database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/api"
	"github.com/MrEthical07/adminauth/metrics/export/prometheus"
	"github.com/MrEthical07/adminauth/password"
	"github.com/MrEthical07/adminauth/store/gormstore"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the YAML config file")
		addr       = flag.String("addr", "", "listen address; overrides the config file")
	)
	flag.Parse()

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath, addrFlag string) error {
	fc, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addrFlag != "" {
		fc.Addr = addrFlag
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: fc.slogLevel()}))

	cfg, err := fc.engineConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(fc.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store := gormstore.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if fc.Database.Migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}
	if fc.Seed.AdminUser != "" {
		if err := seedAdmin(ctx, store, cfg, fc.Seed.AdminUser, fc.Seed.AdminPassword); err != nil {
			return err
		}
		logger.Info("admin user seeded", "user", fc.Seed.AdminUser)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    fc.Redis.Addrs,
		Password: fc.Redis.Password,
		DB:       fc.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	builder := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(store).
		WithLogger(logger).
		WithCaptchaRenderer(adminauth.ImageCaptchaRenderer{
			Width:  fc.Captcha.Width,
			Height: fc.Captcha.Height,
		})
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(slogSink{logger: logger.With("component", "audit")})
	}
	if cfg.SMS.Enabled {
		builder = builder.WithCodeSender(logSender{logger: logger})
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(engine, logger)
	if fc.Metrics.Path != "" {
		router.GET(fc.Metrics.Path, gin.WrapH(prometheus.NewExporter(engine).Handler()))
	}

	srv := &http.Server{
		Addr:              fc.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", fc.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seedAdmin(ctx context.Context, store *gormstore.Store, cfg adminauth.Config, user, secret string) error {
	if secret == "" {
		return errors.New("seed admin_password required with admin_user")
	}
	if _, err := store.GetUserByIdentifier(ctx, user); err == nil {
		return nil
	} else if !errors.Is(err, adminauth.ErrUserNotFound) {
		return err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(secret)
	if err != nil {
		return err
	}
	_, err = store.InsertUser(ctx, gormstore.SysUser{
		UserName: user,
		NickName: user,
		Password: hash,
		Status:   gormstore.StatusNormal,
		DelFlag:  gormstore.DelFlagActive,
	}, "admin")
	return err
}

// slogSink writes audit events to the server log.
type slogSink struct {
	logger *slog.Logger
}

func (s slogSink) Emit(ctx context.Context, ev adminauth.AuditEvent) {
	attrs := []any{
		"event", ev.EventType,
		"user_id", ev.UserID,
		"ip", ev.IP,
		"success", ev.Success,
	}
	if ev.Error != "" {
		attrs = append(attrs, "error", ev.Error)
	}
	for k, v := range ev.Metadata {
		attrs = append(attrs, k, v)
	}
	s.logger.InfoContext(ctx, "audit", attrs...)
}

// logSender logs SMS codes instead of delivering them. Replace it with a
// gateway client in production.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) SendCode(ctx context.Context, phone, code string) error {
	s.logger.WarnContext(ctx, "sms code not delivered: no gateway configured", "phone", phone, "code", code)
	return nil
}
