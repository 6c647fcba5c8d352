// Command hogar-server starts the hogar REST API.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/and161185/hogar/internal/config"
	"github.com/and161185/hogar/internal/crypto/phonecrypto"
	"github.com/and161185/hogar/internal/limiter"
	"github.com/and161185/hogar/internal/migrate"
	"github.com/and161185/hogar/internal/push"
	"github.com/and161185/hogar/internal/repository/postgres"
	httpserver "github.com/and161185/hogar/internal/server/http"
	"github.com/and161185/hogar/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations and serves until SIGINT/SIGTERM.
func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	dsn := cfg.Database.DSN()
	applied, err := migrate.Up(ctx, dsn, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", zap.Int64("version", applied))

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	lim, closeLim, err := newLimiter(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeLim()

	var phone *phonecrypto.Cipher
	if cfg.Auth.PhoneAuthEnabled() {
		if phone, err = phonecrypto.New(cfg.Auth.PhoneKey); err != nil {
			return err
		}
	} else {
		logger.Warn("PHONE_ENCRYPTION_KEY missing or invalid, phone authentication disabled")
	}

	expo := push.NewExpo(cfg.Push.ExpoURL, cfg.Push.ExpoAccessToken, &http.Client{Timeout: 15 * time.Second}, logger.Named("expo"))
	var fcm push.Provider
	if len(cfg.Push.FirebaseCredentials) > 0 {
		f, err := push.NewFCMFromCredentials(ctx, cfg.Push.FirebaseCredentials, logger.Named("fcm"))
		if err != nil {
			logger.Error("firebase init failed, fcm disabled", zap.Error(err))
		} else {
			fcm = f
		}
	} else {
		logger.Info("firebase credentials not set, fcm disabled")
	}

	creds := service.Credentials{Phone: phone, BcryptCost: cfg.Auth.BcryptCost}
	sessions := service.NewSessionManager(db, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, logger.Named("sessions"))
	invites := service.NewInvitationService(db, phone, cfg.Household.InvitationTTL, logger.Named("invitations"))
	notifications := service.NewNotificationService(db, expo, fcm, 30*time.Second, logger.Named("push"))
	defer notifications.Wait()

	svc := httpserver.Services{
		Sessions:      sessions,
		Auth:          service.NewAuthService(db, creds, sessions, invites, lim, logger.Named("auth")),
		Households:    service.NewHouseholdService(db, creds, cfg.Household.DefaultName, cfg.Household.DefaultCurrency),
		Invitations:   invites,
		Lists:         service.NewListService(db, notifications),
		Expenses:      service.NewExpenseService(db),
		Incomes:       service.NewIncomeService(db, cfg.Household.DefaultCurrency),
		Reports:       service.NewReportService(db),
		Notifications: notifications,
		Ping:          db.Ping,
	}

	router := httpserver.NewRouter(svc, cfg.Server.CORSOrigins, logger)
	srv := httpserver.NewServer(net.JoinHostPort("", cfg.Server.Port), router,
		cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout, logger)
	return srv.Run(ctx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Server.IsDevelopment() {
		zc = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zc.Build()
}

// newLimiter prefers Redis when REDIS_URL is set and falls back to Postgres.
func newLimiter(ctx context.Context, cfg *config.Config, db *postgres.DB, logger *zap.Logger) (limiter.Limiter, func(), error) {
	s := limiter.Settings{
		Window:   cfg.Auth.LoginWindow,
		MaxFails: cfg.Auth.LoginMaxFails,
		BlockFor: cfg.Auth.LoginBlockFor,
	}
	if cfg.Redis.URL == "" {
		return limiter.NewPG(db.Pool, s), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	logger.Info("login limiter backed by redis")
	return limiter.NewRedis(rdb, s), func() { _ = rdb.Close() }, nil
}
