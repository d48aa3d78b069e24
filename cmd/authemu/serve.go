package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authemu/internal/auth"
	"github.com/dropDatabas3/authemu/internal/blocking"
	"github.com/dropDatabas3/authemu/internal/config"
	"github.com/dropDatabas3/authemu/internal/email"
	httpserver "github.com/dropDatabas3/authemu/internal/http"
	"github.com/dropDatabas3/authemu/internal/http/router"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/metrics"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
	"github.com/dropDatabas3/authemu/internal/rate"
	"github.com/dropDatabas3/authemu/internal/security/password"
	"github.com/dropDatabas3/authemu/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		configPath = envOr("AUTHEMU_CONFIG", "")
		envFile    = ".env"
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el emulador HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", configPath, "Archivo YAML de config (env AUTHEMU_CONFIG)")
	cmd.Flags().StringVar(&envFile, "env-file", envFile, "Archivo .env a cargar si existe")
	cmd.Flags().StringVar(&addr, "addr", "", "Dirección de escucha; pisa server.addr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Version: version})
	defer func() { _ = logger.Sync() }()
	log := logger.L().With(logger.Component("main"))

	clock := clockwork.NewRealClock()
	st := store.New(store.Options{
		Clock:               clock,
		TenantAutoCreate:    cfg.Emulator.TenantAutoCreate,
		OobCodeTTL:          cfg.Codes.OobTTL,
		VerificationCodeTTL: cfg.Codes.VerificationTTL,
		MfaPendingTTL:       cfg.Codes.MfaPendingTTL,
		TemporaryProofTTL:   cfg.Codes.TemporaryProofTTL,
	})

	if cfg.Emulator.SeedFile != "" {
		seed, err := store.LoadSeedFile(cfg.Emulator.SeedFile)
		if err != nil {
			return err
		}
		n, err := st.Import(seed)
		if err != nil {
			return err
		}
		log.Info("seed imported", logger.ProjectID(seed.ProjectID), logger.Count(n))
	}

	smsLimiter, oobLimiter, closeRate, err := buildLimiters(ctx, cfg, clock)
	if err != nil {
		return err
	}
	defer closeRate()

	svc := auth.NewService(auth.Deps{
		Store:    st,
		Codec:    jwt.NewCodec(clock, cfg.IDTokenTTL()),
		Blocking: blocking.NewHTTPInvoker(cfg.Blocking.Timeout, clock),
		Notifier: email.NewNotifier(buildSender(cfg)),
		Password: password.Policy{MinLength: cfg.Security.PasswordPolicy.MinLength},
		BaseURL:  cfg.BaseURL(),
	})

	deps := router.Deps{
		Service:        svc,
		DefaultProject: cfg.Emulator.DefaultProject,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		SMSLimiter:     smsLimiter,
		OobLimiter:     oobLimiter,
		Version:        version,
	}
	if cfg.Metrics.Enabled {
		h, err := metrics.Register(metrics.Config{Scopes: st})
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		deps.Metrics = h
	}

	log.Info("authemu starting",
		logger.String("addr", cfg.Server.Addr),
		logger.String("base_url", cfg.BaseURL()),
		logger.String("default_project", cfg.Emulator.DefaultProject),
		logger.Bool("tenant_auto_create", cfg.Emulator.TenantAutoCreate),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
		logger.Bool("metrics", cfg.Metrics.Enabled),
	)
	return httpserver.NewServer(cfg.Server.Addr, router.New(deps)).Run(ctx)
}

// buildLimiters arma los limiters de SMS y OOB; nil si el rate limit está apagado.
func buildLimiters(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (sms, oob rate.Limiter, closeFn func(), err error) {
	closeFn = func() {}
	if !cfg.Rate.Enabled {
		return nil, nil, closeFn, nil
	}
	switch strings.ToLower(cfg.Rate.Backend) {
	case "redis":
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, closeFn, fmt.Errorf("redis ping %s: %w", cfg.Rate.Redis.Addr, err)
		}
		closeFn = func() { _ = client.Close() }
		sms = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix+"sms:", cfg.Rate.SMS.Limit, cfg.SMSWindow())
		oob = rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix+"oob:", cfg.Rate.Oob.Limit, cfg.OobWindow())
	default:
		sms = rate.NewMemoryLimiter(cfg.Rate.SMS.Limit, cfg.SMSWindow(), clock)
		oob = rate.NewMemoryLimiter(cfg.Rate.Oob.Limit, cfg.OobWindow(), clock)
	}
	return sms, oob, closeFn, nil
}

// buildSender siempre loguea los mails; con SMTP configurado además los relaya.
func buildSender(cfg *config.Config) email.Sender {
	if cfg.SMTP.Host == "" {
		return email.LogSender{}
	}
	smtp := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	smtp.TLSMode = cfg.SMTP.TLS
	smtp.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
	return email.MultiSender{email.LogSender{}, smtp}
}
