package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anomalyguard/backend/internal/audit"
	auditrepo "anomalyguard/backend/internal/audit/repository"
	authhandler "anomalyguard/backend/internal/auth/handler"
	"anomalyguard/backend/internal/auth/service"
	"anomalyguard/backend/internal/config"
	"anomalyguard/backend/internal/db"
	"anomalyguard/backend/internal/db/migrate"
	"anomalyguard/backend/internal/devotp"
	devotphandler "anomalyguard/backend/internal/devotp/handler"
	"anomalyguard/backend/internal/geo"
	"anomalyguard/backend/internal/health"
	"anomalyguard/backend/internal/logging"
	"anomalyguard/backend/internal/metrics"
	"anomalyguard/backend/internal/mfa"
	"anomalyguard/backend/internal/mfa/email"
	policydomain "anomalyguard/backend/internal/policy/domain"
	"anomalyguard/backend/internal/policy/engine"
	"anomalyguard/backend/internal/risk"
	"anomalyguard/backend/internal/security"
	"anomalyguard/backend/internal/server"
	"anomalyguard/backend/internal/server/middleware"
	"anomalyguard/backend/internal/telemetry"
	telemetryotel "anomalyguard/backend/internal/telemetry/otel"
	"anomalyguard/backend/internal/telemetry/producer"
	userrepo "anomalyguard/backend/internal/user/repository"
)

const shutdownDrain = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage: Postgres when configured, otherwise the in-memory store.
	var (
		conn      *sql.DB
		users     userrepo.Repository
		auditRepo auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil {
			return err
		}
		var err error
		conn, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		users = userrepo.NewPostgresRepository(conn)
		auditRepo = auditrepo.NewPostgresRepository(conn)
		go metrics.StartDBStatsCollector(ctx, conn, 15*time.Second)
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory store, data is lost on restart")
		users = userrepo.NewMemoryRepository()
		auditRepo = auditrepo.NewMemoryRepository()
	}

	signer, pub, ephemeral, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return err
	}
	if ephemeral {
		logger.Warn("JWT keys not configured; generated an ephemeral ES256 key, tokens will not survive restart")
	}
	tokens := security.NewTokenProvider(signer, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	var locator geo.Locator
	if cfg.GeoIPDBPath != "" {
		g, err := geo.OpenGeoIP(cfg.GeoIPDBPath)
		if err != nil {
			logger.Warn("geoip database unavailable; geolocation disabled", "path", cfg.GeoIPDBPath, "error", err)
		} else {
			defer g.Close()
			locator = g
		}
	}

	thresholds := policydomain.Thresholds{AllowBelow: cfg.RiskAllowBelow, ChallengeAt: cfg.RiskChallengeAt}
	module, err := engine.LoadModule(cfg.PolicyRegoPath)
	if err != nil {
		logger.Warn("policy module unreadable; using default", "error", err)
		module = ""
	}
	opa, err := engine.NewOPAEvaluator(ctx, thresholds, module, logger)
	if err != nil {
		return err
	}

	// OTP delivery: dev store or SMTP.
	var (
		sender   mfa.Sender
		devStore *devotp.MemoryStore
	)
	if cfg.OTPReturnToClient {
		devStore = devotp.NewMemoryStore()
		logger.Warn("dev OTP mode enabled; codes are served at GET /dev/otp/{userId}")
	} else {
		smtpCfg := email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			Secure:   cfg.SMTPSecure,
			From:     cfg.EmailFrom,
			Timeout:  cfg.EmailTimeout(),
		}
		if !smtpCfg.Configured() {
			logger.Warn("SMTP credentials missing; challenged logins will report a delivery warning")
		}
		sender = email.NewSMTPSender(smtpCfg)
	}
	mfaOpts := mfa.Options{
		Length:      cfg.OTPLength,
		TTL:         cfg.OTPTTL(),
		SendTimeout: cfg.EmailTimeout(),
		Logger:      logger,
	}
	if devStore != nil {
		mfaOpts.DevStore = devStore
	}

	// Security events: OTel logs always, Kafka when brokers are set.
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.OTelServiceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		if providers.Shutdown == nil {
			return
		}
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()
	events := telemetry.MultiEmitter{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic); kp != nil {
		defer kp.Close()
		events = append(events, kp)
		logger.Info("publishing security events to kafka", "topic", cfg.SecurityEventsTopic)
	}

	svc := service.NewLoginService(service.Config{
		Users:    users,
		Hasher:   security.NewHasher(cfg.BcryptCost),
		Tokens:   tokens,
		Resolver: geo.NewResolver(locator, cfg.GeoTimeout(), logger),
		Assessor: risk.NewAssessor(risk.Options{
			Weights: risk.Weights{
				NewCountry:   cfg.RiskWeightNewCountry,
				NewDevice:    cfg.RiskWeightNewDevice,
				UnusualTime:  cfg.RiskWeightUnusualTime,
				UnusualDay:   cfg.RiskWeightUnusualDay,
				HighVelocity: cfg.RiskWeightHighVelocity,
			},
			VelocityWindow:    cfg.VelocityWindow(),
			VelocityThreshold: cfg.RiskVelocityThreshold,
			Location:          cfg.Location(),
		}),
		Policy:  opa,
		MFA:     mfa.NewManager(users, sender, mfaOpts),
		Audit:   audit.NewLogger(auditRepo, clientIP, logger),
		Events:  events,
		Metrics: metrics.Prometheus{},
		Logger:  logger,
	})

	checker := &health.Checker{Policy: opa}
	if conn != nil {
		checker.DB = conn
	}
	deps := server.Deps{
		Logger: logger,
		Auth:   authhandler.NewHandler(svc, tokens),
		Health: checker,
	}
	if devStore != nil {
		deps.DevOTP = devotphandler.NewHandler(devStore)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcSrv interface{ GracefulStop() }
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		g := server.NewGRPCServer(checker)
		grpcSrv = g
		go func() {
			logger.Info("gRPC health server listening", "addr", cfg.GRPCAddr)
			if err := g.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDrain)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	logger.Info("server stopped")
	return nil
}

func clientIP(ctx context.Context) string {
	meta, ok := middleware.GetRequestMeta(ctx)
	if !ok {
		return ""
	}
	return geo.ClientIP(meta.RemoteAddr, meta.XForwardedFor)
}
