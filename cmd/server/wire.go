package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portal-auth/backend/internal/audit"
	auditrepo "portal-auth/backend/internal/audit/repository"
	"portal-auth/backend/internal/config"
	consultantrepo "portal-auth/backend/internal/consultant/repository"
	"portal-auth/backend/internal/credstore"
	customerrepo "portal-auth/backend/internal/customer/repository"
	"portal-auth/backend/internal/db"
	"portal-auth/backend/internal/db/migrate"
	"portal-auth/backend/internal/devotp"
	devotphandler "portal-auth/backend/internal/devotp/handler"
	"portal-auth/backend/internal/health"
	"portal-auth/backend/internal/identity"
	identitydomain "portal-auth/backend/internal/identity/domain"
	"portal-auth/backend/internal/identity/service"
	"portal-auth/backend/internal/mfa"
	"portal-auth/backend/internal/notification"
	"portal-auth/backend/internal/policy/engine"
	"portal-auth/backend/internal/security"
	"portal-auth/backend/internal/server"
	"portal-auth/backend/internal/server/middleware"
	"portal-auth/backend/internal/sso"
	"portal-auth/backend/internal/telemetry"
	telemetryotel "portal-auth/backend/internal/telemetry/otel"
	"portal-auth/backend/internal/telemetry/producer"
)

const (
	serviceName    = "portal-auth"
	janitorPeriod  = time.Minute
	readinessLimit = 2 * time.Second
)

// app holds the long-lived dependencies of the API server.
type app struct {
	auth        *service.AuthService
	metadata    server.MetadataSource
	tokens      *security.TokenIssuer
	checker     *health.Checker
	httpMetrics *middleware.HTTPMetrics
	limiter     *middleware.RateLimiter
	devOTP      *devotphandler.Handler

	closers []func(context.Context) error
}

func (a *app) onClose(f func(context.Context) error) {
	a.closers = append(a.closers, f)
}

// close runs the registered closers in reverse order.
func (a *app) close(log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn("shutdown step failed", zap.Error(err))
		}
	}
}

func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{checker: health.NewChecker(readinessLimit)}
	defer func() {
		if err != nil {
			a.close(log)
		}
	}()

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTelEndpoint, serviceName, cfg.OTelInsecure)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	providers.SetGlobal()
	a.onClose(providers.Shutdown)

	if cfg.MigrateOnStart {
		if err := migrate.Run(cfg.DatabaseURL, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a.onClose(func(context.Context) error { return sqlDB.Close() })
	a.checker.Add("database", health.PingFunc(sqlDB.PingContext))

	secret, err := security.LoadSecret(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	a.tokens, err = security.NewTokenIssuer(secret, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	if err != nil {
		return nil, fmt.Errorf("token issuer: %w", err)
	}
	sealKey, err := security.LoadSecret(cfg.MFASecretKey)
	if err != nil {
		return nil, fmt.Errorf("mfa secret key: %w", err)
	}
	sealer, err := security.NewSealer(sealKey)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}

	store, err := newCredstore(ctx, cfg, a)
	if err != nil {
		return nil, err
	}
	classifier, err := newClassifier(ctx, cfg, a)
	if err != nil {
		return nil, err
	}

	customers := customerrepo.NewPostgresRepository(sqlDB)
	consultants := consultantrepo.NewPostgresRepository(sqlDB)

	var bridge service.SSOBridge
	if cfg.SAMLEnabled() {
		provider, err := newSAMLProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		bridge = sso.NewBridge(store, provider, consultants)
		a.metadata = provider
	} else {
		log.Warn("SAML is not configured; consultant sign-in is unavailable")
	}

	events := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.AuthEventsTopic); kp != nil {
		events = append(events, kp)
		a.onClose(func(context.Context) error { return kp.Close() })
	}
	authMetrics, err := telemetryotel.NewAuthMetrics(providers.MeterProvider)
	if err != nil {
		return nil, fmt.Errorf("auth metrics: %w", err)
	}

	a.auth, err = service.NewAuthService(service.Deps{
		Classifier: classifier,
		Customers:  customers,
		Store:      store,
		Enrollment: mfa.NewEnroller(customers, mfa.NewAuthenticator(cfg.MFAIssuer), sealer),
		Bridge:     bridge,
		Tokens:     a.tokens,
		Notifier:   newNotifier(cfg, sqlDB, a, log),
		Audit:      audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), audit.ClientIP, log),
		Events:     events,
		Metrics:    authMetrics,
		Logger:     log,
	}, service.Options{
		OTPTTL:         cfg.OTPTTL(),
		SignupTokenTTL: cfg.SignupTokenTTL(),
		MFARequired:    cfg.MFARequired,
		PublicURL:      cfg.PublicURL,
	})
	if err != nil {
		return nil, err
	}

	a.httpMetrics, err = middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, err
	}
	a.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
		RPS:   cfg.RateLimitRPS,
		Burst: cfg.RateLimitBurst,
	}, a.httpMetrics, log)
	go a.limiter.Run(ctx, janitorPeriod)
	return a, nil
}

func newCredstore(ctx context.Context, cfg *config.Config, a *app) (credstore.Store, error) {
	opts := credstore.Options{
		OTPTTL:   cfg.OTPTTL(),
		SSOTTL:   cfg.SSORequestTTL(),
		Generate: mfa.NewOTPGenerator(cfg.OTPLength),
	}
	if cfg.CredstoreBackend != "redis" {
		store := credstore.NewMemoryStore(opts)
		go store.Run(ctx, janitorPeriod)
		return store, nil
	}
	client := red.NewClient(&red.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.onClose(func(context.Context) error { return client.Close() })
	store := credstore.NewRedisStore(client, cfg.RedisKeyPrefix, opts)
	if err := store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.checker.Add("credstore", store)
	return store, nil
}

func newClassifier(ctx context.Context, cfg *config.Config, a *app) (identitydomain.Classifier, error) {
	domains := cfg.EnterpriseDomainList()
	if cfg.IdentityPolicyFile == "" {
		return identity.NewDomainClassifier(domains), nil
	}
	opa, err := engine.NewOPAClassifierFromFile(ctx, cfg.IdentityPolicyFile, domains)
	if err != nil {
		return nil, fmt.Errorf("identity policy: %w", err)
	}
	a.checker.Add("policy", health.PingFunc(opa.HealthCheck))
	return opa, nil
}

func newSAMLProvider(ctx context.Context, cfg *config.Config) (*sso.SAMLProvider, error) {
	samlCfg := sso.SAMLConfig{
		EntityID:         cfg.SAMLEntityID,
		RootURL:          cfg.SAMLRootURL,
		IDPMetadataURL:   cfg.SAMLIDPMetadataURL,
		IDPMetadataFile:  cfg.SAMLIDPMetadataFile,
		EmailAttribute:   cfg.SAMLEmailAttribute,
		NameAttribute:    cfg.SAMLNameAttribute,
		PhoneAttribute:   cfg.SAMLPhoneAttribute,
		SubjectAttribute: cfg.SAMLSubjectAttribute,
	}
	if cfg.SAMLSPKey != "" {
		key, err := security.ParsePrivateKey(cfg.SAMLSPKey)
		if err != nil {
			return nil, fmt.Errorf("saml sp key: %w", err)
		}
		cert, err := security.ParseCertificate(cfg.SAMLSPCert)
		if err != nil {
			return nil, fmt.Errorf("saml sp cert: %w", err)
		}
		samlCfg.Key, samlCfg.Certificate = key, cert
	}
	provider, err := sso.NewSAMLProvider(ctx, samlCfg)
	if err != nil {
		return nil, fmt.Errorf("saml: %w", err)
	}
	return provider, nil
}

func newNotifier(cfg *config.Config, sqlDB *sql.DB, a *app, log *zap.Logger) *notification.Notifier {
	var sender notification.Sender
	if cfg.NotifyMode == "smtp" {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		})
	} else {
		sender = notification.NewLogSender(log)
	}
	if cfg.DevOTPEnabled {
		store := devotp.NewMemoryStore()
		sender = devotp.NewCaptureSender(sender, store, cfg.SignupTokenTTL())
		a.devOTP = devotphandler.NewHandler(store)
		log.Warn("dev OTP mailbox enabled; GET /dev/otp exposes sent emails")
	}
	return notification.NewNotifier(sender, notification.NewPostgresDeliveryLog(sqlDB), log)
}
