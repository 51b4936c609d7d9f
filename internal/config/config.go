// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health listener; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN for customers, consultants, email and audit logs.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MigrateOnStart applies pending migrations when the API server starts.
	MigrateOnStart bool `mapstructure:"MIGRATE_ON_START"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// JWTSecret is the HMAC key for session tokens; at least 32 bytes. May be a file path.
	JWTSecret string `mapstructure:"JWT_SECRET"`
	// JWTIssuer is the iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the session token lifetime (e.g. "60m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`

	// OTPLength is the number of digits in an email OTP.
	OTPLength int `mapstructure:"OTP_LENGTH"`
	// OTPTTLValue is how long an email OTP stays valid (e.g. "5m").
	OTPTTLValue string `mapstructure:"OTP_TTL"`
	// SSORequestTTLValue bounds how long a pending SSO request is remembered.
	SSORequestTTLValue string `mapstructure:"SSO_REQUEST_TTL"`
	// SignupTokenTTLValue is the validity of the signup verification token.
	SignupTokenTTLValue string `mapstructure:"SIGNUP_TOKEN_TTL"`

	// MFAIssuer is the issuer label shown in authenticator apps.
	MFAIssuer string `mapstructure:"MFA_ISSUER"`
	// MFARequired when true refuses tokens to customers that have not enrolled an authenticator.
	MFARequired bool `mapstructure:"MFA_REQUIRED"`
	// MFASecretKey seals TOTP secrets at rest. May be a file path.
	MFASecretKey string `mapstructure:"MFA_SECRET_KEY"`

	// EnterpriseDomains is a comma-separated list of consultant email domains.
	EnterpriseDomains string `mapstructure:"ENTERPRISE_DOMAINS"`
	// IdentityPolicyFile is an optional Rego file that replaces the domain list classifier.
	IdentityPolicyFile string `mapstructure:"IDENTITY_POLICY_FILE"`

	// CredstoreBackend selects the ephemeral credential store: "memory" or "redis".
	CredstoreBackend string `mapstructure:"CREDSTORE_BACKEND"`
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int    `mapstructure:"REDIS_DB"`
	RedisKeyPrefix   string `mapstructure:"REDIS_KEY_PREFIX"`

	// PublicURL is the externally reachable base URL of this service (verification links, SAML defaults).
	PublicURL string `mapstructure:"PUBLIC_URL"`

	// SAMLEntityID is the SP entity id; defaults to the metadata URL.
	SAMLEntityID string `mapstructure:"SAML_ENTITY_ID"`
	// SAMLRootURL is the public base URL of this service (ACS and metadata are derived from it).
	SAMLRootURL string `mapstructure:"SAML_ROOT_URL"`
	// SAMLIDPMetadataURL is fetched at startup when set.
	SAMLIDPMetadataURL string `mapstructure:"SAML_IDP_METADATA_URL"`
	// SAMLIDPMetadataFile is read at startup when set and no URL is configured.
	SAMLIDPMetadataFile string `mapstructure:"SAML_IDP_METADATA_FILE"`
	SAMLEmailAttribute  string `mapstructure:"SAML_EMAIL_ATTRIBUTE"`
	SAMLNameAttribute   string `mapstructure:"SAML_NAME_ATTRIBUTE"`
	SAMLPhoneAttribute  string `mapstructure:"SAML_PHONE_ATTRIBUTE"`
	SAMLSubjectAttribute string `mapstructure:"SAML_SUBJECT_ATTRIBUTE"`
	// SAMLSPKey and SAMLSPCert are optional PEM (inline or file path) for signing requests and decrypting assertions.
	SAMLSPKey  string `mapstructure:"SAML_SP_KEY"`
	SAMLSPCert string `mapstructure:"SAML_SP_CERT"`

	// NotifyMode is "smtp" or "log". "log" writes messages to the application log and is refused in production.
	NotifyMode string `mapstructure:"NOTIFY_MODE"`
	SMTPHost   string `mapstructure:"SMTP_HOST"`
	SMTPPort   int    `mapstructure:"SMTP_PORT"`
	SMTPUser   string `mapstructure:"SMTP_USER"`
	SMTPPass   string `mapstructure:"SMTP_PASS"`
	SMTPFrom   string `mapstructure:"SMTP_FROM"`
	// DevOTPEnabled captures sent emails for GET /dev/otp. Refused in production.
	DevOTPEnabled bool `mapstructure:"DEV_OTP_ENABLED"`

	// TrustedProxies is a comma-separated list of proxy IPs or CIDRs whose X-Forwarded-For is honoured.
	// Empty trusts none, so the client IP is the connection's remote address.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`
	// CORSAllowedOrigins is a comma-separated list; "*" allows any origin.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	// RateLimitRPS and RateLimitBurst bound auth requests per client IP.
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses for auth events.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuthEventsTopic is the Kafka topic for auth events.
	AuthEventsTopic string `mapstructure:"AUTH_EVENTS_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the auth event worker.
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8000")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ISSUER", "portal-auth")
	v.SetDefault("JWT_AUDIENCE", "portal-api")
	v.SetDefault("JWT_ACCESS_TTL", "60m")
	v.SetDefault("OTP_LENGTH", 6)
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("SSO_REQUEST_TTL", "10m")
	v.SetDefault("SIGNUP_TOKEN_TTL", "24h")
	v.SetDefault("MFA_ISSUER", "Portal")
	v.SetDefault("MFA_REQUIRED", false)
	v.SetDefault("MFA_SECRET_KEY", "")
	v.SetDefault("ENTERPRISE_DOMAINS", "")
	v.SetDefault("IDENTITY_POLICY_FILE", "")
	v.SetDefault("CREDSTORE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "portal-auth")
	v.SetDefault("PUBLIC_URL", "http://localhost:8000")
	v.SetDefault("SAML_ENTITY_ID", "")
	v.SetDefault("SAML_ROOT_URL", "")
	v.SetDefault("SAML_IDP_METADATA_URL", "")
	v.SetDefault("SAML_IDP_METADATA_FILE", "")
	v.SetDefault("SAML_EMAIL_ATTRIBUTE", "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress")
	v.SetDefault("SAML_NAME_ATTRIBUTE", "http://schemas.microsoft.com/identity/claims/displayname")
	v.SetDefault("SAML_PHONE_ATTRIBUTE", "Telephone")
	v.SetDefault("SAML_SUBJECT_ATTRIBUTE", "http://schemas.microsoft.com/identity/claims/objectidentifier")
	v.SetDefault("SAML_SP_KEY", "")
	v.SetDefault("SAML_SP_CERT", "")
	v.SetDefault("NOTIFY_MODE", "smtp")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")
	v.SetDefault("DEV_OTP_ENABLED", false)
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUTH_EVENTS_KAFKA_TOPIC", "portal-auth-events")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "portal-auth-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, errors.New("config: OTP_LENGTH must be between 4 and 10")
	}
	switch cfg.CredstoreBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, errors.New("config: REDIS_ADDR must be set when CREDSTORE_BACKEND=redis")
		}
	default:
		return nil, errors.New("config: CREDSTORE_BACKEND must be memory or redis")
	}
	switch cfg.NotifyMode {
	case "smtp", "log":
	default:
		return nil, errors.New("config: NOTIFY_MODE must be smtp or log")
	}
	if cfg.NotifyMode == "log" && cfg.Env == "production" {
		return nil, errors.New("config: NOTIFY_MODE=log must not be used when APP_ENV=production")
	}
	for _, p := range cfg.TrustedProxyList() {
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return nil, fmt.Errorf("config: TRUSTED_PROXIES entry %q is not an IP or CIDR", p)
			}
		}
	}
	if cfg.DevOTPEnabled && cfg.Env == "production" {
		return nil, errors.New("config: DEV_OTP_ENABLED must not be used when APP_ENV=production")
	}

	if (cfg.SAMLSPKey == "") != (cfg.SAMLSPCert == "") {
		return nil, errors.New("config: SAML_SP_KEY and SAML_SP_CERT must be set together")
	}
	if cfg.SAMLRootURL == "" {
		cfg.SAMLRootURL = cfg.PublicURL
	}

	return &cfg, nil
}

// Validate checks the settings the API server cannot start without. The migrate and
// worker binaries load the same Config but do not need signing or sealing keys.
func (c *Config) Validate() error {
	if len(c.JWTSecret) < 32 && !looksLikePath(c.JWTSecret) {
		return errors.New("config: JWT_SECRET must be at least 32 bytes")
	}
	if c.MFASecretKey == "" {
		return errors.New("config: MFA_SECRET_KEY must be set")
	}
	if c.DatabaseURL == "" {
		return errors.New("config: DATABASE_URL must be set")
	}
	if c.NotifyMode == "smtp" && c.SMTPHost == "" {
		return errors.New("config: SMTP_HOST must be set when NOTIFY_MODE=smtp")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 60m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return parseDuration(c.JWTAccessTTL, 60*time.Minute)
}

// OTPTTL parses OTPTTLValue. Returns 5m if unset or invalid.
func (c *Config) OTPTTL() time.Duration {
	return parseDuration(c.OTPTTLValue, 5*time.Minute)
}

// SSORequestTTL parses SSORequestTTLValue. Returns 10m if unset or invalid.
func (c *Config) SSORequestTTL() time.Duration {
	return parseDuration(c.SSORequestTTLValue, 10*time.Minute)
}

// SignupTokenTTL parses SignupTokenTTLValue. Returns 24h if unset or invalid.
func (c *Config) SignupTokenTTL() time.Duration {
	return parseDuration(c.SignupTokenTTLValue, 24*time.Hour)
}

// EnterpriseDomainList returns the configured consultant email domains, lowercased, without "@".
func (c *Config) EnterpriseDomainList() []string {
	var out []string
	for _, d := range splitList(c.EnterpriseDomains) {
		out = append(out, strings.TrimPrefix(strings.ToLower(d), "@"))
	}
	return out
}

// SAMLEnabled reports whether an IdP metadata source is configured.
func (c *Config) SAMLEnabled() bool {
	return c.SAMLIDPMetadataURL != "" || c.SAMLIDPMetadataFile != ""
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the Kafka auth event stream is enabled (non-empty list).
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// TrustedProxyList returns the trusted proxy IPs and CIDRs.
func (c *Config) TrustedProxyList() []string {
	return splitList(c.TrustedProxies)
}

// CORSOrigins returns the allowed CORS origins.
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func looksLikePath(s string) bool {
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./")
}
