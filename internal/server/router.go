// Package server wires the HTTP (gin) and gRPC surfaces of the auth backend.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"portal-auth/backend/internal/health"
	"portal-auth/backend/internal/security"
	"portal-auth/backend/internal/server/middleware"
)

// RouterDeps holds the dependencies of the HTTP router.
type RouterDeps struct {
	Auth AuthAPI
	// Metadata serves GET /metadata/. If nil, the route answers 404.
	Metadata MetadataSource
	// Tokens verifies bearer tokens for GET /me.
	Tokens  *security.TokenIssuer
	Checker *health.Checker
	// Metrics records request counters. If nil, requests are not instrumented.
	Metrics *middleware.HTTPMetrics
	// MetricsHandler serves GET /metrics. If nil, promhttp.Handler() (default registry) is used.
	MetricsHandler http.Handler
	// RateLimiter guards the credential routes. If nil, no limit applies.
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
	// TrustedProxies lists proxy IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty trusts none, so rate limits and audit rows use the remote address.
	TrustedProxies []string
	// DevOTP serves GET /dev/otp when set. Development only.
	DevOTP gin.HandlerFunc
	Logger *zap.Logger
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d RouterDeps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		log.Warn("invalid trusted proxies; trusting none", zap.Error(err))
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		middleware.Recovery(log),
		middleware.RequestID(),
		middleware.Logger(log),
		d.Metrics.Handler(),
		middleware.CORS(d.CORSOrigins),
	)
	r.NoRoute(middleware.NotFound())

	h := NewAuthHandler(d.Auth, d.Metadata, log)
	limited := r.Group("/")
	if d.RateLimiter != nil {
		limited.Use(d.RateLimiter.Handler())
	}
	limited.POST("/request-otp", h.RequestOTP)
	limited.POST("/verify-otp", h.VerifyOTP)
	limited.POST("/verify-totp", h.VerifyTOTP)
	limited.POST("/mfa-login", h.MFALogin)
	limited.POST("/sso/acs/", h.AssertionConsumer)
	limited.POST("/signup/", h.Signup)
	limited.GET("/verify-email", h.VerifyEmail)
	limited.POST("/verify-email", h.VerifyEmail)

	r.GET("/metadata/", h.Metadata)
	r.GET("/me", middleware.RequireAuth(d.Tokens), h.Me)

	if d.DevOTP != nil {
		r.GET("/dev/otp", d.DevOTP)
	}

	hh := NewHealthHandler(d.Checker)
	r.GET("/healthz", hh.Live)
	r.GET("/readyz", hh.Ready)

	metricsHandler := d.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))
	return r
}
