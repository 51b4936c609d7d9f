package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the instrumentation scope of the auth counters.
const MeterName = "portal-auth/auth"

// AuthMetrics holds the auth counters recorded by the orchestrator.
type AuthMetrics struct {
	otpIssued    metric.Int64Counter
	loginSuccess metric.Int64Counter
	loginFailure metric.Int64Counter
}

// NewAuthMetrics creates the counters on provider. A nil provider yields no-op counters.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	m := provider.Meter(MeterName)
	otpIssued, err := m.Int64Counter("auth.otp.issued",
		metric.WithDescription("Email OTPs issued"))
	if err != nil {
		return nil, err
	}
	loginSuccess, err := m.Int64Counter("auth.login.success",
		metric.WithDescription("Session tokens issued"))
	if err != nil {
		return nil, err
	}
	loginFailure, err := m.Int64Counter("auth.login.failure",
		metric.WithDescription("Rejected login steps"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{otpIssued: otpIssued, loginSuccess: loginSuccess, loginFailure: loginFailure}, nil
}

// OTPIssued counts one issued OTP.
func (m *AuthMetrics) OTPIssued(ctx context.Context) {
	if m == nil {
		return
	}
	m.otpIssued.Add(ctx, 1)
}

// LoginSuccess counts one issued token for class and method (otp, totp, mfa_login, sso).
func (m *AuthMetrics) LoginSuccess(ctx context.Context, class, method string) {
	if m == nil {
		return
	}
	m.loginSuccess.Add(ctx, 1, metric.WithAttributes(
		attribute.String("identity_class", class),
		attribute.String("method", method)))
}

// LoginFailure counts one rejected step, labelled with the failure reason.
func (m *AuthMetrics) LoginFailure(ctx context.Context, method, reason string) {
	if m == nil {
		return
	}
	m.loginFailure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("reason", reason)))
}
