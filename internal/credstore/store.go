// Package credstore holds short-lived per-email authentication state: email OTPs,
// pending SSO requests and consumed TOTP time steps. Entries expire by TTL.
package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"portal-auth/backend/internal/mfa"
)

var (
	// ErrNotFound is returned when a pending SSO request is unknown, expired or already resolved.
	ErrNotFound = errors.New("credstore: not found")
	// ErrUnavailable wraps backend failures (e.g. Redis unreachable).
	ErrUnavailable = errors.New("credstore: backend unavailable")
)

const (
	DefaultOTPTTL = 5 * time.Minute
	DefaultSSOTTL = 10 * time.Minute

	// stepClaimTTL covers the whole window in which a TOTP step can still validate.
	stepClaimTTL = time.Duration((2*mfa.TOTPSkew+2)*mfa.TOTPPeriod) * time.Second
)

// Store is the ephemeral credential store.
type Store interface {
	// IssueOTP generates a code for email, replacing any earlier one, and returns it.
	IssueOTP(ctx context.Context, email string) (string, error)
	// ValidateOTP reports whether code is the current unexpired OTP for email.
	// A match consumes the OTP. A mismatch leaves it in place.
	ValidateOTP(ctx context.Context, email, code string) (bool, error)
	// RegisterPendingSSO records an SSO attempt for email and returns its request id.
	RegisterPendingSSO(ctx context.Context, email string) (string, error)
	// ResolvePendingSSO returns and removes the email for requestID. ErrNotFound when absent.
	ResolvePendingSSO(ctx context.Context, requestID string) (string, error)
	// ClaimTOTPStep marks step as used for email. It returns false if it was already used.
	ClaimTOTPStep(ctx context.Context, email string, step int64) (bool, error)
	// RedeemOTPWithStep consumes the OTP and claims step in one operation. Either both
	// happen or neither does, so a replayed step never burns the OTP.
	RedeemOTPWithStep(ctx context.Context, email, code string, step int64) (Redemption, error)
}

// Redemption is the outcome of RedeemOTPWithStep.
type Redemption int

const (
	Redeemed Redemption = iota
	// RedeemInvalidOTP means no current OTP matched code.
	RedeemInvalidOTP
	// RedeemStepUsed means the OTP matched but step was already claimed; the OTP is kept.
	RedeemStepUsed
)

// Options configures a Store.
type Options struct {
	OTPTTL   time.Duration
	SSOTTL   time.Duration
	Generate mfa.OTPGenerator
}

func (o Options) withDefaults() Options {
	if o.OTPTTL <= 0 {
		o.OTPTTL = DefaultOTPTTL
	}
	if o.SSOTTL <= 0 {
		o.SSOTTL = DefaultSSOTTL
	}
	if o.Generate == nil {
		o.Generate = mfa.GenerateOTP
	}
	return o
}

// newRequestID returns an id usable as a SAML AuthnRequest ID (an XML NCName).
func newRequestID() string {
	return "id-" + uuid.NewString()
}
