package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"portal-auth/backend/internal/audit"
	consultantdomain "portal-auth/backend/internal/consultant/domain"
	"portal-auth/backend/internal/credstore"
	customerdomain "portal-auth/backend/internal/customer/domain"
	customerrepo "portal-auth/backend/internal/customer/repository"
	"portal-auth/backend/internal/identity"
	identitydomain "portal-auth/backend/internal/identity/domain"
	"portal-auth/backend/internal/logger"
	"portal-auth/backend/internal/mfa"
	"portal-auth/backend/internal/notification"
	"portal-auth/backend/internal/security"
	"portal-auth/backend/internal/sso"
	"portal-auth/backend/internal/telemetry"
	telemetryotel "portal-auth/backend/internal/telemetry/otel"
)

// Sentinel errors for the auth service; the HTTP layer maps them to status codes.
var (
	ErrAccountNotFound          = errors.New("account not found")
	ErrAccountNotApproved       = errors.New("account not approved")
	ErrInvalidCredential        = errors.New("invalid credentials")
	ErrMFAEnrollmentRequired    = errors.New("authenticator enrollment required")
	ErrEmailAlreadyRegistered   = errors.New("email already registered")
	ErrEnterpriseEmail          = errors.New("enterprise accounts sign in with single sign-on")
	ErrInvalidSignup            = errors.New("invalid signup")
	ErrInvalidVerificationToken = errors.New("invalid or expired verification token")
	ErrUpstreamUnavailable      = errors.New("upstream service unavailable")
)

// TokenTypeBearer is the token_type returned with every session token.
const TokenTypeBearer = "bearer"

const tracerName = "portal-auth/identity"

// Login methods used as metric and audit labels.
const (
	methodOTP      = "otp"
	methodTOTP     = "totp"
	methodMFALogin = "mfa_login"
	methodSSO      = "sso"
)

// CustomerRepo is the minimal customer repository needed by the auth service.
type CustomerRepo interface {
	GetByEmail(ctx context.Context, email string) (*customerdomain.Customer, error)
	Create(ctx context.Context, c *customerdomain.Customer) error
	MarkEmailVerified(ctx context.Context, email, tokenHash string, now time.Time) (bool, error)
}

// Enrollment is the authenticator enrollment state machine.
type Enrollment interface {
	IssueSecret(ctx context.Context, email string) (*mfa.Secret, error)
	Confirm(ctx context.Context, email, code string) (int64, error)
	Check(ctx context.Context, email, code string) (int64, error)
}

// SSOBridge starts and completes consultant SAML logins.
type SSOBridge interface {
	Initiate(ctx context.Context, email string) (string, error)
	Complete(ctx context.Context, relayState, samlResponse string) (*sso.Result, error)
}

// Notifier delivers rendered messages.
type Notifier interface {
	Send(ctx context.Context, to string, m notification.Message) error
}

// Deps are the collaborators of AuthService. Bridge, Audit, Events and Metrics may be nil.
type Deps struct {
	Classifier identitydomain.Classifier
	Customers  CustomerRepo
	Store      credstore.Store
	Enrollment Enrollment
	Bridge     SSOBridge
	Tokens     *security.TokenIssuer
	Notifier   Notifier
	Audit      audit.AuditLogger
	Events     telemetry.EventEmitter
	Metrics    *telemetryotel.AuthMetrics
	Logger     *zap.Logger
}

// Options are the tunables of AuthService.
type Options struct {
	// OTPTTL is quoted in the OTP email; the store enforces it.
	OTPTTL time.Duration
	// SignupTokenTTL bounds the email verification link.
	SignupTokenTTL time.Duration
	// MFARequired refuses tokens to customers without an enrolled authenticator.
	MFARequired bool
	// PublicURL is the base of the email verification link.
	PublicURL string
}

// OTPRequestResult is the outcome of RequestOTP. Consultants get RedirectURL; customers get MFAEnabled.
type OTPRequestResult struct {
	Class       identitydomain.Class
	Email       string
	RedirectURL string
	MFAEnabled  bool
}

// OTPVerifyResult is the outcome of VerifyOTP. When MFAEnabled is false it carries a new authenticator secret.
type OTPVerifyResult struct {
	Email           string
	MFAEnabled      bool
	QRCodeBase64    string
	ProvisioningURI string
}

// TokenResult is an issued session token.
type TokenResult struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// SSOResult is the outcome of a completed consultant login.
type SSOResult struct {
	Consultant *consultantdomain.Consultant
	Created    bool
	Token      TokenResult
}

// SignupInput is the customer signup form.
type SignupInput struct {
	Email       string
	Name        string
	Contact     string
	CompanyName string
	Address     string
	City        string
	State       string
	Country     string
}

// AuthService classifies login attempts and sequences the consultant SSO path and
// the customer OTP + authenticator path, minting a session token on success.
type AuthService struct {
	classifier identitydomain.Classifier
	customers  CustomerRepo
	store      credstore.Store
	enrollment Enrollment
	bridge     SSOBridge
	tokens     *security.TokenIssuer
	notifier   Notifier
	audit      audit.AuditLogger
	events     telemetry.EventEmitter
	metrics    *telemetryotel.AuthMetrics
	log        *zap.Logger
	tracer     trace.Tracer
	opts       Options
	now        func() time.Time
}

// NewAuthService returns an AuthService. Classifier, Customers, Store, Enrollment, Tokens and Notifier are required.
func NewAuthService(d Deps, opts Options) (*AuthService, error) {
	if d.Classifier == nil || d.Customers == nil || d.Store == nil || d.Enrollment == nil || d.Tokens == nil || d.Notifier == nil {
		return nil, errors.New("auth service: missing dependency")
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = credstore.DefaultOTPTTL
	}
	if opts.SignupTokenTTL <= 0 {
		opts.SignupTokenTTL = 24 * time.Hour
	}
	return &AuthService{
		classifier: d.Classifier,
		customers:  d.Customers,
		store:      d.Store,
		enrollment: d.Enrollment,
		bridge:     d.Bridge,
		tokens:     d.Tokens,
		notifier:   d.Notifier,
		audit:      d.Audit,
		events:     d.Events,
		metrics:    d.Metrics,
		log:        d.Logger,
		tracer:     otel.Tracer(tracerName),
		opts:       opts,
		now:        time.Now,
	}, nil
}

// SetClock overrides the time source. Used by tests.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// RequestOTP starts a login. Consultants get an IdP redirect and no OTP is issued.
// Approved customers get an OTP by email.
func (s *AuthService) RequestOTP(ctx context.Context, email string) (_ *OTPRequestResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.RequestOTP")
	defer func() { endSpan(span, err) }()

	email, class, err := s.classify(ctx, email)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("identity_class", string(class)))

	if class == identitydomain.ClassConsultant {
		redirect, err := s.initiateSSO(ctx, email)
		if err != nil {
			return nil, err
		}
		return &OTPRequestResult{Class: class, Email: email, RedirectURL: redirect}, nil
	}

	c, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	if c == nil {
		s.failure(ctx, methodOTP, email, "account_not_found")
		return nil, ErrAccountNotFound
	}
	if !c.CanLogin() {
		s.failure(ctx, methodOTP, email, "account_not_approved")
		return nil, ErrAccountNotApproved
	}

	code, err := s.store.IssueOTP(ctx, email)
	if err != nil {
		return nil, upstream(err)
	}
	s.metrics.OTPIssued(ctx)
	s.record(ctx, telemetry.EventOTPIssued, email, class, "otp", nil)

	// The OTP stays valid when delivery fails; requesting again is the recourse.
	if err := s.notifier.Send(ctx, email, notification.OTPMessage(code, s.opts.OTPTTL)); err != nil {
		s.logger(ctx).Warn("otp delivery failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
	return &OTPRequestResult{Class: class, Email: email, MFAEnabled: c.MFAEnabled}, nil
}

func (s *AuthService) initiateSSO(ctx context.Context, email string) (string, error) {
	if s.bridge == nil {
		return "", fmt.Errorf("%w: single sign-on is not configured", ErrUpstreamUnavailable)
	}
	redirect, err := s.bridge.Initiate(ctx, email)
	if err != nil {
		s.logger(ctx).Error("sso initiate failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return "", upstream(err)
	}
	s.record(ctx, telemetry.EventSSOInitiated, email, identitydomain.ClassConsultant, "sso", nil)
	return redirect, nil
}

// VerifyOTP consumes a correct OTP. Enrolled customers are told so; others receive
// a fresh authenticator secret to scan and confirm with VerifyTOTP.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) (_ *OTPVerifyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyOTP")
	defer func() { endSpan(span, err) }()

	email, err = identity.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	c, err := s.approvedCustomer(ctx, methodOTP, email)
	if err != nil {
		return nil, err
	}
	if err := s.consumeOTP(ctx, methodOTP, email, otp); err != nil {
		return nil, err
	}
	s.record(ctx, telemetry.EventOTPVerified, email, identitydomain.ClassCustomer, "otp", nil)

	if c.MFAEnabled {
		return &OTPVerifyResult{Email: email, MFAEnabled: true}, nil
	}
	secret, err := s.enrollment.IssueSecret(ctx, email)
	if errors.Is(err, mfa.ErrAlreadyEnrolled) {
		return &OTPVerifyResult{Email: email, MFAEnabled: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("issue authenticator secret: %w", err)
	}
	return &OTPVerifyResult{
		Email:           email,
		QRCodeBase64:    secret.QRCodePNG,
		ProvisioningURI: secret.ProvisioningURI,
	}, nil
}

// VerifyTOTP confirms the authenticator secret issued by VerifyOTP and enables MFA.
// The matched time step is claimed so the same code cannot also complete a login.
func (s *AuthService) VerifyTOTP(ctx context.Context, email, totp string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyTOTP")
	defer func() { endSpan(span, err) }()

	email, err = identity.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if strings.TrimSpace(totp) == "" {
		s.failure(ctx, methodTOTP, email, "missing_code")
		return ErrInvalidCredential
	}
	step, err := s.enrollment.Confirm(ctx, email, totp)
	switch {
	case errors.Is(err, mfa.ErrInvalidCode), errors.Is(err, mfa.ErrNoPendingSecret),
		errors.Is(err, mfa.ErrEnrollmentConflict), errors.Is(err, customerrepo.ErrNotFound):
		s.failure(ctx, methodTOTP, email, reasonOf(err))
		return ErrInvalidCredential
	case err != nil:
		return fmt.Errorf("confirm authenticator: %w", err)
	}
	if err := s.claimStep(ctx, methodTOTP, email, step); err != nil {
		return err
	}
	s.record(ctx, telemetry.EventMFAEnrolled, email, identitydomain.ClassCustomer, "mfa", nil)
	return nil
}

// MFALogin checks the OTP and, for enrolled customers, the authenticator code, then issues a token.
// Any factor failure returns ErrInvalidCredential without saying which.
func (s *AuthService) MFALogin(ctx context.Context, email, otp, totp string) (_ *TokenResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.MFALogin")
	defer func() { endSpan(span, err) }()

	email, err = identity.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	c, err := s.approvedCustomer(ctx, methodMFALogin, email)
	if err != nil {
		return nil, err
	}
	totp = strings.TrimSpace(totp)

	if !c.MFAEnabled {
		if totp != "" {
			s.failure(ctx, methodMFALogin, email, "totp_without_enrollment")
			return nil, ErrInvalidCredential
		}
		if s.opts.MFARequired {
			s.failure(ctx, methodMFALogin, email, "enrollment_required")
			return nil, ErrMFAEnrollmentRequired
		}
		if err := s.consumeOTP(ctx, methodMFALogin, email, otp); err != nil {
			return nil, err
		}
		return s.grant(ctx, email, identitydomain.ClassCustomer, methodMFALogin)
	}

	// The authenticator code is checked first without side effects, so a wrong
	// code never burns the OTP.
	if totp == "" {
		s.failure(ctx, methodMFALogin, email, "missing_code")
		return nil, ErrInvalidCredential
	}
	step, err := s.enrollment.Check(ctx, email, totp)
	switch {
	case errors.Is(err, mfa.ErrInvalidCode), errors.Is(err, mfa.ErrNoPendingSecret):
		s.failure(ctx, methodMFALogin, email, reasonOf(err))
		return nil, ErrInvalidCredential
	case err != nil:
		return nil, fmt.Errorf("check authenticator: %w", err)
	}
	if err := s.redeem(ctx, methodMFALogin, email, otp, step); err != nil {
		return nil, err
	}
	return s.grant(ctx, email, identitydomain.ClassCustomer, methodMFALogin)
}

// CompleteSSO verifies the IdP response for a pending request and issues a consultant token.
func (s *AuthService) CompleteSSO(ctx context.Context, relayState, samlResponse string) (_ *SSOResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.CompleteSSO")
	defer func() { endSpan(span, err) }()

	if s.bridge == nil {
		return nil, fmt.Errorf("%w: single sign-on is not configured", ErrUpstreamUnavailable)
	}
	res, err := s.bridge.Complete(ctx, relayState, samlResponse)
	if err != nil {
		if errors.Is(err, credstore.ErrUnavailable) {
			return nil, upstream(err)
		}
		s.failure(ctx, methodSSO, "", reasonOf(err))
		s.logger(ctx).Info("sso assertion rejected", zap.Error(err))
		return nil, err
	}
	consultant := res.Consultant
	meta := map[string]string{"consultant_id": consultant.ID}
	if res.Created {
		meta["provisioned"] = "true"
	}
	s.record(ctx, telemetry.EventSSOCompleted, consultant.Mail, identitydomain.ClassConsultant, "sso", meta)

	tok, err := s.grant(ctx, consultant.Mail, identitydomain.ClassConsultant, methodSSO)
	if err != nil {
		return nil, err
	}
	return &SSOResult{Consultant: consultant, Created: res.Created, Token: *tok}, nil
}

// Signup registers an UNVERIFIED customer and emails a verification link.
// Enterprise-domain emails are refused; those accounts come from the IdP.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (_ *customerdomain.Customer, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Signup")
	defer func() { endSpan(span, err) }()

	email, class, err := s.classify(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if class == identitydomain.ClassConsultant {
		return nil, ErrEnterpriseEmail
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidSignup)
	}
	existing, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	token, err := security.NewVerificationToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &customerdomain.Customer{
		ID:                      uuid.NewString(),
		Email:                   email,
		Name:                    name,
		Contact:                 strings.TrimSpace(in.Contact),
		CompanyName:             strings.TrimSpace(in.CompanyName),
		Address:                 strings.TrimSpace(in.Address),
		City:                    strings.TrimSpace(in.City),
		State:                   strings.TrimSpace(in.State),
		Country:                 strings.TrimSpace(in.Country),
		Status:                  customerdomain.StatusUnverified,
		VerificationTokenHash:   security.HashVerificationToken(token),
		VerificationTokenExpiry: now.Add(s.opts.SignupTokenTTL),
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}
	if err := s.customers.Create(ctx, c); err != nil {
		if errors.Is(err, customerrepo.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}
	s.record(ctx, telemetry.EventCustomerSignup, email, identitydomain.ClassCustomer, "customer", nil)

	msg := notification.WelcomeMessage(name, s.verifyURL(email, token), s.opts.SignupTokenTTL)
	if err := s.notifier.Send(ctx, email, msg); err != nil {
		s.logger(ctx).Warn("welcome email delivery failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}
	return c, nil
}

// VerifyEmail consumes a signup verification token and moves the customer to PENDING review.
func (s *AuthService) VerifyEmail(ctx context.Context, email, token string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.VerifyEmail")
	defer func() { endSpan(span, err) }()

	email, err = identity.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrInvalidVerificationToken
	}
	ok, err := s.customers.MarkEmailVerified(ctx, email, security.HashVerificationToken(token), s.now().UTC())
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	if !ok {
		return ErrInvalidVerificationToken
	}
	s.auditLog(ctx, email, "email_verified", "customer", nil)
	return nil
}

func (s *AuthService) verifyURL(email, token string) string {
	q := url.Values{"email": {email}, "token": {token}}
	return strings.TrimSuffix(s.opts.PublicURL, "/") + "/verify-email?" + q.Encode()
}

func (s *AuthService) classify(ctx context.Context, raw string) (string, identitydomain.Class, error) {
	email, err := identity.NormalizeEmail(raw)
	if err != nil {
		return "", "", err
	}
	class, err := s.classifier.Classify(ctx, email)
	if err != nil {
		return "", "", fmt.Errorf("classify email: %w", err)
	}
	return email, class, nil
}

// approvedCustomer loads a customer for a credential step. Unknown accounts are
// reported as ErrInvalidCredential so credential endpoints do not enumerate emails.
func (s *AuthService) approvedCustomer(ctx context.Context, method, email string) (*customerdomain.Customer, error) {
	c, err := s.customers.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup customer: %w", err)
	}
	if c == nil {
		s.failure(ctx, method, email, "account_not_found")
		return nil, ErrInvalidCredential
	}
	if !c.CanLogin() {
		s.failure(ctx, method, email, "account_not_approved")
		return nil, ErrAccountNotApproved
	}
	return c, nil
}

func (s *AuthService) consumeOTP(ctx context.Context, method, email, otp string) error {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		s.failure(ctx, method, email, "missing_code")
		return ErrInvalidCredential
	}
	ok, err := s.store.ValidateOTP(ctx, email, otp)
	if err != nil {
		return upstream(err)
	}
	if !ok {
		s.failure(ctx, method, email, "invalid_otp")
		return ErrInvalidCredential
	}
	return nil
}

// redeem consumes the OTP and claims the authenticator step together, so a
// replayed step leaves the OTP usable.
func (s *AuthService) redeem(ctx context.Context, method, email, otp string, step int64) error {
	otp = strings.TrimSpace(otp)
	if otp == "" {
		s.failure(ctx, method, email, "missing_code")
		return ErrInvalidCredential
	}
	res, err := s.store.RedeemOTPWithStep(ctx, email, otp, step)
	if err != nil {
		return upstream(err)
	}
	switch res {
	case credstore.Redeemed:
		return nil
	case credstore.RedeemStepUsed:
		s.failure(ctx, method, email, "totp_replay")
	default:
		s.failure(ctx, method, email, "invalid_otp")
	}
	return ErrInvalidCredential
}

func (s *AuthService) claimStep(ctx context.Context, method, email string, step int64) error {
	ok, err := s.store.ClaimTOTPStep(ctx, email, step)
	if err != nil {
		return upstream(err)
	}
	if !ok {
		s.failure(ctx, method, email, "totp_replay")
		return ErrInvalidCredential
	}
	return nil
}

func (s *AuthService) grant(ctx context.Context, subject string, class identitydomain.Class, method string) (*TokenResult, error) {
	token, exp, err := s.tokens.Mint(subject, string(class))
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	s.metrics.LoginSuccess(ctx, string(class), method)
	s.record(ctx, telemetry.EventLoginSuccess, subject, class, "session", map[string]string{"method": method})
	return &TokenResult{AccessToken: token, TokenType: TokenTypeBearer, ExpiresAt: exp}, nil
}

// failure records a rejected step. The reason is for logs, metrics and audit only.
func (s *AuthService) failure(ctx context.Context, method, email, reason string) {
	s.metrics.LoginFailure(ctx, method, reason)
	s.logger(ctx).Info("login step rejected",
		zap.String("method", method),
		zap.String("reason", reason),
		zap.String("email", logger.MaskEmail(email)))
	ev := telemetry.NewEvent(telemetry.EventLoginFailure, maskSubject(email), "")
	ev.Reason = reason
	ev.Metadata = map[string]string{"method": method}
	telemetry.EmitAsync(s.events, ctx, ev)
	s.auditLog(ctx, email, string(telemetry.EventLoginFailure), method, map[string]string{"reason": reason})
}

func (s *AuthService) record(ctx context.Context, t telemetry.EventType, email string, class identitydomain.Class, resource string, meta map[string]string) {
	ev := telemetry.NewEvent(t, maskSubject(email), string(class))
	ev.Metadata = meta
	telemetry.EmitAsync(s.events, ctx, ev)
	s.auditLog(ctx, email, string(t), resource, meta)
}

func (s *AuthService) auditLog(ctx context.Context, subject, action, resource string, meta map[string]string) {
	if s.audit == nil {
		return
	}
	s.audit.LogEvent(ctx, subject, action, resource, meta)
}

func (s *AuthService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}

func maskSubject(email string) string {
	if email == "" {
		return ""
	}
	return logger.MaskEmail(email)
}

// upstream marks err (a store outage or an IdP request failure) as ErrUpstreamUnavailable.
func upstream(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, mfa.ErrInvalidCode):
		return "invalid_totp"
	case errors.Is(err, mfa.ErrNoPendingSecret):
		return "no_pending_secret"
	case errors.Is(err, mfa.ErrEnrollmentConflict):
		return "enrollment_conflict"
	case errors.Is(err, customerrepo.ErrNotFound):
		return "account_not_found"
	case errors.Is(err, sso.ErrUnknownRequest):
		return "unknown_request"
	case errors.Is(err, sso.ErrMissingClaim):
		return "missing_claim"
	case errors.Is(err, sso.ErrDuplicateIdentity):
		return "duplicate_identity"
	case errors.Is(err, sso.ErrInvalidAssertion):
		return "invalid_assertion"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
