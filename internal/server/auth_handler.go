package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	customerdomain "portal-auth/backend/internal/customer/domain"
	identitydomain "portal-auth/backend/internal/identity/domain"
	"portal-auth/backend/internal/identity/service"
	"portal-auth/backend/internal/server/middleware"
)

// AuthAPI is the orchestrator surface the HTTP handlers drive.
type AuthAPI interface {
	RequestOTP(ctx context.Context, email string) (*service.OTPRequestResult, error)
	VerifyOTP(ctx context.Context, email, otp string) (*service.OTPVerifyResult, error)
	VerifyTOTP(ctx context.Context, email, totp string) error
	MFALogin(ctx context.Context, email, otp, totp string) (*service.TokenResult, error)
	CompleteSSO(ctx context.Context, relayState, samlResponse string) (*service.SSOResult, error)
	Signup(ctx context.Context, in service.SignupInput) (*customerdomain.Customer, error)
	VerifyEmail(ctx context.Context, email, token string) error
}

// MetadataSource serves the SAML service provider metadata document.
type MetadataSource interface {
	Metadata() ([]byte, error)
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type verifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

type verifyTOTPRequest struct {
	Email string `json:"email" binding:"required"`
	TOTP  string `json:"totp" binding:"required"`
}

type mfaLoginRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
	TOTP  string `json:"totp"`
}

type signupRequest struct {
	Email       string `json:"email" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Contact     string `json:"contact"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	Country     string `json:"country"`
}

type verifyEmailRequest struct {
	Email string `json:"email" form:"email" binding:"required"`
	Token string `json:"token" form:"token" binding:"required"`
}

type consultantRedirectResponse struct {
	Type           string `json:"type"`
	SSORedirectURL string `json:"sso_redirect_url"`
}

type otpSentResponse struct {
	Message  string `json:"message"`
	Email    string `json:"email"`
	MFASetup bool   `json:"mfa_setup"`
}

type authenticatorSetupResponse struct {
	QRCodeBase64    string `json:"qr_code_base64"`
	ProvisioningURI string `json:"provisioning_uri"`
	Email           string `json:"email"`
	MFASetup        bool   `json:"mfa_setup"`
}

type messageResponse struct {
	Message  string `json:"message"`
	MFASetup *bool  `json:"mfa_setup,omitempty"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type consultantResponse struct {
	ID          string `json:"id"`
	Mail        string `json:"mail"`
	DisplayName string `json:"display_name"`
	MobilePhone string `json:"mobile_phone,omitempty"`
	Role        string `json:"role"`
}

type ssoLoginResponse struct {
	Consultant consultantResponse `json:"consultant"`
	Created    bool               `json:"created"`
	tokenResponse
}

type customerResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type meResponse struct {
	Subject       string    `json:"subject"`
	IdentityClass string    `json:"identity_class"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// AuthHandler serves the login, enrollment and signup routes.
type AuthHandler struct {
	auth     AuthAPI
	metadata MetadataSource
	log      *zap.Logger
}

// NewAuthHandler returns an AuthHandler. metadata may be nil when SAML is not configured.
func NewAuthHandler(auth AuthAPI, metadata MetadataSource, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{auth: auth, metadata: metadata, log: log}
}

// RequestOTP handles POST /request-otp. Consultants get an IdP redirect; approved
// customers get a one-time passcode by email.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email is required")
		return
	}
	res, err := h.auth.RequestOTP(c.Request.Context(), req.Email)
	if err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	if res.Class == identitydomain.ClassConsultant {
		c.JSON(http.StatusOK, consultantRedirectResponse{
			Type:           string(identitydomain.ClassConsultant),
			SSORedirectURL: res.RedirectURL,
		})
		return
	}
	c.JSON(http.StatusOK, otpSentResponse{
		Message:  "OTP sent to email",
		Email:    res.Email,
		MFASetup: res.MFAEnabled,
	})
}

// VerifyOTP handles POST /verify-otp. Customers without an authenticator get a
// fresh secret as a QR code.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and otp are required")
		return
	}
	res, err := h.auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	if res.MFAEnabled {
		enabled := true
		c.JSON(http.StatusOK, messageResponse{
			Message:  "authenticator already set up; sign in with /mfa-login",
			MFASetup: &enabled,
		})
		return
	}
	c.JSON(http.StatusOK, authenticatorSetupResponse{
		QRCodeBase64:    res.QRCodeBase64,
		ProvisioningURI: res.ProvisioningURI,
		Email:           res.Email,
		MFASetup:        false,
	})
}

// VerifyTOTP handles POST /verify-totp and completes authenticator enrollment.
func (h *AuthHandler) VerifyTOTP(c *gin.Context) {
	var req verifyTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and totp are required")
		return
	}
	if err := h.auth.VerifyTOTP(c.Request.Context(), req.Email, req.TOTP); err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "authenticator enabled"})
}

// MFALogin handles POST /mfa-login.
func (h *AuthHandler) MFALogin(c *gin.Context) {
	var req mfaLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and otp are required")
		return
	}
	tok, err := h.auth.MFALogin(c.Request.Context(), req.Email, req.OTP, req.TOTP)
	if err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	c.JSON(http.StatusOK, toTokenResponse(*tok))
}

// AssertionConsumer handles POST /sso/acs/, the IdP's HTTP-POST binding callback.
func (h *AuthHandler) AssertionConsumer(c *gin.Context) {
	samlResponse := c.PostForm("SAMLResponse")
	if samlResponse == "" {
		badRequest(c, "SAMLResponse is required")
		return
	}
	res, err := h.auth.CompleteSSO(c.Request.Context(), c.PostForm("RelayState"), samlResponse)
	if err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, ssoLoginResponse{
		Consultant: consultantResponse{
			ID:          res.Consultant.ID,
			Mail:        res.Consultant.Mail,
			DisplayName: res.Consultant.DisplayName,
			MobilePhone: res.Consultant.MobilePhone,
			Role:        string(res.Consultant.Role),
		},
		Created:       res.Created,
		tokenResponse: toTokenResponse(res.Token),
	})
}

// Metadata handles GET /metadata/.
func (h *AuthHandler) Metadata(c *gin.Context) {
	if h.metadata == nil {
		middleware.AbortWithError(c, http.StatusNotFound, "single sign-on is not configured")
		return
	}
	b, err := h.metadata.Metadata()
	if err != nil {
		RespondWithMappedError(c, h.log, err, nil)
		return
	}
	c.Data(http.StatusOK, "application/samlmetadata+xml", b)
}

// Signup handles POST /signup/.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and name are required")
		return
	}
	cust, err := h.auth.Signup(c.Request.Context(), service.SignupInput{
		Email:       req.Email,
		Name:        req.Name,
		Contact:     req.Contact,
		CompanyName: req.CompanyName,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
	})
	if err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	c.JSON(http.StatusCreated, customerResponse{
		ID:      cust.ID,
		Email:   cust.Email,
		Name:    cust.Name,
		Status:  string(cust.Status),
		Message: "account created; check your email to verify your address",
	})
}

// VerifyEmail handles GET /verify-email (the emailed link) and POST /verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	var err error
	if c.Request.Method == http.MethodGet {
		err = c.ShouldBindQuery(&req)
	} else {
		err = c.ShouldBindJSON(&req)
	}
	if err != nil {
		badRequest(c, "email and token are required")
		return
	}
	if err := h.auth.VerifyEmail(c.Request.Context(), req.Email, req.Token); err != nil {
		RespondWithMappedError(c, h.log, err, authErrorCases)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "email verified; your account is pending approval"})
}

// Me handles GET /me for a bearer-authenticated caller.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	c.JSON(http.StatusOK, meResponse{
		Subject:       p.Subject,
		IdentityClass: p.IdentityClass,
		ExpiresAt:     p.ExpiresAt,
	})
}

func toTokenResponse(t service.TokenResult) tokenResponse {
	return tokenResponse{
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ExpiresAt:   t.ExpiresAt,
	}
}
