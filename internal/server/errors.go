package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portal-auth/backend/internal/identity"
	"portal-auth/backend/internal/identity/service"
	"portal-auth/backend/internal/logger"
	"portal-auth/backend/internal/server/middleware"
	"portal-auth/backend/internal/sso"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// authErrorCases is checked in order; the first errors.Is match wins.
var authErrorCases = []ErrorCase{
	{identity.ErrInvalidEmail, http.StatusBadRequest, "invalid email address"},
	{service.ErrInvalidSignup, http.StatusBadRequest, "invalid signup"},
	{service.ErrEmailAlreadyRegistered, http.StatusBadRequest, "email already registered"},
	{service.ErrEnterpriseEmail, http.StatusBadRequest, "enterprise accounts sign in with single sign-on"},
	{service.ErrInvalidVerificationToken, http.StatusBadRequest, "invalid or expired verification link"},
	{sso.ErrDuplicateIdentity, http.StatusBadRequest, "email is bound to a different identity"},
	{sso.ErrMissingClaim, http.StatusBadRequest, "required claim missing from assertion"},
	{service.ErrInvalidCredential, http.StatusUnauthorized, "invalid credentials"},
	{sso.ErrInvalidAssertion, http.StatusUnauthorized, "invalid assertion"},
	{sso.ErrUnknownRequest, http.StatusUnauthorized, "unknown or expired sign-in request"},
	{service.ErrAccountNotApproved, http.StatusForbidden, "account not approved"},
	{service.ErrMFAEnrollmentRequired, http.StatusForbidden, "authenticator enrollment required"},
	{service.ErrAccountNotFound, http.StatusNotFound, "account not found"},
	{service.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "service temporarily unavailable"},
}

// RespondWithMappedError resolves err against cases or falls back to a 500.
// Unmapped errors are logged; their text never reaches the client.
func RespondWithMappedError(c *gin.Context, log *zap.Logger, err error, cases []ErrorCase) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, middleware.NewErrorResponse(c, cs.Message))
			return
		}
	}
	logger.FromContext(c.Request.Context(), log).Error("request failed",
		zap.String("route", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, middleware.NewErrorResponse(c, "internal server error"))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, middleware.NewErrorResponse(c, msg))
}
