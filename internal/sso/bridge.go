// Package sso bridges consultant logins to the enterprise SAML identity provider.
package sso

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"portal-auth/backend/internal/consultant/domain"
	"portal-auth/backend/internal/consultant/repository"
	"portal-auth/backend/internal/credstore"
)

var (
	ErrInvalidAssertion  = errors.New("invalid SAML assertion")
	ErrMissingClaim      = errors.New("required claim missing from SAML assertion")
	ErrDuplicateIdentity = errors.New("email is bound to a different identity")
	ErrUnknownRequest    = errors.New("unknown or expired SSO request")
)

// Claims is the identity data extracted from a verified assertion.
type Claims struct {
	Email       string
	DisplayName string
	Phone       string
	ExternalID  string
}

// IdentityProvider builds authentication requests and verifies responses.
type IdentityProvider interface {
	// AuthnRedirectURL returns the IdP URL for a request whose ID and RelayState are requestID.
	AuthnRedirectURL(ctx context.Context, requestID string) (string, error)
	// VerifyResponse checks the base64 SAMLResponse (signature, conditions, InResponseTo=requestID)
	// and returns its claims. Failures wrap ErrInvalidAssertion or ErrMissingClaim.
	VerifyResponse(ctx context.Context, samlResponse, requestID string) (*Claims, error)
}

// Result is the outcome of a completed SSO login.
type Result struct {
	Consultant *domain.Consultant
	// Created is true when the consultant was provisioned by this login.
	Created bool
}

// Bridge correlates SSO attempts with IdP responses and provisions consultants.
type Bridge struct {
	store       credstore.Store
	idp         IdentityProvider
	consultants repository.Repository
	now         func() time.Time
}

// NewBridge returns a Bridge.
func NewBridge(store credstore.Store, idp IdentityProvider, consultants repository.Repository) *Bridge {
	return &Bridge{store: store, idp: idp, consultants: consultants, now: time.Now}
}

// Initiate records a pending request for email and returns the IdP redirect URL.
func (b *Bridge) Initiate(ctx context.Context, email string) (string, error) {
	id, err := b.store.RegisterPendingSSO(ctx, email)
	if err != nil {
		return "", err
	}
	u, err := b.idp.AuthnRedirectURL(ctx, id)
	if err != nil {
		// Drop the pending entry; nobody can complete it.
		_, _ = b.store.ResolvePendingSSO(ctx, id)
		return "", err
	}
	return u, nil
}

// Complete verifies the response against the pending request named by relayState,
// consumes that request and returns the consultant, provisioning one on first login.
// A response that fails verification leaves the pending request in place.
func (b *Bridge) Complete(ctx context.Context, relayState, samlResponse string) (*Result, error) {
	if relayState == "" {
		return nil, ErrUnknownRequest
	}
	claims, err := b.idp.VerifyResponse(ctx, samlResponse, relayState)
	if err != nil {
		if errors.Is(err, ErrMissingClaim) || errors.Is(err, ErrInvalidAssertion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	if claims.Email == "" || claims.ExternalID == "" {
		return nil, ErrMissingClaim
	}
	email, err := b.store.ResolvePendingSSO(ctx, relayState)
	if errors.Is(err, credstore.ErrNotFound) {
		return nil, ErrUnknownRequest
	}
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(claims.Email), email) {
		return nil, fmt.Errorf("%w: asserted email does not match the requested login", ErrInvalidAssertion)
	}
	return b.provision(ctx, email, claims)
}

func (b *Bridge) provision(ctx context.Context, email string, claims *Claims) (*Result, error) {
	existing, err := b.consultants.GetByMail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.ExternalID != claims.ExternalID {
			return nil, ErrDuplicateIdentity
		}
		return &Result{Consultant: existing}, nil
	}
	bound, err := b.consultants.GetByExternalID(ctx, claims.ExternalID)
	if err != nil {
		return nil, err
	}
	if bound != nil {
		return nil, ErrDuplicateIdentity
	}
	c := &domain.Consultant{
		ID:          uuid.New().String(),
		ExternalID:  claims.ExternalID,
		DisplayName: claims.DisplayName,
		Mail:        email,
		MobilePhone: claims.Phone,
		Role:        domain.RoleConsultant,
		CreatedAt:   b.now().UTC(),
	}
	if err := b.consultants.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent login provisioned the same consultant.
			again, getErr := b.consultants.GetByMail(ctx, email)
			if getErr == nil && again != nil && again.ExternalID == claims.ExternalID {
				return &Result{Consultant: again}, nil
			}
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return &Result{Consultant: c, Created: true}, nil
}
