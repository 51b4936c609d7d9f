package domain

import (
	"errors"
	"time"
)

// Customer is an external account that logs in with an email OTP and an authenticator app.
type Customer struct {
	ID          string
	Email       string
	Name        string
	Contact     string
	CompanyName string
	Address     string
	City        string
	State       string
	Country     string
	Status      Status
	// RejectionReason is set by an administrator when Status is REJECTED.
	RejectionReason string
	EmailVerified   bool
	// VerificationTokenHash is the SHA-256 of the signup verification token; the raw token is never stored.
	VerificationTokenHash   string
	VerificationTokenExpiry time.Time
	MFAEnabled              bool
	// MFASecret is the sealed TOTP secret; empty until one is issued.
	MFASecret string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Status string

const (
	StatusUnverified Status = "UNVERIFIED"
	StatusPending    Status = "PENDING"
	StatusActive     Status = "ACTIVE"
	StatusRejected   Status = "REJECTED"
	StatusApproved   Status = "APPROVED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusPending, StatusActive, StatusRejected, StatusApproved:
		return true
	}
	return false
}

// CanLogin reports whether the customer may request a login OTP.
func (c *Customer) CanLogin() bool {
	return c.Status == StatusApproved
}

// Validate validates the customer for persistence. Returns an error describing the first validation failure.
func (c *Customer) Validate() error {
	if c.Email == "" {
		return errors.New("email is required")
	}
	if c.Status == "" {
		c.Status = StatusUnverified
	}
	if !c.Status.Valid() {
		return errors.New("unknown customer status")
	}
	return nil
}

// Fields is a partial update. Nil fields are left unchanged.
type Fields struct {
	Status          *Status
	RejectionReason *string
	Name            *string
	Contact         *string
	CompanyName     *string
}

// Empty reports whether f changes nothing.
func (f Fields) Empty() bool {
	return f.Status == nil && f.RejectionReason == nil && f.Name == nil && f.Contact == nil && f.CompanyName == nil
}
