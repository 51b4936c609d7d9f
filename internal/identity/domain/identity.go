package domain

import "context"

// Class decides which login path an email takes.
type Class string

const (
	// ClassConsultant authenticates through the enterprise identity provider (SAML).
	ClassConsultant Class = "consultant"
	// ClassCustomer authenticates with an email OTP plus an authenticator code.
	ClassCustomer Class = "customer"
)

// Valid reports whether c is a known class.
func (c Class) Valid() bool {
	return c == ClassConsultant || c == ClassCustomer
}

// Classifier maps a normalized email to its identity class.
type Classifier interface {
	Classify(ctx context.Context, email string) (Class, error)
}
