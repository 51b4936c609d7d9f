// Package identity holds email normalization and the domain-list identity classifier.
package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"portal-auth/backend/internal/identity/domain"
)

// ErrInvalidEmail is returned for syntactically invalid email addresses.
var ErrInvalidEmail = errors.New("invalid email address")

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// NormalizeEmail trims and lowercases email and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || len(email) > 254 || !emailRegex.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// DomainOf returns the part after the last "@".
func DomainOf(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return email[i+1:]
}

// DomainClassifier treats emails whose domain is in the list as consultants.
// Subdomains do not match.
type DomainClassifier struct {
	domains map[string]struct{}
}

// NewDomainClassifier returns a classifier for the given enterprise domains.
func NewDomainClassifier(domains []string) *DomainClassifier {
	m := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		d = strings.TrimPrefix(strings.TrimSpace(strings.ToLower(d)), "@")
		if d != "" {
			m[d] = struct{}{}
		}
	}
	return &DomainClassifier{domains: m}
}

// Classify implements domain.Classifier.
func (c *DomainClassifier) Classify(_ context.Context, email string) (domain.Class, error) {
	if _, ok := c.domains[DomainOf(email)]; ok {
		return domain.ClassConsultant, nil
	}
	return domain.ClassCustomer, nil
}
