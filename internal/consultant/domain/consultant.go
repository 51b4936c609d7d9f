package domain

import (
	"errors"
	"time"
)

// Consultant is an enterprise user provisioned from SAML assertions.
type Consultant struct {
	ID string
	// ExternalID is the IdP's stable subject identifier (e.g. the Azure object id).
	ExternalID  string
	DisplayName string
	Mail        string
	MobilePhone string
	Role        Role
	CreatedAt   time.Time
}

type Role string

const (
	RoleConsultant Role = "CONSULTANT"
	RoleAdmin      Role = "ADMIN"
)

// Validate validates the consultant for persistence.
func (c *Consultant) Validate() error {
	if c.Mail == "" {
		return errors.New("mail is required")
	}
	if c.ExternalID == "" {
		return errors.New("external id is required")
	}
	if c.Role == "" {
		c.Role = RoleConsultant
	}
	if c.Role != RoleConsultant && c.Role != RoleAdmin {
		return errors.New("unknown consultant role")
	}
	if c.DisplayName == "" {
		c.DisplayName = c.Mail
	}
	return nil
}
