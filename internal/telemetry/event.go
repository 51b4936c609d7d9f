package telemetry

import "time"

// EventType names an auth event.
type EventType string

const (
	EventOTPIssued      EventType = "otp_issued"
	EventOTPVerified    EventType = "otp_verified"
	EventMFAEnrolled    EventType = "mfa_enrolled"
	EventLoginSuccess   EventType = "login_success"
	EventLoginFailure   EventType = "login_failure"
	EventSSOInitiated   EventType = "sso_initiated"
	EventSSOCompleted   EventType = "sso_completed"
	EventCustomerSignup EventType = "customer_signup"
)

// SourceAPI is the Source of events raised by the HTTP API.
const SourceAPI = "portal-auth"

// Event is one auth event. Subject is a masked email or an opaque id, never an OTP, TOTP code or secret.
type Event struct {
	Type          EventType         `json:"type"`
	Subject       string            `json:"subject,omitempty"`
	IdentityClass string            `json:"identityClass,omitempty"`
	RequestID     string            `json:"requestId,omitempty"`
	Source        string            `json:"source,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// NewEvent returns an Event stamped with the current UTC time and SourceAPI.
func NewEvent(t EventType, subject, class string) *Event {
	return &Event{
		Type:          t,
		Subject:       subject,
		IdentityClass: class,
		Source:        SourceAPI,
		CreatedAt:     time.Now().UTC(),
	}
}
