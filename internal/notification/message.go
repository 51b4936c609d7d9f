// Package notification delivers login and signup emails.
package notification

import (
	"context"
	"fmt"
	"time"
)

// Template names recorded in the delivery log.
const (
	TemplateOTP     = "otp_verification"
	TemplateWelcome = "welcome"
)

// Message is a rendered plain-text email.
type Message struct {
	Template string
	Subject  string
	Body     string
}

// Sender delivers a message to one recipient.
type Sender interface {
	Send(ctx context.Context, to string, m Message) error
}

// OTPMessage renders the one-time login code email.
func OTPMessage(code string, ttl time.Duration) Message {
	return Message{
		Template: TemplateOTP,
		Subject:  "Your login code",
		Body: fmt.Sprintf("Your one-time login code is %s.\n\nIt expires in %d minutes and can be used once. "+
			"If you did not try to sign in, you can ignore this email.", code, int(ttl.Round(time.Minute).Minutes())),
	}
}

// WelcomeMessage renders the signup email with its verification link.
func WelcomeMessage(name, verifyURL string, ttl time.Duration) Message {
	greeting := "Welcome"
	if name != "" {
		greeting = "Welcome, " + name
	}
	return Message{
		Template: TemplateWelcome,
		Subject:  "Verify your email address",
		Body: fmt.Sprintf("%s!\n\nPlease confirm your email address by opening the link below within %d hours:\n\n%s\n\n"+
			"Your account will be reviewed after verification.", greeting, int(ttl.Hours()), verifyURL),
	}
}
