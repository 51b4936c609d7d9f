package identity

import (
	"context"
	"testing"

	"portal-auth/backend/internal/identity/domain"
)

func TestNormalizeEmail(t *testing.T) {
	testCases := []struct {
		in   string
		want string
		err  bool
	}{
		{"  Alice@Customer.Example ", "alice@customer.example", false},
		{"bob+tag@sub.customer.example", "bob+tag@sub.customer.example", false},
		{"", "", true},
		{"no-at-sign", "", true},
		{"a@b", "", true},
		{"two@@customer.example", "", true},
	}
	for _, tc := range testCases {
		got, err := NormalizeEmail(tc.in)
		if tc.err {
			if err != ErrInvalidEmail {
				t.Errorf("NormalizeEmail(%q): err = %v, want ErrInvalidEmail", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("NormalizeEmail(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestDomainClassifier(t *testing.T) {
	c := NewDomainClassifier([]string{"Enterprise.example", "@corp.example", " "})
	ctx := context.Background()

	testCases := []struct {
		email string
		want  domain.Class
	}{
		{"jane@enterprise.example", domain.ClassConsultant},
		{"john@corp.example", domain.ClassConsultant},
		{"jane@customer.example", domain.ClassCustomer},
		{"jane@sub.enterprise.example", domain.ClassCustomer},
		{"jane@notenterprise.example", domain.ClassCustomer},
	}
	for _, tc := range testCases {
		got, err := c.Classify(ctx, tc.email)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.email, err)
		}
		if got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestDomainClassifier_Empty(t *testing.T) {
	c := NewDomainClassifier(nil)
	got, _ := c.Classify(context.Background(), "jane@enterprise.example")
	if got != domain.ClassCustomer {
		t.Errorf("Classify with no domains = %q, want customer", got)
	}
}
