package mfa

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func TestAuthenticator_NewSecret(t *testing.T) {
	a := NewAuthenticator("Portal Test")
	s, err := a.NewSecret("alice@customer.example")
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	// 20 bytes encode to 32 base32 characters without padding.
	if len(s.Base32) != 32 {
		t.Errorf("secret length = %d, want 32", len(s.Base32))
	}
	if !strings.HasPrefix(s.ProvisioningURI, "otpauth://totp/") {
		t.Errorf("ProvisioningURI = %q", s.ProvisioningURI)
	}
	if !strings.Contains(s.ProvisioningURI, "secret="+s.Base32) {
		t.Error("ProvisioningURI should carry the secret")
	}
	raw, err := base64.StdEncoding.DecodeString(s.QRCodePNG)
	if err != nil {
		t.Fatalf("QR is not base64: %v", err)
	}
	if len(raw) < 8 || string(raw[1:4]) != "PNG" {
		t.Error("QR is not a PNG image")
	}

	other, err := a.NewSecret("alice@customer.example")
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	if other.Base32 == s.Base32 {
		t.Error("two secrets should differ")
	}
}

func TestAuthenticator_MatchStep(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	a := NewAuthenticator("")
	a.SetClock(func() time.Time { return now })
	s, err := a.NewSecret("bob@customer.example")
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	current := now.Unix() / TOTPPeriod

	testCases := []struct {
		name     string
		at       time.Time
		wantOK   bool
		wantStep int64
	}{
		{"current step", now, true, current},
		{"previous step", now.Add(-30 * time.Second), true, current - 1},
		{"next step", now.Add(30 * time.Second), true, current + 1},
		{"two steps old", now.Add(-60 * time.Second), false, 0},
		{"two steps ahead", now.Add(60 * time.Second), false, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			step, ok := a.MatchStep(s.Base32, codeAt(t, s.Base32, tc.at))
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && step != tc.wantStep {
				t.Errorf("step = %d, want %d", step, tc.wantStep)
			}
		})
	}
}

func TestAuthenticator_MatchStepRejectsMalformed(t *testing.T) {
	a := NewAuthenticator("")
	s, err := a.NewSecret("carol@customer.example")
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	for _, code := range []string{"", "12345", "1234567", "abcdef"} {
		if _, ok := a.MatchStep(s.Base32, code); ok {
			t.Errorf("MatchStep(%q) matched", code)
		}
	}
	if _, ok := a.MatchStep("", "123456"); ok {
		t.Error("MatchStep with empty secret matched")
	}
}
