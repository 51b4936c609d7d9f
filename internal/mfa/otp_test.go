package mfa

import (
	"testing"
)

func TestGenerateOTP_ReturnsSixDigits(t *testing.T) {
	otp, err := GenerateOTP()
	if err != nil {
		t.Fatalf("GenerateOTP: %v", err)
	}
	if len(otp) != 6 {
		t.Errorf("OTP length = %d, want 6", len(otp))
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			t.Errorf("OTP contains non-digit: %c", c)
		}
	}
}

func TestNewOTPGenerator_Length(t *testing.T) {
	for _, n := range []int{4, 8, 10} {
		code, err := NewOTPGenerator(n)()
		if err != nil {
			t.Fatalf("generate %d: %v", n, err)
		}
		if len(code) != n {
			t.Errorf("len = %d, want %d", len(code), n)
		}
	}
	code, err := NewOTPGenerator(0)()
	if err != nil {
		t.Fatalf("generate default: %v", err)
	}
	if len(code) != DefaultOTPDigits {
		t.Errorf("default len = %d, want %d", len(code), DefaultOTPDigits)
	}
}

func TestGenerateOTP_Randomness(t *testing.T) {
	// Collisions across 100 draws from 10^8 codes are vanishingly unlikely.
	gen := NewOTPGenerator(8)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		otp, err := gen()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if seen[otp] {
			t.Errorf("duplicate OTP generated: %s", otp)
		}
		seen[otp] = true
	}
}

func TestHashOTP_Consistent(t *testing.T) {
	hash1 := HashOTP("123456")
	hash2 := HashOTP("123456")
	if hash1 != hash2 {
		t.Errorf("HashOTP not consistent: hash1 = %q, hash2 = %q", hash1, hash2)
	}
	if len(hash1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(hash1))
	}
	if HashOTP("654321") == hash1 {
		t.Error("HashOTP produced same hash for different inputs")
	}
}

func TestOTPEqual(t *testing.T) {
	stored := HashOTP("123456")

	if !OTPEqual("123456", stored) {
		t.Error("OTPEqual should match correct OTP")
	}
	if OTPEqual("654321", stored) {
		t.Error("OTPEqual should reject incorrect OTP")
	}
	if OTPEqual("123456", "a"+stored) {
		t.Error("OTPEqual should reject hash with different length")
	}
	if OTPEqual("", "") || OTPEqual("", stored) {
		t.Error("OTPEqual should not match empty inputs")
	}
}
