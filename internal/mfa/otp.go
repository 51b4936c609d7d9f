package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// DefaultOTPDigits is the OTP length used when no length is configured.
const DefaultOTPDigits = 6

// OTPGenerator produces fixed-length numeric codes.
type OTPGenerator func() (string, error)

// NewOTPGenerator returns a generator of digits-long codes. Non-positive digits use DefaultOTPDigits.
func NewOTPGenerator(digits int) OTPGenerator {
	if digits <= 0 {
		digits = DefaultOTPDigits
	}
	return func() (string, error) {
		return generateDigits(digits)
	}
}

// GenerateOTP returns a 6-digit numeric OTP string (e.g. "123456").
// Uses crypto/rand for randomness.
func GenerateOTP() (string, error) {
	return generateDigits(DefaultOTPDigits)
}

// generateDigits draws bytes from crypto/rand and keeps those below 250 so every digit is equally likely.
func generateDigits(n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n+n/2+1)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("mfa: read random: %w", err)
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

// HashOTP returns a SHA-256 hash of the OTP string, hex-encoded.
func HashOTP(otp string) string {
	h := sha256.Sum256([]byte(otp))
	return hex.EncodeToString(h[:])
}

// OTPEqual performs constant-time comparison of the provided OTP's hash with the stored hash.
func OTPEqual(providedOTP, storedHash string) bool {
	if providedOTP == "" || storedHash == "" {
		return false
	}
	providedHash := HashOTP(providedOTP)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
