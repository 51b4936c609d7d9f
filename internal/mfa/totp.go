package mfa

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// TOTPPeriod is the RFC 6238 time step.
	TOTPPeriod = 30
	// TOTPSkew is the number of steps accepted on either side of the current one.
	TOTPSkew = 1
	// TOTPSecretSize is the raw secret length in bytes (160 bits).
	TOTPSecretSize = 20

	qrSize = 256
)

// Secret is a freshly generated authenticator secret.
type Secret struct {
	// Base32 is the shared secret as shown to authenticator apps.
	Base32 string
	// ProvisioningURI is the otpauth:// URI encoded in the QR code.
	ProvisioningURI string
	// QRCodePNG is the base64-encoded PNG rendering of ProvisioningURI.
	QRCodePNG string
}

// Authenticator generates and validates TOTP secrets.
type Authenticator struct {
	issuer string
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator labelling secrets with issuer.
func NewAuthenticator(issuer string) *Authenticator {
	if issuer == "" {
		issuer = "Portal"
	}
	return &Authenticator{issuer: issuer, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}

// NewSecret generates a secret for account and renders its provisioning QR code.
func (a *Authenticator) NewSecret(account string) (*Secret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      a.issuer,
		AccountName: account,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("mfa: generate totp key: %w", err)
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return nil, fmt.Errorf("mfa: render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("mfa: encode qr: %w", err)
	}
	return &Secret{
		Base32:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCodePNG:       base64.StdEncoding.EncodeToString(buf.Bytes()),
	}, nil
}

// MatchStep reports whether code is valid for secret within the skew window
// and returns the time step it matched. Steps are counted from the Unix epoch.
func (a *Authenticator) MatchStep(secret, code string) (int64, bool) {
	if secret == "" || len(code) != int(otp.DigitsSix) {
		return 0, false
	}
	now := a.now()
	opts := totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
	for offset := -TOTPSkew; offset <= TOTPSkew; offset++ {
		t := now.Add(time.Duration(offset*TOTPPeriod) * time.Second)
		want, err := totp.GenerateCodeCustom(secret, t, opts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(want), []byte(code)) == 1 {
			return t.Unix() / TOTPPeriod, true
		}
	}
	return 0, false
}
