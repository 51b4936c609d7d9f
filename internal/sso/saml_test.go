package sso

import (
	"bytes"
	"compress/flate"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crewjam/saml"
)

const testIDPMetadata = `<?xml version="1.0"?>
<EntityDescriptor xmlns="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://idp.example/metadata">
  <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://idp.example/sso"/>
  </IDPSSODescriptor>
</EntityDescriptor>`

func writeMetadata(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idp.xml")
	if err := os.WriteFile(path, []byte(testIDPMetadata), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestProvider(t *testing.T) *SAMLProvider {
	t.Helper()
	p, err := NewSAMLProvider(context.Background(), SAMLConfig{
		RootURL:          "https://portal.example",
		IDPMetadataFile:  writeMetadata(t),
		EmailAttribute:   "email",
		NameAttribute:    "name",
		PhoneAttribute:   "phone",
		SubjectAttribute: "oid",
	})
	if err != nil {
		t.Fatalf("NewSAMLProvider: %v", err)
	}
	return p
}

func TestSAMLProvider_AuthnRedirectURL(t *testing.T) {
	p := newTestProvider(t)
	raw, err := p.AuthnRedirectURL(context.Background(), "id-1234")
	if err != nil {
		t.Fatalf("AuthnRedirectURL: %v", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "idp.example" || u.Path != "/sso" {
		t.Errorf("redirect = %s", raw)
	}
	if got := u.Query().Get("RelayState"); got != "id-1234" {
		t.Errorf("RelayState = %q", got)
	}

	deflated, err := base64.StdEncoding.DecodeString(u.Query().Get("SAMLRequest"))
	if err != nil {
		t.Fatalf("decode SAMLRequest: %v", err)
	}
	inflated, err := io.ReadAll(flate.NewReader(bytes.NewReader(deflated)))
	if err != nil {
		t.Fatalf("inflate SAMLRequest: %v", err)
	}
	var req saml.AuthnRequest
	if err := xml.Unmarshal(inflated, &req); err != nil {
		t.Fatalf("unmarshal AuthnRequest: %v", err)
	}
	if req.ID != "id-1234" {
		t.Errorf("AuthnRequest ID = %q, want id-1234", req.ID)
	}
	if req.AssertionConsumerServiceURL != "https://portal.example/sso/acs/" {
		t.Errorf("ACS URL = %q", req.AssertionConsumerServiceURL)
	}
}

func TestSAMLProvider_VerifyResponseRejectsGarbage(t *testing.T) {
	p := newTestProvider(t)
	for _, resp := range []string{"", "not-base64!", base64.StdEncoding.EncodeToString([]byte("<Response/>"))} {
		if _, err := p.VerifyResponse(context.Background(), resp, "id-1234"); !errors.Is(err, ErrInvalidAssertion) {
			t.Errorf("VerifyResponse(%q): err = %v, want ErrInvalidAssertion", resp, err)
		}
	}
}

// signingIDP is an in-process identity provider with a throwaway key pair.
type signingIDP struct {
	idp      *saml.IdentityProvider
	provider *SAMLProvider
}

func newSigningIDP(t *testing.T) *signingIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example"},
		NotBefore:    now.Add(-time.Hour),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	idp := &saml.IdentityProvider{
		Key:             key,
		Certificate:     cert,
		MetadataURL:     url.URL{Scheme: "https", Host: "idp.example", Path: "/metadata"},
		SSOURL:          url.URL{Scheme: "https", Host: "idp.example", Path: "/sso"},
		SignatureMethod: "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256",
	}
	md, err := xml.Marshal(idp.Metadata())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "idp.xml")
	if err := os.WriteFile(path, md, 0o600); err != nil {
		t.Fatal(err)
	}
	p, err := NewSAMLProvider(context.Background(), SAMLConfig{
		RootURL:          "https://portal.example",
		IDPMetadataFile:  path,
		EmailAttribute:   "email",
		NameAttribute:    "name",
		SubjectAttribute: "oid",
	})
	if err != nil {
		t.Fatalf("NewSAMLProvider: %v", err)
	}
	return &signingIDP{idp: idp, provider: p}
}

// response returns a signed, base64 encoded SAMLResponse answering requestID.
func (s *signingIDP) response(t *testing.T, requestID string) string {
	t.Helper()
	spMD := s.provider.sp.Metadata()
	spSSO := &spMD.SPSSODescriptors[0]
	now := saml.TimeNow()
	req := &saml.IdpAuthnRequest{
		IDP:         s.idp,
		HTTPRequest: httptest.NewRequest(http.MethodPost, "https://idp.example/sso", nil),
		RelayState:  requestID,
		Request: saml.AuthnRequest{
			ID:           requestID,
			IssueInstant: now,
			Version:      "2.0",
		},
		ServiceProviderMetadata: spMD,
		SPSSODescriptor:         spSSO,
		ACSEndpoint:             &spSSO.AssertionConsumerServices[0],
		Now:                     now,
	}
	session := &saml.Session{
		CreateTime: now,
		Index:      "1",
		NameID:     "name-id-1",
		CustomAttributes: []saml.Attribute{
			{Name: "email", Values: []saml.AttributeValue{{Type: "xs:string", Value: "jane@enterprise.example"}}},
			{Name: "name", Values: []saml.AttributeValue{{Type: "xs:string", Value: "Jane Doe"}}},
			{Name: "oid", Values: []saml.AttributeValue{{Type: "xs:string", Value: "oid-1"}}},
		},
	}
	if err := (saml.DefaultAssertionMaker{}).MakeAssertion(req, session); err != nil {
		t.Fatalf("MakeAssertion: %v", err)
	}
	form, err := req.PostBinding()
	if err != nil {
		t.Fatalf("PostBinding: %v", err)
	}
	return form.SAMLResponse
}

func TestSAMLProvider_VerifyResponseSigned(t *testing.T) {
	s := newSigningIDP(t)
	c, err := s.provider.VerifyResponse(context.Background(), s.response(t, "id-1234"), "id-1234")
	if err != nil {
		t.Fatalf("VerifyResponse: %v", err)
	}
	want := Claims{Email: "jane@enterprise.example", DisplayName: "Jane Doe", ExternalID: "oid-1"}
	if *c != want {
		t.Errorf("claims = %+v, want %+v", *c, want)
	}
}

func TestSAMLProvider_VerifyResponseWrongRequestID(t *testing.T) {
	s := newSigningIDP(t)
	resp := s.response(t, "id-other")
	if _, err := s.provider.VerifyResponse(context.Background(), resp, "id-1234"); !errors.Is(err, ErrInvalidAssertion) {
		t.Errorf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestSAMLProvider_VerifyResponseTamperedSignature(t *testing.T) {
	s := newSigningIDP(t)
	raw, err := base64.StdEncoding.DecodeString(s.response(t, "id-1234"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(raw, []byte("jane@enterprise.example")) {
		t.Fatal("signed response does not carry the email attribute")
	}
	tampered := bytes.ReplaceAll(raw, []byte("jane@enterprise.example"), []byte("mallory@enterprise.example"))
	_, err = s.provider.VerifyResponse(context.Background(), base64.StdEncoding.EncodeToString(tampered), "id-1234")
	if !errors.Is(err, ErrInvalidAssertion) {
		t.Errorf("err = %v, want ErrInvalidAssertion", err)
	}
}

func TestSAMLProvider_Claims(t *testing.T) {
	p := newTestProvider(t)
	a := &saml.Assertion{
		Subject: &saml.Subject{NameID: &saml.NameID{Value: "name-id-1"}},
		AttributeStatements: []saml.AttributeStatement{{
			Attributes: []saml.Attribute{
				{Name: "email", Values: []saml.AttributeValue{{Value: "jane@enterprise.example"}}},
				{Name: "name", Values: []saml.AttributeValue{{Value: "Jane Doe"}}},
				{Name: "phone", Values: []saml.AttributeValue{{Value: "+100"}}},
				{Name: "oid", Values: []saml.AttributeValue{{Value: "oid-1"}}},
			},
		}},
	}
	c, err := p.claims(a)
	if err != nil {
		t.Fatalf("claims: %v", err)
	}
	want := Claims{Email: "jane@enterprise.example", DisplayName: "Jane Doe", Phone: "+100", ExternalID: "oid-1"}
	if *c != want {
		t.Errorf("claims = %+v, want %+v", *c, want)
	}

	// The subject falls back to NameID; a missing email is an error.
	a.AttributeStatements[0].Attributes = a.AttributeStatements[0].Attributes[:1]
	c, err = p.claims(a)
	if err != nil || c.ExternalID != "name-id-1" {
		t.Errorf("fallback claims = %+v, %v", c, err)
	}
	a.AttributeStatements = nil
	if _, err := p.claims(a); !errors.Is(err, ErrMissingClaim) {
		t.Errorf("claims without email: err = %v, want ErrMissingClaim", err)
	}
}

func TestSAMLProvider_Metadata(t *testing.T) {
	p := newTestProvider(t)
	md, err := p.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	s := string(md)
	if !strings.HasPrefix(s, "<?xml") {
		t.Error("metadata should start with an XML header")
	}
	for _, want := range []string{`entityID="https://portal.example/metadata/"`, `https://portal.example/sso/acs/`} {
		if !strings.Contains(s, want) {
			t.Errorf("metadata missing %s", want)
		}
	}
}

func TestNewSAMLProvider_MetadataURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/samlmetadata+xml")
		_, _ = w.Write([]byte(testIDPMetadata))
	}))
	defer srv.Close()

	p, err := NewSAMLProvider(context.Background(), SAMLConfig{
		RootURL:        "https://portal.example/",
		EntityID:       "urn:portal",
		IDPMetadataURL: srv.URL,
		HTTPClient:     srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewSAMLProvider: %v", err)
	}
	md, _ := p.Metadata()
	if !strings.Contains(string(md), `entityID="urn:portal"`) {
		t.Error("EntityID override not applied")
	}
}

func TestNewSAMLProvider_ConfigErrors(t *testing.T) {
	ctx := context.Background()
	testCases := []struct {
		name string
		cfg  SAMLConfig
	}{
		{"no metadata", SAMLConfig{RootURL: "https://portal.example"}},
		{"bad root", SAMLConfig{RootURL: "portal", IDPMetadataFile: writeMetadata(t)}},
		{"missing file", SAMLConfig{RootURL: "https://portal.example", IDPMetadataFile: "/nonexistent/idp.xml"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSAMLProvider(ctx, tc.cfg); err == nil {
				t.Fatal("NewSAMLProvider should fail")
			}
		})
	}
}
