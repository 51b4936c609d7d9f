package sso

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/crewjam/saml"
	"github.com/crewjam/saml/samlsp"
)

// SAMLConfig configures the service provider.
type SAMLConfig struct {
	// EntityID defaults to the metadata URL.
	EntityID string
	// RootURL is the public base URL; ACS is RootURL/sso/acs/ and metadata RootURL/metadata/.
	RootURL         string
	IDPMetadataURL  string
	IDPMetadataFile string
	// Key and Certificate are optional. Key must be RSA when set.
	Key         crypto.Signer
	Certificate *x509.Certificate

	EmailAttribute   string
	NameAttribute    string
	PhoneAttribute   string
	SubjectAttribute string

	HTTPClient *http.Client
}

// SAMLProvider is an IdentityProvider backed by crewjam/saml.
type SAMLProvider struct {
	sp  *saml.ServiceProvider
	cfg SAMLConfig
}

// NewSAMLProvider loads IdP metadata (URL first, then file) and builds the service provider.
// Errors here are configuration errors and should stop startup.
func NewSAMLProvider(ctx context.Context, cfg SAMLConfig) (*SAMLProvider, error) {
	root, err := url.Parse(strings.TrimSuffix(cfg.RootURL, "/"))
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("saml: invalid root URL %q", cfg.RootURL)
	}
	idp, err := loadIDPMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}
	metadataURL := *root.JoinPath("metadata/")
	acsURL := *root.JoinPath("sso/acs/")
	sp := &saml.ServiceProvider{
		EntityID:          cfg.EntityID,
		MetadataURL:       metadataURL,
		AcsURL:            acsURL,
		IDPMetadata:       idp,
		AllowIDPInitiated: false,
	}
	if sp.EntityID == "" {
		sp.EntityID = metadataURL.String()
	}
	if cfg.Key != nil {
		rsaKey, ok := cfg.Key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("saml: SP key must be RSA")
		}
		sp.Key = rsaKey
		sp.Certificate = cfg.Certificate
	}
	if sp.GetSSOBindingLocation(saml.HTTPRedirectBinding) == "" {
		return nil, errors.New("saml: IdP metadata has no HTTP-Redirect SSO endpoint")
	}
	return &SAMLProvider{sp: sp, cfg: cfg}, nil
}

func loadIDPMetadata(ctx context.Context, cfg SAMLConfig) (*saml.EntityDescriptor, error) {
	switch {
	case cfg.IDPMetadataURL != "":
		u, err := url.Parse(cfg.IDPMetadataURL)
		if err != nil {
			return nil, fmt.Errorf("saml: invalid IdP metadata URL: %w", err)
		}
		client := cfg.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		md, err := samlsp.FetchMetadata(ctx, client, *u)
		if err != nil {
			return nil, fmt.Errorf("saml: fetch IdP metadata: %w", err)
		}
		return md, nil
	case cfg.IDPMetadataFile != "":
		b, err := os.ReadFile(cfg.IDPMetadataFile)
		if err != nil {
			return nil, fmt.Errorf("saml: read IdP metadata: %w", err)
		}
		md, err := samlsp.ParseMetadata(b)
		if err != nil {
			return nil, fmt.Errorf("saml: parse IdP metadata: %w", err)
		}
		return md, nil
	default:
		return nil, errors.New("saml: no IdP metadata configured")
	}
}

// AuthnRedirectURL implements IdentityProvider.
func (p *SAMLProvider) AuthnRedirectURL(_ context.Context, requestID string) (string, error) {
	req, err := p.sp.MakeAuthenticationRequest(
		p.sp.GetSSOBindingLocation(saml.HTTPRedirectBinding),
		saml.HTTPRedirectBinding,
		saml.HTTPPostBinding,
	)
	if err != nil {
		return "", fmt.Errorf("saml: build authn request: %w", err)
	}
	req.ID = requestID
	u, err := req.Redirect(requestID, p.sp)
	if err != nil {
		return "", fmt.Errorf("saml: encode authn request: %w", err)
	}
	return u.String(), nil
}

// VerifyResponse implements IdentityProvider.
func (p *SAMLProvider) VerifyResponse(ctx context.Context, samlResponse, requestID string) (*Claims, error) {
	if samlResponse == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidAssertion)
	}
	form := url.Values{"SAMLResponse": {samlResponse}, "RelayState": {requestID}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.sp.AcsURL.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if err := httpReq.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	assertion, err := p.sp.ParseResponse(httpReq, []string{requestID})
	if err != nil {
		var ire *saml.InvalidResponseError
		if errors.As(err, &ire) && ire.PrivateErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, ire.PrivateErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}
	return p.claims(assertion)
}

func (p *SAMLProvider) claims(a *saml.Assertion) (*Claims, error) {
	attrs := map[string]string{}
	for _, st := range a.AttributeStatements {
		for _, at := range st.Attributes {
			if len(at.Values) == 0 {
				continue
			}
			attrs[at.Name] = at.Values[0].Value
			if at.FriendlyName != "" {
				attrs[at.FriendlyName] = at.Values[0].Value
			}
		}
	}
	nameID := ""
	if a.Subject != nil && a.Subject.NameID != nil {
		nameID = a.Subject.NameID.Value
	}
	c := &Claims{
		Email:       attrs[p.cfg.EmailAttribute],
		DisplayName: attrs[p.cfg.NameAttribute],
		Phone:       attrs[p.cfg.PhoneAttribute],
		ExternalID:  attrs[p.cfg.SubjectAttribute],
	}
	if c.Email == "" && strings.Contains(nameID, "@") {
		c.Email = nameID
	}
	if c.ExternalID == "" {
		c.ExternalID = nameID
	}
	if c.Email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingClaim)
	}
	if c.ExternalID == "" {
		return nil, fmt.Errorf("%w: subject identifier", ErrMissingClaim)
	}
	return c, nil
}

// Metadata returns the SP metadata document.
func (p *SAMLProvider) Metadata() ([]byte, error) {
	b, err := xml.MarshalIndent(p.sp.Metadata(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), bytes.TrimSpace(b)...), nil
}
