package sso

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"portal-auth/backend/internal/consultant/domain"
	"portal-auth/backend/internal/consultant/repository"
	"portal-auth/backend/internal/credstore"
)

// fakeIDP answers VerifyResponse from a table keyed by SAMLResponse.
type fakeIDP struct {
	mu        sync.Mutex
	responses map[string]*Claims
	verified  []string
	failURL   error
}

func (f *fakeIDP) AuthnRedirectURL(_ context.Context, requestID string) (string, error) {
	if f.failURL != nil {
		return "", f.failURL
	}
	return "https://idp.example/sso?RelayState=" + requestID, nil
}

func (f *fakeIDP) VerifyResponse(_ context.Context, samlResponse, requestID string) (*Claims, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, requestID)
	c, ok := f.responses[samlResponse]
	if !ok {
		return nil, errors.New("signature mismatch")
	}
	return c, nil
}

func newTestBridge(t *testing.T) (*Bridge, *fakeIDP, *repository.MemoryRepository, credstore.Store) {
	t.Helper()
	idp := &fakeIDP{responses: map[string]*Claims{
		"jane-ok":      {Email: "jane@enterprise.example", DisplayName: "Jane", ExternalID: "oid-jane"},
		"jane-other":   {Email: "jane@enterprise.example", DisplayName: "Jane", ExternalID: "oid-imposter"},
		"mallory":      {Email: "mallory@enterprise.example", ExternalID: "oid-mallory"},
		"no-subject":   {Email: "jane@enterprise.example"},
		"jane-shouted": {Email: "JANE@enterprise.example", ExternalID: "oid-jane"},
	}}
	store := credstore.NewMemoryStore(credstore.Options{})
	repo := repository.NewMemoryRepository()
	return NewBridge(store, idp, repo), idp, repo, store
}

func relayStateOf(t *testing.T, redirect string) string {
	t.Helper()
	var id string
	if _, err := fmt.Sscanf(redirect, "https://idp.example/sso?RelayState=%s", &id); err != nil {
		t.Fatalf("parse redirect %q: %v", redirect, err)
	}
	return id
}

func TestBridge_FirstLoginProvisions(t *testing.T) {
	ctx := context.Background()
	b, _, repo, _ := newTestBridge(t)

	redirect, err := b.Initiate(ctx, "jane@enterprise.example")
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	res, err := b.Complete(ctx, relayStateOf(t, redirect), "jane-ok")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.Created || res.Consultant.Mail != "jane@enterprise.example" || res.Consultant.Role != domain.RoleConsultant {
		t.Errorf("result = %+v", res)
	}
	stored, _ := repo.GetByMail(ctx, "jane@enterprise.example")
	if stored == nil || stored.ExternalID != "oid-jane" {
		t.Fatalf("stored = %+v", stored)
	}

	// Second login finds the same consultant.
	redirect, _ = b.Initiate(ctx, "jane@enterprise.example")
	res, err = b.Complete(ctx, relayStateOf(t, redirect), "jane-shouted")
	if err != nil {
		t.Fatalf("second Complete: %v", err)
	}
	if res.Created || res.Consultant.ID != stored.ID {
		t.Errorf("second result = %+v", res)
	}
}

func TestBridge_RequestIsSingleUse(t *testing.T) {
	ctx := context.Background()
	b, _, _, _ := newTestBridge(t)

	redirect, _ := b.Initiate(ctx, "jane@enterprise.example")
	id := relayStateOf(t, redirect)
	if _, err := b.Complete(ctx, id, "jane-ok"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := b.Complete(ctx, id, "jane-ok"); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("replayed Complete: err = %v, want ErrUnknownRequest", err)
	}
	if _, err := b.Complete(ctx, "", "jane-ok"); !errors.Is(err, ErrUnknownRequest) {
		t.Fatalf("empty RelayState: err = %v, want ErrUnknownRequest", err)
	}
}

func TestBridge_Rejections(t *testing.T) {
	testCases := []struct {
		name     string
		email    string
		response string
		want     error
	}{
		{"bad signature", "jane@enterprise.example", "forged", ErrInvalidAssertion},
		{"email mismatch", "jane@enterprise.example", "mallory", ErrInvalidAssertion},
		{"missing subject", "jane@enterprise.example", "no-subject", ErrMissingClaim},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			b, _, repo, _ := newTestBridge(t)
			redirect, _ := b.Initiate(ctx, tc.email)
			if _, err := b.Complete(ctx, relayStateOf(t, redirect), tc.response); !errors.Is(err, tc.want) {
				t.Fatalf("Complete: err = %v, want %v", err, tc.want)
			}
			if c, _ := repo.GetByMail(ctx, tc.email); c != nil {
				t.Error("no consultant should be provisioned")
			}
		})
	}
}

func TestBridge_RejectedResponseKeepsPendingRequest(t *testing.T) {
	ctx := context.Background()
	b, _, _, store := newTestBridge(t)

	redirect, _ := b.Initiate(ctx, "jane@enterprise.example")
	id := relayStateOf(t, redirect)
	if _, err := b.Complete(ctx, id, "forged"); !errors.Is(err, ErrInvalidAssertion) {
		t.Fatalf("forged Complete: err = %v, want ErrInvalidAssertion", err)
	}
	if _, pending, _ := store.(*credstore.MemoryStore).Len(); pending != 1 {
		t.Fatalf("pending = %d after a rejected response, want 1", pending)
	}
	res, err := b.Complete(ctx, id, "jane-ok")
	if err != nil {
		t.Fatalf("Complete after rejected response: %v", err)
	}
	if res.Consultant.Mail != "jane@enterprise.example" {
		t.Errorf("consultant = %+v", res.Consultant)
	}
}

func TestBridge_DuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	b, _, _, _ := newTestBridge(t)

	redirect, _ := b.Initiate(ctx, "jane@enterprise.example")
	if _, err := b.Complete(ctx, relayStateOf(t, redirect), "jane-ok"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	redirect, _ = b.Initiate(ctx, "jane@enterprise.example")
	if _, err := b.Complete(ctx, relayStateOf(t, redirect), "jane-other"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("Complete with other subject: err = %v, want ErrDuplicateIdentity", err)
	}
}

func TestBridge_InitiateFailureDropsPending(t *testing.T) {
	ctx := context.Background()
	b, idp, _, store := newTestBridge(t)
	idp.failURL = errors.New("idp down")

	if _, err := b.Initiate(ctx, "jane@enterprise.example"); err == nil {
		t.Fatal("Initiate should fail")
	}
	if _, pending, _ := store.(*credstore.MemoryStore).Len(); pending != 0 {
		t.Errorf("pending = %d, want 0", pending)
	}
}
