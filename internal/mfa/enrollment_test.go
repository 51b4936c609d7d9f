package mfa

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memEnrollmentRepo struct {
	mu   sync.Mutex
	recs map[string]*EnrollmentRecord
}

func newMemEnrollmentRepo(emails ...string) *memEnrollmentRepo {
	r := &memEnrollmentRepo{recs: make(map[string]*EnrollmentRecord)}
	for _, e := range emails {
		r.recs[e] = &EnrollmentRecord{}
	}
	return r
}

var errNoAccount = errors.New("no account")

func (r *memEnrollmentRepo) GetEnrollment(_ context.Context, email string) (*EnrollmentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[email]
	if !ok {
		return nil, errNoAccount
	}
	c := *rec
	return &c, nil
}

func (r *memEnrollmentRepo) SetPendingSecret(_ context.Context, email, sealed string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[email]
	if !ok || rec.Enabled {
		return false, nil
	}
	rec.SealedSecret = sealed
	return true, nil
}

func (r *memEnrollmentRepo) EnableMFA(_ context.Context, email, sealed string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[email]
	if !ok || rec.Enabled || rec.SealedSecret != sealed {
		return false, nil
	}
	rec.Enabled = true
	return true, nil
}

// prefixSealer is a reversible stand-in for the real sealer.
type prefixSealer struct{}

func (prefixSealer) Seal(p string) (string, error) { return "sealed:" + p, nil }
func (prefixSealer) Open(s string) (string, error) {
	if len(s) < 7 || s[:7] != "sealed:" {
		return "", errors.New("not sealed")
	}
	return s[7:], nil
}

func newTestEnroller(t *testing.T, now time.Time, emails ...string) (*Enroller, *memEnrollmentRepo) {
	t.Helper()
	repo := newMemEnrollmentRepo(emails...)
	a := NewAuthenticator("Portal")
	a.SetClock(func() time.Time { return now })
	return NewEnroller(repo, a, prefixSealer{}), repo
}

func stateIn(repo *memEnrollmentRepo, email string) (State, error) {
	rec, err := repo.GetEnrollment(context.Background(), email)
	if err != nil {
		return NotEnrolled, err
	}
	return StateOf(rec), nil
}

func TestEnroller_IssueAndConfirm(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	const email = "dana@customer.example"
	e, repo := newTestEnroller(t, now, email)

	if st, _ := stateIn(repo, email); st != NotEnrolled {
		t.Fatalf("initial state = %v", st)
	}
	if _, err := e.Confirm(ctx, email, "123456"); !errors.Is(err, ErrNoPendingSecret) {
		t.Fatalf("Confirm before issue: err = %v, want ErrNoPendingSecret", err)
	}

	s, err := e.IssueSecret(ctx, email)
	if err != nil {
		t.Fatalf("IssueSecret: %v", err)
	}
	if st, _ := stateIn(repo, email); st != SecretIssuedUnconfirmed {
		t.Fatalf("state after issue = %v", st)
	}
	if repo.recs[email].SealedSecret != "sealed:"+s.Base32 {
		t.Error("secret should be stored sealed")
	}

	// A wrong code leaves the secret in place and the flag unset.
	if _, err := e.Confirm(ctx, email, wrongCode(t, s.Base32, now)); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("Confirm wrong code: err = %v, want ErrInvalidCode", err)
	}
	if st, _ := stateIn(repo, email); st != SecretIssuedUnconfirmed {
		t.Fatalf("state after wrong code = %v", st)
	}

	step, err := e.Confirm(ctx, email, codeAt(t, s.Base32, now))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if step != now.Unix()/TOTPPeriod {
		t.Errorf("step = %d", step)
	}
	if st, _ := stateIn(repo, email); st != Enrolled {
		t.Fatalf("state after confirm = %v", st)
	}

	// Confirming again is a no-op success; issuing again is refused.
	if _, err := e.Confirm(ctx, email, codeAt(t, s.Base32, now)); err != nil {
		t.Errorf("second Confirm: %v", err)
	}
	if _, err := e.IssueSecret(ctx, email); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("IssueSecret when enrolled: err = %v", err)
	}
}

func TestEnroller_ReissueReplacesSecret(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	const email = "eve@customer.example"
	e, _ := newTestEnroller(t, now, email)

	first, err := e.IssueSecret(ctx, email)
	if err != nil {
		t.Fatalf("IssueSecret: %v", err)
	}
	second, err := e.IssueSecret(ctx, email)
	if err != nil {
		t.Fatalf("IssueSecret again: %v", err)
	}
	firstCode := codeAt(t, first.Base32, now)
	if firstCode != codeAt(t, second.Base32, now) {
		if _, err := e.Confirm(ctx, email, firstCode); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Confirm with replaced secret: err = %v, want ErrInvalidCode", err)
		}
	}
	if _, err := e.Confirm(ctx, email, codeAt(t, second.Base32, now)); err != nil {
		t.Fatalf("Confirm with current secret: %v", err)
	}
}

func TestEnroller_ConfirmConflict(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	const email = "finn@customer.example"
	e, repo := newTestEnroller(t, now, email)

	s, err := e.IssueSecret(ctx, email)
	if err != nil {
		t.Fatalf("IssueSecret: %v", err)
	}
	code := codeAt(t, s.Base32, now)

	// Simulate a concurrent re-issue between read and conditional update.
	conflicting := &racingRepo{memEnrollmentRepo: repo, onEnable: func() {
		repo.recs[email].SealedSecret = "sealed:OTHER"
	}}
	e2 := NewEnroller(conflicting, e.auth, prefixSealer{})
	if _, err := e2.Confirm(ctx, email, code); !errors.Is(err, ErrEnrollmentConflict) {
		t.Fatalf("Confirm: err = %v, want ErrEnrollmentConflict", err)
	}
	if repo.recs[email].Enabled {
		t.Error("MFA must not be enabled after a conflicting confirm")
	}
}

// wrongCode returns a six-digit code that is not valid anywhere in the skew window.
func wrongCode(t *testing.T, secret string, now time.Time) string {
	t.Helper()
	valid := map[string]bool{}
	for off := -TOTPSkew; off <= TOTPSkew; off++ {
		valid[codeAt(t, secret, now.Add(time.Duration(off*TOTPPeriod)*time.Second))] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no wrong code available")
	return ""
}

type racingRepo struct {
	*memEnrollmentRepo
	onEnable func()
}

func (r *racingRepo) EnableMFA(ctx context.Context, email, sealed string) (bool, error) {
	r.onEnable()
	return r.memEnrollmentRepo.EnableMFA(ctx, email, sealed)
}

func TestEnroller_Check(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	const email = "gail@customer.example"
	e, _ := newTestEnroller(t, now, email)

	s, err := e.IssueSecret(ctx, email)
	if err != nil {
		t.Fatalf("IssueSecret: %v", err)
	}
	if _, err := e.Check(ctx, email, codeAt(t, s.Base32, now)); !errors.Is(err, ErrNoPendingSecret) {
		t.Errorf("Check before enrollment: err = %v", err)
	}
	if _, err := e.Confirm(ctx, email, codeAt(t, s.Base32, now)); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if _, err := e.Check(ctx, email, codeAt(t, s.Base32, now.Add(30*time.Second))); err != nil {
		t.Errorf("Check: %v", err)
	}
	if _, err := e.Check(ctx, email, codeAt(t, s.Base32, now.Add(5*time.Minute))); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Check stale code: err = %v", err)
	}
}

func TestEnroller_UnknownAccount(t *testing.T) {
	e, _ := newTestEnroller(t, time.Now())
	if _, err := e.IssueSecret(context.Background(), "nobody@customer.example"); !errors.Is(err, errNoAccount) {
		t.Errorf("IssueSecret unknown: err = %v", err)
	}
}
