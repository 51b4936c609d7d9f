package mfa

import (
	"context"
	"errors"
	"fmt"
)

// State is the authenticator enrollment state of an account.
type State int

const (
	NotEnrolled State = iota
	SecretIssuedUnconfirmed
	Enrolled
)

func (s State) String() string {
	switch s {
	case NotEnrolled:
		return "not_enrolled"
	case SecretIssuedUnconfirmed:
		return "secret_issued_unconfirmed"
	case Enrolled:
		return "enrolled"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyEnrolled    = errors.New("authenticator already enrolled")
	ErrNoPendingSecret    = errors.New("no authenticator secret issued")
	ErrInvalidCode        = errors.New("invalid authenticator code")
	ErrEnrollmentConflict = errors.New("enrollment changed concurrently")
)

// EnrollmentRecord is the enrollment-relevant part of an account.
type EnrollmentRecord struct {
	Enabled bool
	// SealedSecret is the stored secret as persisted (sealed); empty when none was issued.
	SealedSecret string
}

// EnrollmentRepository persists enrollment state. The Set and Enable methods are
// conditional updates that report whether a row changed.
type EnrollmentRepository interface {
	GetEnrollment(ctx context.Context, email string) (*EnrollmentRecord, error)
	// SetPendingSecret stores sealed only while MFA is not enabled.
	SetPendingSecret(ctx context.Context, email, sealed string) (bool, error)
	// EnableMFA sets the enabled flag only while MFA is not enabled and the stored secret equals sealed.
	EnableMFA(ctx context.Context, email, sealed string) (bool, error)
}

// SecretSealer encrypts secrets at rest.
type SecretSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

// Enroller drives authenticator enrollment: NotEnrolled -> SecretIssuedUnconfirmed -> Enrolled.
type Enroller struct {
	repo   EnrollmentRepository
	auth   *Authenticator
	sealer SecretSealer
}

// NewEnroller returns an Enroller.
func NewEnroller(repo EnrollmentRepository, auth *Authenticator, sealer SecretSealer) *Enroller {
	return &Enroller{repo: repo, auth: auth, sealer: sealer}
}

// StateOf derives the state from a record.
func StateOf(rec *EnrollmentRecord) State {
	switch {
	case rec == nil:
		return NotEnrolled
	case rec.Enabled:
		return Enrolled
	case rec.SealedSecret != "":
		return SecretIssuedUnconfirmed
	default:
		return NotEnrolled
	}
}

// IssueSecret generates a secret and stores it unconfirmed. Re-issuing while
// unconfirmed replaces the previous secret.
func (e *Enroller) IssueSecret(ctx context.Context, email string) (*Secret, error) {
	rec, err := e.repo.GetEnrollment(ctx, email)
	if err != nil {
		return nil, err
	}
	if StateOf(rec) == Enrolled {
		return nil, ErrAlreadyEnrolled
	}
	secret, err := e.auth.NewSecret(email)
	if err != nil {
		return nil, err
	}
	sealed, err := e.sealer.Seal(secret.Base32)
	if err != nil {
		return nil, fmt.Errorf("seal totp secret: %w", err)
	}
	ok, err := e.repo.SetPendingSecret(ctx, email, sealed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyEnrolled
	}
	return secret, nil
}

// Confirm validates code against the issued secret and marks the account enrolled.
// It returns the matched time step. An already enrolled account with a valid
// code is confirmed again without change. A wrong code leaves the secret in place.
func (e *Enroller) Confirm(ctx context.Context, email, code string) (int64, error) {
	rec, err := e.repo.GetEnrollment(ctx, email)
	if err != nil {
		return 0, err
	}
	state := StateOf(rec)
	if state == NotEnrolled {
		return 0, ErrNoPendingSecret
	}
	step, err := e.match(rec.SealedSecret, code)
	if err != nil {
		return 0, err
	}
	if state == Enrolled {
		return step, nil
	}
	ok, err := e.repo.EnableMFA(ctx, email, rec.SealedSecret)
	if err != nil {
		return 0, err
	}
	if !ok {
		// Another request enabled MFA or replaced the secret first.
		return 0, ErrEnrollmentConflict
	}
	return step, nil
}

// Check validates code for an enrolled account without changing any state.
func (e *Enroller) Check(ctx context.Context, email, code string) (int64, error) {
	rec, err := e.repo.GetEnrollment(ctx, email)
	if err != nil {
		return 0, err
	}
	if StateOf(rec) != Enrolled {
		return 0, ErrNoPendingSecret
	}
	return e.match(rec.SealedSecret, code)
}

func (e *Enroller) match(sealed, code string) (int64, error) {
	secret, err := e.sealer.Open(sealed)
	if err != nil {
		return 0, fmt.Errorf("open totp secret: %w", err)
	}
	step, ok := e.auth.MatchStep(secret, code)
	if !ok {
		return 0, ErrInvalidCode
	}
	return step, nil
}
