package credstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	red "github.com/redis/go-redis/v9"

	"portal-auth/backend/internal/mfa"
)

const defaultKeyPrefix = "portal-auth"

// compareAndDelete deletes KEYS[1] only if it still holds ARGV[1].
var compareAndDelete = red.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redeemOTPWithStep deletes the OTP at KEYS[1] and sets the step claim at KEYS[2]
// only if the stored hash equals ARGV[1] and the step is unclaimed.
// Returns 0 redeemed, 1 no match, 2 step already claimed.
var redeemOTPWithStep = red.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored or stored ~= ARGV[1] then
	return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 2
end
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], "1", "PX", ARGV[2])
return 0
`)

// RedisStore is a Store backed by Redis. Expiry is delegated to key TTLs.
type RedisStore struct {
	client *red.Client
	prefix string
	opts   Options
}

// NewRedisStore returns a store using client with keys under keyPrefix.
func NewRedisStore(client *red.Client, keyPrefix string, opts Options) *RedisStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

// IssueOTP stores the hash of a new code, overwriting any previous one.
func (s *RedisStore) IssueOTP(ctx context.Context, email string) (string, error) {
	code, err := s.opts.Generate()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.otpKey(email), mfa.HashOTP(code), s.opts.OTPTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: set otp: %w", ErrUnavailable, err)
	}
	return code, nil
}

// ValidateOTP compares code with the stored hash and deletes it on a match.
// The delete only succeeds if the hash was not replaced or consumed meanwhile.
func (s *RedisStore) ValidateOTP(ctx context.Context, email, code string) (bool, error) {
	key := s.otpKey(email)
	stored, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, red.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: get otp: %w", ErrUnavailable, err)
	}
	if !mfa.OTPEqual(code, stored) {
		return false, nil
	}
	n, err := compareAndDelete.Run(ctx, s.client, []string{key}, stored).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: consume otp: %w", ErrUnavailable, err)
	}
	return n == 1, nil
}

// RegisterPendingSSO stores email under a new request id.
func (s *RedisStore) RegisterPendingSSO(ctx context.Context, email string) (string, error) {
	id := newRequestID()
	if err := s.client.Set(ctx, s.ssoKey(id), email, s.opts.SSOTTL).Err(); err != nil {
		return "", fmt.Errorf("%w: set pending sso: %w", ErrUnavailable, err)
	}
	return id, nil
}

// ResolvePendingSSO atomically reads and deletes the pending request.
func (s *RedisStore) ResolvePendingSSO(ctx context.Context, requestID string) (string, error) {
	if requestID == "" {
		return "", ErrNotFound
	}
	email, err := s.client.GetDel(ctx, s.ssoKey(requestID)).Result()
	if errors.Is(err, red.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: resolve pending sso: %w", ErrUnavailable, err)
	}
	return email, nil
}

// ClaimTOTPStep uses SET NX so only the first caller wins.
func (s *RedisStore) ClaimTOTPStep(ctx context.Context, email string, step int64) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.stepKey(email, step), "1", stepClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("%w: claim totp step: %w", ErrUnavailable, err)
	}
	return ok, nil
}

// RedeemOTPWithStep runs the check and both writes in one script. The script
// compares SHA-256 hashes, never raw codes.
func (s *RedisStore) RedeemOTPWithStep(ctx context.Context, email, code string, step int64) (Redemption, error) {
	keys := []string{s.otpKey(email), s.stepKey(email, step)}
	n, err := redeemOTPWithStep.Run(ctx, s.client, keys, mfa.HashOTP(code), stepClaimTTL.Milliseconds()).Int()
	if err != nil {
		return RedeemInvalidOTP, fmt.Errorf("%w: redeem otp: %w", ErrUnavailable, err)
	}
	switch n {
	case 0:
		return Redeemed, nil
	case 2:
		return RedeemStepUsed, nil
	default:
		return RedeemInvalidOTP, nil
	}
}

// Ping checks connectivity. Used by the readiness check.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) otpKey(email string) string {
	return s.prefix + ":otp:" + email
}

func (s *RedisStore) ssoKey(id string) string {
	return s.prefix + ":sso:" + id
}

func (s *RedisStore) stepKey(email string, step int64) string {
	return s.prefix + ":totp:" + email + ":" + strconv.FormatInt(step, 10)
}
