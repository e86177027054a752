package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/vestcore/vest/config"
	"github.com/vestcore/vest/internal/cache"
)

// Store keeps one-time codes in the shared TTL cache instead of
// process memory, so codes survive restarts and verification works
// from any instance.
type Store struct {
	cache cache.Cache
}

func NewStore(c cache.Cache) *Store {
	return &Store{cache: c}
}

func codeKey(purpose, ownerID string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, ownerID)
}

// Generate creates a fresh numeric code for (purpose, owner) and stores
// it under the configured TTL, replacing any previous code.
func (s *Store) Generate(ctx context.Context, purpose, ownerID string) (string, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return "", err
	}

	code, err := randomDigits(cfg.Otp.Length)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(cfg.Otp.TTLMinutes) * time.Minute
	if err := s.cache.Set(ctx, codeKey(purpose, ownerID), code, ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Verify checks a submitted code. A matching code is consumed so it
// cannot be replayed; expired or unknown codes simply fail.
func (s *Store) Verify(ctx context.Context, purpose, ownerID, submitted string) (bool, error) {
	var stored string
	if err := s.cache.Get(ctx, codeKey(purpose, ownerID), &stored); err != nil {
		return false, err
	}
	if stored == "" || stored != submitted {
		return false, nil
	}
	if err := s.cache.Delete(ctx, codeKey(purpose, ownerID)); err != nil {
		return false, err
	}
	return true, nil
}

// Invalidate discards any outstanding code for (purpose, owner).
func (s *Store) Invalidate(ctx context.Context, purpose, ownerID string) error {
	return s.cache.Delete(ctx, codeKey(purpose, ownerID))
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
