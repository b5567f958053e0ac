package stores

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCodeNotFound    = errors.New("one-time code not found")
	ErrCodeMismatch    = errors.New("one-time code mismatch")
	ErrCodeExists      = errors.New("one-time code already issued")
	ErrCodeUnavailable = errors.New("one-time code backend unavailable")
)

// consumeCodeLua reads and deletes a code record in one step so a record can be
// checked at most once.
// KEYS[1] = record key
// Returns the stored hash or false when absent.
var consumeCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return false
end
redis.call('DEL', KEYS[1])
return data
`)

// OneTimeCodeStore keeps SHA-256 hashes of short single-use answers
// (captcha challenges, SMS login codes). Answers are compared case-insensitively.
type OneTimeCodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewOneTimeCodeStore creates a store whose keys live under prefix.
func NewOneTimeCodeStore(redisClient redis.UniversalClient, prefix string) *OneTimeCodeStore {
	if prefix == "" {
		prefix = "otc"
	}
	return &OneTimeCodeStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *OneTimeCodeStore) key(id string) string {
	return s.prefix + ":" + id
}

func hashAnswer(answer string) [32]byte {
	return sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(answer))))
}

// Issue stores answer under id. An existing record under the same id is never
// overwritten and yields [ErrCodeExists].
func (s *OneTimeCodeStore) Issue(ctx context.Context, id, answer string, ttl time.Duration) error {
	sum := hashAnswer(answer)
	ok, err := s.redis.SetNX(ctx, s.key(id), sum[:], ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	if !ok {
		return ErrCodeExists
	}
	return nil
}

// Replace stores answer under id, discarding any previous record. Used for
// per-recipient codes where a resend supersedes the earlier code.
func (s *OneTimeCodeStore) Replace(ctx context.Context, id, answer string, ttl time.Duration) error {
	sum := hashAnswer(answer)
	if err := s.redis.Set(ctx, s.key(id), sum[:], ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	return nil
}

// Consume removes the record for id and compares it with answer. The record is
// gone after the first call whatever the outcome.
func (s *OneTimeCodeStore) Consume(ctx context.Context, id, answer string) error {
	data, err := consumeCodeLua.Run(ctx, s.redis, []string{s.key(id)}).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCodeNotFound
		}
		return fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}

	provided := hashAnswer(answer)
	if subtle.ConstantTimeCompare([]byte(data), provided[:]) != 1 {
		return ErrCodeMismatch
	}
	return nil
}
