package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Handshake status values as reported by [QRLoginStore.Poll].
const (
	QRStatusAbsent  = -1
	QRStatusPending = 0
	QRStatusSuccess = 2
)

var (
	ErrQRHandshakeExists   = errors.New("qr handshake already exists")
	ErrQRHandshakeExpired  = errors.New("qr handshake expired")
	ErrQRHandshakeConsumed = errors.New("qr handshake already confirmed")
	ErrQRBackend           = errors.New("qr handshake backend unavailable")
)

// createQRLua creates a pending handshake unless the key already exists.
// KEYS[1] = handshake key
// ARGV[1] = correlation state, ARGV[2] = device id, ARGV[3] = ttl ms
var createQRLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'state', ARGV[1], 'device', ARGV[2], 'status', 'pending')
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// pollQRLua reports the handshake status; a successful handshake is deleted
// in the same step, so its token is handed out exactly once.
// Returns {-1} absent, {0} pending, {2, token, uid} success.
var pollQRLua = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return {-1}
end
if status ~= 'success' then
  return {0}
end
local fields = redis.call('HMGET', KEYS[1], 'token', 'uid')
redis.call('DEL', KEYS[1])
return {2, fields[1] or '', fields[2] or ''}
`)

// confirmQRLua moves a pending handshake to success. HSET keeps the TTL.
// ARGV[1] = correlation state, ARGV[2] = token, ARGV[3] = user id
// Returns 1 on success, -1 absent or state mismatch, -2 not pending.
var confirmQRLua = redis.NewScript(`
local fields = redis.call('HMGET', KEYS[1], 'state', 'status')
if not fields[2] then
  return -1
end
if fields[1] ~= ARGV[1] then
  return -1
end
if fields[2] ~= 'pending' then
  return -2
end
redis.call('HSET', KEYS[1], 'status', 'success', 'token', ARGV[2], 'uid', ARGV[3])
return 1
`)

// QRPollResult is the outcome of one poll.
type QRPollResult struct {
	Status int
	Token  string
	UserID string
}

// QRLoginStore persists cross-device login handshakes as Redis hashes.
type QRLoginStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewQRLoginStore(redisClient redis.UniversalClient, prefix string) *QRLoginStore {
	if prefix == "" {
		prefix = "qrl"
	}
	return &QRLoginStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *QRLoginStore) key(id string) string {
	return s.prefix + ":" + id
}

// Create stores a pending handshake for id bound to state.
func (s *QRLoginStore) Create(ctx context.Context, id, state, deviceID string, ttl time.Duration) error {
	created, err := createQRLua.Run(ctx, s.redis, []string{s.key(id)}, state, deviceID, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQRBackend, err)
	}
	if created != 1 {
		return ErrQRHandshakeExists
	}
	return nil
}

// Poll returns the current status of id.
func (s *QRLoginStore) Poll(ctx context.Context, id string) (QRPollResult, error) {
	res, err := pollQRLua.Run(ctx, s.redis, []string{s.key(id)}).Slice()
	if err != nil {
		return QRPollResult{}, fmt.Errorf("%w: %v", ErrQRBackend, err)
	}
	if len(res) == 0 {
		return QRPollResult{}, fmt.Errorf("%w: empty script reply", ErrQRBackend)
	}

	status, ok := res[0].(int64)
	if !ok {
		return QRPollResult{}, fmt.Errorf("%w: unexpected script reply", ErrQRBackend)
	}
	out := QRPollResult{Status: int(status)}
	if out.Status == QRStatusSuccess && len(res) == 3 {
		out.Token, _ = res[1].(string)
		out.UserID, _ = res[2].(string)
	}
	return out, nil
}

// Confirm attaches token to a pending handshake whose correlation value equals
// state.
func (s *QRLoginStore) Confirm(ctx context.Context, id, state, token, userID string) error {
	res, err := confirmQRLua.Run(ctx, s.redis, []string{s.key(id)}, state, token, userID).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrQRBackend, err)
	}
	switch res {
	case 1:
		return nil
	case -2:
		return ErrQRHandshakeConsumed
	default:
		return ErrQRHandshakeExpired
	}
}
