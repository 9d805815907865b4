package match

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "lifebank/pkg/domain"
	"lifebank/pkg/platform/sentinel"
)

const (
	matchKeyPrefix  = "match:"
	pendingExpiryZ  = "matches:pending_expiry"
	redisTimeLayout = time.RFC3339Nano
)

// transitionScript is the compare-and-set: the pending check and the status
// write run inside one Redis script, so concurrent confirmations and the
// confirm/expire race both resolve to exactly one winner.
//
// KEYS[1] match hash, KEYS[2] pending-expiry index
// ARGV[1] target status, ARGV[2] updated_at, ARGV[3] token
// Returns "ok", "not_found", or the current terminal status.
var transitionScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
	return 'not_found'
end
if status ~= 'pending' then
	return status
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
return 'ok'
`)

// RedisStore persists matches as hashes keyed by token, with a sorted set
// indexing pending matches by expiry for the sweeper. Keys carry no TTL:
// matches are kept indefinitely as audit records.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func matchKey(token string) string { return matchKeyPrefix + token }

func (s *RedisStore) Create(ctx context.Context, m *DonationMatch) error {
	requestID := ""
	if m.RequestID != nil {
		requestID = m.RequestID.String()
	}
	key := matchKey(m.Token)

	created, err := s.client.HSetNX(ctx, key, "status", string(m.Status)).Result()
	if err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	if !created {
		return fmt.Errorf("match token already exists: %w", sentinel.ErrConflict)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"id", m.ID.String(),
		"token", m.Token,
		"donor_id", m.DonorID.String(),
		"request_id", requestID,
		"created_at", m.CreatedAt.Format(redisTimeLayout),
		"expires_at", m.ExpiresAt.Format(redisTimeLayout),
		"updated_at", m.UpdatedAt.Format(redisTimeLayout),
	)
	pipe.ZAdd(ctx, pendingExpiryZ, redis.Z{Score: float64(m.ExpiresAt.UnixMilli()), Member: m.Token})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("create match: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByToken(ctx context.Context, token string) (*DonationMatch, error) {
	fields, err := s.client.HGetAll(ctx, matchKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("get match: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("match: %w", sentinel.ErrNotFound)
	}
	return matchFromFields(fields)
}

func (s *RedisStore) Confirm(ctx context.Context, token string, at time.Time) error {
	return s.transition(ctx, token, MatchConfirmed, at)
}

func (s *RedisStore) Expire(ctx context.Context, token string, at time.Time) error {
	return s.transition(ctx, token, MatchExpired, at)
}

func (s *RedisStore) transition(ctx context.Context, token string, to MatchStatus, at time.Time) error {
	res, err := transitionScript.Run(ctx, s.client,
		[]string{matchKey(token), pendingExpiryZ},
		string(to), at.Format(redisTimeLayout), token,
	).Text()
	if err != nil {
		return fmt.Errorf("transition match: %w", err)
	}
	switch res {
	case "ok":
		return nil
	case "not_found":
		return fmt.Errorf("match: %w", sentinel.ErrNotFound)
	default:
		return fmt.Errorf("match is %s: %w", res, sentinel.ErrConflict)
	}
}

func (s *RedisStore) ListExpiring(ctx context.Context, before time.Time) ([]string, error) {
	tokens, err := s.client.ZRangeByScore(ctx, pendingExpiryZ, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", before.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expiring matches: %w", err)
	}
	return tokens, nil
}

func matchFromFields(fields map[string]string) (*DonationMatch, error) {
	matchID, err := id.ParseMatchID(fields["id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt match id %q: %w", fields["id"], err)
	}
	donorID, err := id.ParseDonorID(fields["donor_id"])
	if err != nil {
		return nil, fmt.Errorf("corrupt donor id %q: %w", fields["donor_id"], err)
	}
	m := &DonationMatch{
		ID:      matchID,
		Token:   fields["token"],
		DonorID: donorID,
		Status:  MatchStatus(fields["status"]),
	}
	if raw := fields["request_id"]; raw != "" {
		requestID, err := id.ParseRequestID(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt request id %q: %w", raw, err)
		}
		m.RequestID = &requestID
	}
	for field, dst := range map[string]*time.Time{
		"created_at": &m.CreatedAt,
		"expires_at": &m.ExpiresAt,
		"updated_at": &m.UpdatedAt,
	} {
		t, err := time.Parse(redisTimeLayout, fields[field])
		if err != nil {
			return nil, fmt.Errorf("corrupt match %s %q: %w", field, fields[field], err)
		}
		*dst = t
	}
	return m, nil
}
