package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// RedisStore keeps one key per (showtime, session) plus a per-showtime
// index set.  Keys carry a Redis TTL as well, but reads always filter on
// ExpiresAt so a hold is never reported past its expiry.
//
// Layout:
//   hold:<showtime>:<session>  JSON encoded model.TemporaryHold
//   holds:<showtime>           SET of session ids
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a store using rdb.  prefix namespaces the keys and
// may be empty.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) holdKey(showtimeID uint64, sessionID string) string {
	return fmt.Sprintf("%shold:%d:%s", s.prefix, showtimeID, sessionID)
}

func (s *RedisStore) indexKey(showtimeID uint64) string {
	return fmt.Sprintf("%sholds:%d", s.prefix, showtimeID)
}

func (s *RedisStore) Upsert(ctx context.Context, h model.TemporaryHold) error {
	body, err := json.Marshal(h)
	if err != nil {
		return err
	}
	ttl := h.ExpiresAt.Sub(h.CreatedAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	idx := s.indexKey(h.ShowtimeID)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.holdKey(h.ShowtimeID, h.SessionID), body, ttl)
		p.SAdd(ctx, idx, h.SessionID)
		// the index outlives its newest hold by one TTL at most
		p.Expire(ctx, idx, 2*ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, showtimeID uint64, sessionID string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.holdKey(showtimeID, sessionID))
		p.SRem(ctx, s.indexKey(showtimeID), sessionID)
		return nil
	})
	return err
}

func (s *RedisStore) DeleteExpired(ctx context.Context, showtimeID uint64, now time.Time) error {
	_, err := s.sweep(ctx, showtimeID, now)
	return err
}

func (s *RedisStore) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+"holds:*", 100).Iterator()
	for iter.Next(ctx) {
		id, err := strconv.ParseUint(strings.TrimPrefix(iter.Val(), s.prefix+"holds:"), 10, 64)
		if err != nil {
			continue
		}
		n, err := s.sweep(ctx, id, now)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, iter.Err()
}

func (s *RedisStore) Active(ctx context.Context, showtimeID uint64, now time.Time) ([]model.TemporaryHold, error) {
	live, _, err := s.load(ctx, showtimeID, now)
	return live, err
}

// sweep drops expired and vanished sessions of one showtime.
func (s *RedisStore) sweep(ctx context.Context, showtimeID uint64, now time.Time) (int64, error) {
	_, dead, err := s.load(ctx, showtimeID, now)
	if err != nil || len(dead) == 0 {
		return 0, err
	}
	keys := make([]string, 0, len(dead))
	members := make([]interface{}, 0, len(dead))
	for _, sid := range dead {
		keys = append(keys, s.holdKey(showtimeID, sid))
		members = append(members, sid)
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.SRem(ctx, s.indexKey(showtimeID), members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(dead)), nil
}

// load returns the live holds and the session ids that are expired or gone.
func (s *RedisStore) load(ctx context.Context, showtimeID uint64, now time.Time) ([]model.TemporaryHold, []string, error) {
	sessions, err := s.rdb.SMembers(ctx, s.indexKey(showtimeID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, err
	}
	if len(sessions) == 0 {
		return nil, nil, nil
	}
	keys := make([]string, len(sessions))
	for i, sid := range sessions {
		keys[i] = s.holdKey(showtimeID, sid)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, nil, err
	}

	var live []model.TemporaryHold
	var dead []string
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			dead = append(dead, sessions[i])
			continue
		}
		var h model.TemporaryHold
		if err := json.Unmarshal([]byte(raw), &h); err != nil || !h.Active(now) {
			dead = append(dead, sessions[i])
			continue
		}
		live = append(live, h)
	}
	return live, dead, nil
}
