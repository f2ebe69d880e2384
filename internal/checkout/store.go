package checkout

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// SessionStore persists sessions between requests.
type SessionStore interface {
    Get(ctx context.Context, id string) (*Session, error)
    Save(ctx context.Context, s *Session) error
    Delete(ctx context.Context, id string) error
}

// RedisSessionStore keeps sessions as JSON values with a sliding TTL.
type RedisSessionStore struct {
    rdb    *redis.Client
    prefix string
    ttl    time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
    return &RedisSessionStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) key(id string) string { return s.prefix + "checkout:" + id }

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
    raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
    if errors.Is(err, redis.Nil) {
        return nil, ErrSessionNotFound
    }
    if err != nil {
        return nil, fmt.Errorf("load checkout session: %w", err)
    }
    var sess Session
    if err := json.Unmarshal(raw, &sess); err != nil {
        return nil, fmt.Errorf("decode checkout session: %w", err)
    }
    return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
    raw, err := json.Marshal(sess)
    if err != nil {
        return fmt.Errorf("encode checkout session: %w", err)
    }
    return s.rdb.Set(ctx, s.key(sess.ID), raw, s.ttl).Err()
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
    return s.rdb.Del(ctx, s.key(id)).Err()
}

// MemorySessionStore is a process-local SessionStore.  Sessions do not
// expire.
type MemorySessionStore struct {
    mu       sync.RWMutex
    sessions map[string][]byte
}

func NewMemorySessionStore() *MemorySessionStore {
    return &MemorySessionStore{sessions: make(map[string][]byte)}
}

// Get returns a copy; callers must Save to publish changes.
func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
    m.mu.RLock()
    raw, ok := m.sessions[id]
    m.mu.RUnlock()
    if !ok {
        return nil, ErrSessionNotFound
    }
    var sess Session
    if err := json.Unmarshal(raw, &sess); err != nil {
        return nil, err
    }
    return &sess, nil
}

func (m *MemorySessionStore) Save(_ context.Context, sess *Session) error {
    raw, err := json.Marshal(sess)
    if err != nil {
        return err
    }
    m.mu.Lock()
    m.sessions[sess.ID] = raw
    m.mu.Unlock()
    return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
    m.mu.Lock()
    delete(m.sessions, id)
    m.mu.Unlock()
    return nil
}
