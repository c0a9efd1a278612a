package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which event ids a consumer group has handled.
type IdempotencyStore interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkSeen(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore is a process-local IdempotencyStore. Expired ids are
// swept on write at most once per ttl.
type MemoryIdempotencyStore struct {
	mu        sync.Mutex
	seenAt    map[string]time.Time
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return newMemoryIdempotencyStore(ttl, time.Now)
}

func newMemoryIdempotencyStore(ttl time.Duration, now func() time.Time) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		seenAt:    make(map[string]time.Time),
		ttl:       ttl,
		lastSweep: now(),
		now:       now,
	}
}

func (s *MemoryIdempotencyStore) Seen(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.seenAt[eventID]
	return ok && s.now().Sub(at) <= s.ttl, nil
}

func (s *MemoryIdempotencyStore) MarkSeen(_ context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > s.ttl {
		for id, at := range s.seenAt {
			if now.Sub(at) > s.ttl {
				delete(s.seenAt, id)
			}
		}
		s.lastSweep = now
	}
	s.seenAt[eventID] = now
	return nil
}

// Len reports how many ids are held, expired ones not yet swept included.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seenAt)
}

// RedisIdempotencyStore shares handled ids between replicas of one consumer
// group. Keys are prefix+eventID and expire after ttl.
type RedisIdempotencyStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisIdempotencyStore) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+eventID).Result()
	return n > 0, err
}

func (s *RedisIdempotencyStore) MarkSeen(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.prefix+eventID, time.Now().UTC().Unix(), s.ttl).Err()
}

// IdempotentHandler drops redelivered events for group. An id is marked only
// once inner succeeds, and an unreachable store never blocks handling.
func IdempotentHandler(group string, store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID != "" {
			seen, err := store.Seen(ctx, event.EventID)
			switch {
			case err != nil:
				logger.WarnContext(ctx, "idempotency lookup failed",
					slog.String("event_id", event.EventID),
					slog.String("error", err.Error()),
				)
			case seen:
				eventsConsumed.WithLabelValues(event.EventType, group, "duplicate").Inc()
				logger.DebugContext(ctx, "duplicate event skipped",
					slog.String("event_id", event.EventID),
					slog.String("event_type", event.EventType),
				)
				return nil
			}
		}

		if err := inner(ctx, event); err != nil {
			return err
		}
		if event.EventID == "" {
			return nil
		}
		if err := store.MarkSeen(ctx, event.EventID); err != nil {
			logger.WarnContext(ctx, "failed to mark event handled",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
