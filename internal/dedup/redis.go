package dedup

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTimeout bounds each Redis round trip.
const redisTimeout = 2 * time.Second

// NewRedisClient connects to the Redis server at addr. Context deadlines
// apply to socket reads and writes, so every RedisSet call gives up after
// redisTimeout even when the server accepts connections but never replies.
func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:                  addr,
		DialTimeout:           redisTimeout,
		ReadTimeout:           redisTimeout,
		WriteTimeout:          redisTimeout,
		ContextTimeoutEnabled: true,
	})
}

// redisKey returns the Redis key for a session's seen-id set.
func redisKey(scope string) string {
	return "session:" + scope + ":seen"
}

// RedisSet keeps the seen ids in a Redis set, one key per session scope.
// Redis failures are logged and treated as "not seen", so a broken backend
// degrades to admitting duplicates rather than dropping messages.
type RedisSet struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

// NewRedisSet creates a RedisSet for the given scope. A positive ttl is
// refreshed on every write so abandoned scopes eventually expire.
func NewRedisSet(client redis.Cmdable, scope string, ttl time.Duration) *RedisSet {
	return &RedisSet{
		client: client,
		key:    redisKey(scope),
		ttl:    ttl,
	}
}

// MarkSeen adds id to the set.
func (s *RedisSet) MarkSeen(id string) {
	if id == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	pipe.SAdd(ctx, s.key, id)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("redis: failed to mark id seen: %v", err)
	}
}

// HasSeen reports whether id is in the set.
func (s *RedisSet) HasSeen(id string) bool {
	if id == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	ok, err := s.client.SIsMember(ctx, s.key, id).Result()
	if err != nil {
		log.Printf("redis: failed to check seen id: %v", err)
		return false
	}
	return ok
}

// Reset deletes the set.
func (s *RedisSet) Reset() {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		log.Printf("redis: failed to reset seen ids: %v", err)
	}
}
