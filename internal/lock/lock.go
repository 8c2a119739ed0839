// Package lock keeps decision cycles from overlapping.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("lock is held")

// Locker hands out a single exclusive lock. Acquire never blocks.
type Locker interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process Locker.
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an in-process lock.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Acquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointing at the same Redis key.
type Redis struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisOptions configures the distributed lock.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	key := opts.Key
	if key == "" {
		key = "signalbot:cycle"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Redis{client: client, key: key, ttl: ttl}, nil
}

// Acquire sets the key with NX and a TTL so a crashed holder cannot wedge the bot.
func (r *Redis) Acquire(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", r.key, err)
	}
	if !ok {
		return nil, ErrLocked
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			releaseScript.Run(ctx, r.client, []string{r.key}, token)
		})
	}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
