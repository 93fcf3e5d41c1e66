package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/luxelabs/concierge/models"
)

const sessionKeyPrefix = "chat_session:"

// redisStore implements Store on a redis key per session, value a JSON
// array of turns, expiry refreshed on every write.
type redisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisStore wraps an existing redis client as a session store.
func NewRedisStore(client *redis.Client, opts Options) Store {
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = 12
	}
	return &redisStore{client: client, opts: opts}
}

// Conn dials redis and verifies the connection with a ping.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func (r *redisStore) Get(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var turns []models.ConversationTurn
	if err := json.Unmarshal([]byte(val), &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *redisStore) Set(ctx context.Context, sessionID string, turns []models.ConversationTurn) error {
	data, err := json.Marshal(Trim(turns, r.opts.MaxTurns))
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, data, r.opts.TTL).Err()
}
