package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const checkpointPrefix = "clinified:export:checkpoint:"

type CheckpointStore interface {
	Load(ctx context.Context, resourceType string) (Cursor, error)
	Save(ctx context.Context, resourceType string, cur Cursor) error
}

// RedisCheckpoints keeps one JSON encoded cursor per resource type.
type RedisCheckpoints struct {
	client *redis.Client
}

func NewRedisCheckpoints(client *redis.Client) *RedisCheckpoints {
	return &RedisCheckpoints{client: client}
}

// NewRedisClient parses a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

func checkpointKey(resourceType string) string {
	return checkpointPrefix + resourceType
}

// Load returns the zero cursor when no checkpoint has been saved.
func (r *RedisCheckpoints) Load(ctx context.Context, resourceType string) (Cursor, error) {
	raw, err := r.client.Get(ctx, checkpointKey(resourceType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cursor{}, nil
	}
	if err != nil {
		return Cursor{}, fmt.Errorf("load %s checkpoint: %w", resourceType, err)
	}
	return decodeCursor(raw)
}

func (r *RedisCheckpoints) Save(ctx context.Context, resourceType string, cur Cursor) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, checkpointKey(resourceType), raw, 0).Err(); err != nil {
		return fmt.Errorf("save %s checkpoint: %w", resourceType, err)
	}
	return nil
}

// Reset removes the checkpoint so the next run starts from the beginning.
func (r *RedisCheckpoints) Reset(ctx context.Context, resourceType string) error {
	return r.client.Del(ctx, checkpointKey(resourceType)).Err()
}

func decodeCursor(raw []byte) (Cursor, error) {
	var cur Cursor
	if err := json.Unmarshal(raw, &cur); err != nil {
		return Cursor{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return cur, nil
}
