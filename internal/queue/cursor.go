package queue

import (
	"context"
	"errors"
	"strconv"

	"supportbot/backend/internal/config"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

// CursorStore keeps each consumer's last-seen help request id. A missing
// cursor reads as zero.
type CursorStore interface {
	Get(ctx context.Context, consumerID int64) (uint, error)
	Set(ctx context.Context, consumerID int64, itemID uint) error
}

// MemCursorStore keeps cursors in process memory. Cursors are lost on
// restart, which only restarts the rotation from the oldest request.
type MemCursorStore struct {
	cursors *xsync.MapOf[int64, uint]
}

func NewMemCursorStore() *MemCursorStore {
	return &MemCursorStore{cursors: xsync.NewMapOf[int64, uint]()}
}

func (m *MemCursorStore) Get(_ context.Context, consumerID int64) (uint, error) {
	id, _ := m.cursors.Load(consumerID)
	return id, nil
}

func (m *MemCursorStore) Set(_ context.Context, consumerID int64, itemID uint) error {
	m.cursors.Store(consumerID, itemID)
	return nil
}

// RedisCursorStore keeps cursors in a single Redis hash so every API process
// shares them.
type RedisCursorStore struct {
	Redis *redis.Client
	Key   string
}

func NewRedisCursorStore(rdb *redis.Client) *RedisCursorStore {
	return &RedisCursorStore{Redis: rdb, Key: config.HelpCursorKey}
}

func (r *RedisCursorStore) Get(ctx context.Context, consumerID int64) (uint, error) {
	val, err := r.Redis.HGet(ctx, r.Key, strconv.FormatInt(consumerID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func (r *RedisCursorStore) Set(ctx context.Context, consumerID int64, itemID uint) error {
	return r.Redis.HSet(ctx, r.Key, strconv.FormatInt(consumerID, 10), strconv.FormatUint(uint64(itemID), 10)).Err()
}
