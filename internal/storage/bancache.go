package storage

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"supportbot/backend/internal/config"
	"supportbot/backend/internal/models"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// banCache is the in-process ban cache used without Redis.
type banCache struct {
	mu  sync.Mutex
	lru *expirable.LRU[int64, bool]
}

func newLocalBanCache() *banCache {
	return &banCache{lru: expirable.NewLRU[int64, bool](config.BanCacheSize, nil, config.BanCacheTTL)}
}

func (c *banCache) get(id int64) (bool, bool) {
	return c.lru.Get(id)
}

// fill caches a value read from the database unless the entry is already set.
func (c *banCache) fill(id int64, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.lru.Contains(id) {
		c.lru.Add(id, blocked)
	}
}

func (c *banCache) set(id int64, blocked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(id, blocked)
}

func banKey(id int64) string {
	return config.BanKeyPrefix + strconv.FormatInt(id, 10)
}

func banValue(blocked bool) string {
	if blocked {
		return "1"
	}
	return "0"
}

// IsUserBlocked answers from the ban cache and falls back to the users table.
// Unknown users are reported as not blocked. Cache failures degrade to a
// database read.
//
// A value read here only fills an empty cache entry, so a read that raced
// with a block or unblock cannot replace the value written by CacheBan.
func (s *Service) IsUserBlocked(ctx context.Context, id int64) (bool, error) {
	if blocked, ok := s.cachedBan(ctx, id); ok {
		return blocked, nil
	}

	user, err := s.GetUser(ctx, id)
	if errors.Is(err, models.ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	s.fillBan(ctx, id, user.IsBlocked)
	return user.IsBlocked, nil
}

// CacheBan records a committed change of the block flag, overwriting any
// cached value. Call it after the transaction that changed the flag.
func (s *Service) CacheBan(ctx context.Context, id int64, blocked bool) {
	s.bans.set(id, blocked)
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Set(ctx, banKey(id), banValue(blocked), config.BanCacheTTL).Err(); err != nil {
		slog.Warn("failed to cache ban status", "user", id, "err", err)
		// a stale entry must not outlive the change
		if err := s.Redis.Del(ctx, banKey(id)).Err(); err != nil {
			slog.Warn("failed to drop cached ban status", "user", id, "err", err)
		}
	}
}

func (s *Service) cachedBan(ctx context.Context, id int64) (bool, bool) {
	if s.inTx {
		return false, false
	}
	if s.Redis == nil {
		return s.bans.get(id)
	}

	status, err := s.Redis.Get(ctx, banKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return false, false
	}
	if err != nil {
		slog.Warn("ban cache lookup failed", "user", id, "err", err)
		return false, false
	}
	return status == "1", true
}

func (s *Service) fillBan(ctx context.Context, id int64, blocked bool) {
	if s.inTx {
		return
	}
	if s.Redis == nil {
		s.bans.fill(id, blocked)
		return
	}
	if err := s.Redis.SetNX(ctx, banKey(id), banValue(blocked), config.BanCacheTTL).Err(); err != nil {
		slog.Warn("failed to cache ban status", "user", id, "err", err)
	}
}
