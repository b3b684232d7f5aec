package crewkit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultMemberCacheTTL bounds how long a cached member record may be served.
const DefaultMemberCacheTTL = 30 * time.Second

const memberCacheNamespace = "crewkit:member"

// RedisMemberCache is a Store whose member reads go through Redis.
// Role updates, provisioning and soft deletes write through to the wrapped
// store and drop the cached record. Audit and workflow calls go straight to
// the wrapped store.
//
// Redis failures never fail a call: they are logged and the wrapped store
// answers instead.
type RedisMemberCache struct {
	Store
	client redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisMemberCache wraps next with a member cache kept in client.
// A ttl <= 0 selects DefaultMemberCacheTTL.
func NewRedisMemberCache(client redis.UniversalClient, next Store, ttl time.Duration, logger *zap.Logger) *RedisMemberCache {
	if ttl <= 0 {
		ttl = DefaultMemberCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisMemberCache{
		Store:  next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func memberCacheKey(teamID, userID string) string {
	return memberCacheNamespace + ":" + teamID + ":" + userID
}

// GetMember implements MemberStore.
func (c *RedisMemberCache) GetMember(ctx context.Context, teamID, userID string) (*Member, error) {
	key := memberCacheKey(teamID, userID)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var m Member
		if jsonErr := json.Unmarshal(raw, &m); jsonErr == nil {
			return &m, nil
		}
		c.logger.Warn("discarding unreadable cached member", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("member cache read failed", zap.String("key", key), zap.Error(err))
	}

	m, err := c.Store.GetMember(ctx, teamID, userID)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(m); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Warn("member cache write failed", zap.String("key", key), zap.Error(setErr))
		}
	}
	return m, nil
}

// UpdateMemberRole implements MemberStore.
func (c *RedisMemberCache) UpdateMemberRole(ctx context.Context, teamID, userID string, update RoleUpdate) error {
	if err := c.Store.UpdateMemberRole(ctx, teamID, userID, update); err != nil {
		return err
	}
	c.Invalidate(ctx, teamID, userID)
	return nil
}

// PutMember implements MemberWriter when the wrapped store does.
func (c *RedisMemberCache) PutMember(ctx context.Context, m Member) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.PutMember(ctx, m); err != nil {
		return err
	}
	c.Invalidate(ctx, m.TeamID, m.UserID)
	return nil
}

// SoftDeleteMember implements MemberWriter when the wrapped store does.
func (c *RedisMemberCache) SoftDeleteMember(ctx context.Context, teamID, userID string) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.SoftDeleteMember(ctx, teamID, userID); err != nil {
		return err
	}
	c.Invalidate(ctx, teamID, userID)
	return nil
}

func (c *RedisMemberCache) writer() (MemberWriter, error) {
	w, ok := c.Store.(MemberWriter)
	if !ok {
		return nil, NewError(ErrStorage, "wrapped store cannot provision members")
	}
	return w, nil
}

// Invalidate drops the cached record of one member.
func (c *RedisMemberCache) Invalidate(ctx context.Context, teamID, userID string) {
	key := memberCacheKey(teamID, userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("member cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// Ping returns an error when Redis is not reachable.
func (c *RedisMemberCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
