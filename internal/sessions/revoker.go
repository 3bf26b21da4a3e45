package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "crashula:session:revoked:"

// Revoker tracks session token ids that were logged out before they expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NewRevoker returns a Redis backed Revoker, or a MemoryRevoker when client
// is nil.
func NewRevoker(client redis.UniversalClient) Revoker {
	if client == nil {
		return NewMemoryRevoker()
	}
	return redisRevoker{client: client}
}

type redisRevoker struct {
	client redis.UniversalClient
}

func (r redisRevoker) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r redisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryRevoker keeps revocations in process memory. It backs single
// instance deployments that run without Redis.
type MemoryRevoker struct {
	entries *xsync.MapOf[string, time.Time]
	now     func() time.Time
}

func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{
		entries: xsync.NewMapOf[string, time.Time](),
		now:     time.Now,
	}
}

func (m *MemoryRevoker) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	now := m.now()
	m.entries.Range(func(id string, until time.Time) bool {
		if !until.After(now) {
			m.entries.Delete(id)
		}
		return true
	})
	if expiresAt.After(now) {
		m.entries.Store(tokenID, expiresAt)
	}
	return nil
}

func (m *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	until, ok := m.entries.Load(tokenID)
	return ok && until.After(m.now()), nil
}
