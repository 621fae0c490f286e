package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRevocationStore_RevokeAndCheck(t *testing.T) {
	s := NewMemoryRevocationStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("expected not revoked, got %v %v", revoked, err)
	}

	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, _ = s.IsRevoked(ctx, "jti-1")
	if !revoked {
		t.Error("expected jti-1 to be revoked")
	}
	if s.Count() != 1 {
		t.Errorf("expected count 1, got %d", s.Count())
	}
}

func TestMemoryRevocationStore_EmptyJTI(t *testing.T) {
	s := NewMemoryRevocationStore(time.Hour)
	defer s.Close()
	if err := s.Revoke(context.Background(), "", time.Now()); err == nil {
		t.Error("expected error for empty jti")
	}
}

func TestMemoryRevocationStore_Cleanup(t *testing.T) {
	s := NewMemoryRevocationStore(time.Hour)
	defer s.Close()
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	_ = s.Revoke(ctx, "expired", now.Add(-time.Minute))
	_ = s.Revoke(ctx, "live", now.Add(time.Minute))
	s.cleanup()

	if revoked, _ := s.IsRevoked(ctx, "expired"); revoked {
		t.Error("expected expired entry to be removed")
	}
	if revoked, _ := s.IsRevoked(ctx, "live"); !revoked {
		t.Error("expected live entry to remain")
	}
}

func TestMemoryRevocationStore_CloseTwice(t *testing.T) {
	s := NewMemoryRevocationStore(time.Hour)
	s.Close()
	s.Close()
}

func TestRedisRevocationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisRevocationStore(rdb)
	ctx := context.Background()

	revoked, err := s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "jti-1", time.Now().Add(10*time.Minute)))
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(revokedKeyPrefix + "jti-1")
	assert.Greater(t, ttl, 9*time.Minute)
	assert.LessOrEqual(t, ttl, 10*time.Minute)

	mr.FastForward(11 * time.Minute)
	revoked, err = s.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisRevocationStore_AlreadyExpiredIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	s := NewRedisRevocationStore(rdb)
	require.NoError(t, s.Revoke(context.Background(), "old", time.Now().Add(-time.Second)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"old"))
}

func TestRedisRevocationStore_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	_, err := NewRedisRevocationStore(rdb).IsRevoked(context.Background(), "x")
	assert.Error(t, err)
}
