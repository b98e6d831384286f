package challenge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSampler struct {
	words []string
	err   error
	asked []int
}

func (f *fixedSampler) Sample(n int) ([]string, error) {
	f.asked = append(f.asked, n)
	if f.err != nil {
		return nil, f.err
	}
	return f.words[:n], nil
}

func TestIssuer_IssueAndRedeemOnce(t *testing.T) {
	sampler := &fixedSampler{words: []string{"apple", "river", "yellow", "garden", "window"}}
	store := NewMemoryStore()
	issuer := NewIssuer(sampler, store, 3, time.Minute)
	ctx := context.Background()

	c, err := issuer.Issue(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"apple", "river", "yellow"}, c.Words)
	assert.Equal(t, "alice", c.Username)
	assert.Equal(t, time.Minute, c.ExpiresAt.Sub(c.IssuedAt))
	assert.Equal(t, []int{3}, sampler.asked)
	assert.Equal(t, 1, store.Len())

	got, err := issuer.Redeem(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Words, got.Words)

	_, err = issuer.Redeem(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound, "a challenge must not be answered twice")
}

func TestIssuer_Expired(t *testing.T) {
	store := NewMemoryStore()
	issuer := NewIssuer(&fixedSampler{words: []string{"a", "b"}}, store, 2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	c, err := issuer.Issue(context.Background(), "")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = issuer.Redeem(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrExpired)
	assert.Equal(t, 0, store.Len())
}

func TestIssuer_SamplerError(t *testing.T) {
	boom := errors.New("boom")
	issuer := NewIssuer(&fixedSampler{err: boom}, NewMemoryStore(), 2, time.Minute)
	_, err := issuer.Issue(context.Background(), "")
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Challenge{ID: "old", ExpiresAt: now.Add(-time.Second)}))
	require.NoError(t, store.Put(ctx, &Challenge{ID: "new", ExpiresAt: now.Add(time.Minute)}))

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())

	_, err := store.Take(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
}

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStore_PutTake(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	require.NoError(t, store.Ping(ctx))

	c := &Challenge{
		ID:        "c-1",
		Username:  "bob",
		Words:     []string{"tiger", "umbrella"},
		IssuedAt:  time.Now().UTC().Truncate(time.Second),
		ExpiresAt: time.Now().UTC().Add(time.Minute).Truncate(time.Second),
	}
	require.NoError(t, store.Put(ctx, c))
	assert.True(t, mr.Exists(redisKeyPrefix+"c-1"))
	assert.Greater(t, mr.TTL(redisKeyPrefix+"c-1"), time.Duration(0))

	got, err := store.Take(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, c.Words, got.Words)
	assert.Equal(t, "bob", got.Username)
	assert.True(t, c.ExpiresAt.Equal(got.ExpiresAt))

	_, err = store.Take(ctx, "c-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_Expiry(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Challenge{ID: "c-2", Words: []string{"a", "b"}, ExpiresAt: time.Now().Add(30 * time.Second)}))
	mr.FastForward(time.Minute)

	_, err := store.Take(ctx, "c-2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_PutExpired(t *testing.T) {
	store, _ := setupRedisStore(t)
	err := store.Put(context.Background(), &Challenge{ID: "c-3", ExpiresAt: time.Now().Add(-time.Second)})
	assert.ErrorIs(t, err, ErrExpired)
}
