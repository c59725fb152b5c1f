package rating

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamasit07/stones/backend/internal/repository/redis"
	"github.com/iamasit07/stones/backend/internal/service/game"
)

type fakeStore struct {
	ratings map[int64]int
	calls   int
	err     error
}

func (f *fakeStore) GetRating(_ context.Context, userID int64) (int, bool, error) {
	f.calls++
	if f.err != nil {
		return 0, false, f.err
	}
	r, ok := f.ratings[userID]
	return r, ok, nil
}

type fakeRecorder struct {
	saved []game.GameRecord
}

func (f *fakeRecorder) SaveGame(_ context.Context, rec game.GameRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func newCache(t *testing.T) (*redis.Cache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return redis.NewCache(client), s
}

func TestLookupReadsThroughCache(t *testing.T) {
	store := &fakeStore{ratings: map[int64]int{1: 1350}}
	cache, s := newCache(t)
	svc := NewService(store, cache, 1000, zerolog.Nop())
	ctx := context.Background()

	assert.Equal(t, 1350, svc.Lookup(ctx, 1))
	assert.Equal(t, 1350, svc.Lookup(ctx, 1))
	assert.Equal(t, 1, store.calls)

	v, err := s.Get("rating:1")
	require.NoError(t, err)
	assert.Equal(t, "1350", v)
}

func TestLookupDefaults(t *testing.T) {
	store := &fakeStore{ratings: map[int64]int{}}
	svc := NewService(store, nil, 1000, zerolog.Nop())
	assert.Equal(t, 1000, svc.Lookup(context.Background(), 42))

	store.err = eris.New("connection refused")
	assert.Equal(t, 1000, svc.Lookup(context.Background(), 42))

	bare := NewService(nil, nil, 1200, zerolog.Nop())
	assert.Equal(t, 1200, bare.Lookup(context.Background(), 42))
}

func TestRecorderInvalidatesCache(t *testing.T) {
	store := &fakeStore{ratings: map[int64]int{1: 1100, 2: 900}}
	cache, s := newCache(t)
	svc := NewService(store, cache, 1000, zerolog.Nop())
	ctx := context.Background()

	svc.Lookup(ctx, 1)
	svc.Lookup(ctx, 2)
	require.True(t, s.Exists("rating:1"))

	next := &fakeRecorder{}
	rec := game.GameRecord{SessionID: "s1", Participants: []int64{1, 2}}
	require.NoError(t, svc.Recorder(next).SaveGame(ctx, rec))

	assert.Len(t, next.saved, 1)
	assert.False(t, s.Exists("rating:1"))
	assert.False(t, s.Exists("rating:2"))
}
