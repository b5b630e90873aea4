package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagesur/backend/internal/cache"
	"github.com/voyagesur/backend/testutil"
)

type payload struct {
	Summary string `json:"summary"`
}

// clock is a settable time source shared between a test and its Store.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newStore(t *testing.T) (*cache.Store, *clock, *miniredis.Miniredis) {
	t.Helper()
	client, mr := testutil.NewRedis(t)

	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return cache.New(client, "advice:", c.now), c, mr
}

func TestStore_PutThenGet(t *testing.T) {
	store, clk, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", payload{Summary: "sunny"}, 24*time.Hour))

	var got payload
	generated, err := store.Get(ctx, "k", &got)

	require.NoError(t, err)
	assert.Equal(t, "sunny", got.Summary)
	assert.True(t, generated.Equal(clk.t))
}

func TestStore_Get_Missing(t *testing.T) {
	store, _, _ := newStore(t)

	_, err := store.Get(context.Background(), "nope", &payload{})

	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStore_Get_TTL(t *testing.T) {
	cases := []struct {
		name  string
		age   time.Duration
		fresh bool
	}{
		{"one hour old", time.Hour, true},
		{"25 hours old", 25 * time.Hour, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, clk, _ := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Put(ctx, "k", payload{Summary: "rain"}, 24*time.Hour))

			clk.t = clk.t.Add(tc.age)
			var got payload
			_, err := store.Get(ctx, "k", &got)

			if tc.fresh {
				require.NoError(t, err)
				assert.Equal(t, "rain", got.Summary)
				return
			}
			assert.ErrorIs(t, err, cache.ErrStale)
			assert.ErrorIs(t, err, cache.ErrCacheMiss)
		})
	}
}

func TestStore_NoRedisExpiry(t *testing.T) {
	store, _, mr := newStore(t)

	require.NoError(t, store.Put(context.Background(), "k", payload{}, time.Hour))

	assert.Zero(t, mr.TTL("advice:k"), "entries are only removed by Sweep")
}

func TestStore_Get_CorruptEntryIsMiss(t *testing.T) {
	store, _, mr := newStore(t)
	require.NoError(t, mr.Set("advice:k", "{not json"))

	_, err := store.Get(context.Background(), "k", &payload{})

	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStore_Sweep(t *testing.T) {
	store, clk, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "old", payload{}, time.Hour))
	clk.t = clk.t.Add(2 * time.Hour)
	require.NoError(t, store.Put(ctx, "new", payload{}, time.Hour))
	require.NoError(t, mr.Set("advice:broken", "???"))
	require.NoError(t, mr.Set("other:old", "untouched"))

	deleted, err := store.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
	assert.False(t, mr.Exists("advice:old"))
	assert.False(t, mr.Exists("advice:broken"))
	assert.True(t, mr.Exists("advice:new"))
	assert.True(t, mr.Exists("other:old"), "keys outside the prefix are never touched")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "cusco__peru|2025-03-01|2025-03-08",
		cache.Key("Cusco, Peru", "2025-03-01", "2025-03-08"))
	assert.Equal(t, "a_b|c", cache.Key(" A|B ", "c"), "separator in input is neutralised")
	assert.Equal(t, "évian|x", cache.Key("Évian", "x"), "accented letters are kept")
}

func TestKey_NonLatinDestinationsStayDistinct(t *testing.T) {
	tokyo := cache.Key("weather", "東京, 日本", "2025-03-01", "2025-03-08")
	beijing := cache.Key("weather", "北京, 中国", "2025-03-01", "2025-03-08")

	assert.NotEqual(t, tokyo, beijing)
	assert.Equal(t, "weather|東京__日本|2025-03-01|2025-03-08", tokyo)
	assert.NotEqual(t, cache.Key("Évian"), cache.Key("Àvian"))
}
