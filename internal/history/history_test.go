package history

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/mohammed-shakir/mapsearch/internal/cache/keys"
	"github.com/mohammed-shakir/mapsearch/internal/cache/redisstore"
)

type trail interface {
	ReadCurrentQuery(ctx context.Context) (string, error)
	WriteCanonicalQuery(ctx context.Context, q string) error
	Back(ctx context.Context) (string, bool, error)
}

func exercise(t *testing.T, h trail) {
	t.Helper()
	ctx := context.Background()

	cur, err := h.ReadCurrentQuery(ctx)
	require.NoError(t, err)
	require.Empty(t, cur)

	require.NoError(t, h.WriteCanonicalQuery(ctx, "nameSearch=a"))
	require.NoError(t, h.WriteCanonicalQuery(ctx, "nameSearch=a"))
	require.NoError(t, h.WriteCanonicalQuery(ctx, "nameSearch=b"))

	cur, err = h.ReadCurrentQuery(ctx)
	require.NoError(t, err)
	require.Equal(t, "nameSearch=b", cur)

	prev, ok, err := h.Back(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "nameSearch=a", prev)

	_, ok, err = h.Back(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	cur, err = h.ReadCurrentQuery(ctx)
	require.NoError(t, err)
	require.Equal(t, "nameSearch=a", cur)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory(0))
}

func TestMemory_Depth(t *testing.T) {
	m := NewMemory(2)
	ctx := context.Background()
	for _, q := range []string{"a", "b", "c"} {
		require.NoError(t, m.WriteCanonicalQuery(ctx, q))
	}
	require.Equal(t, []string{"c", "b"}, m.Entries())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	exercise(t, NewRedis(rc, "s1", 10, time.Minute))
}

func TestRedis_SessionScopedAndExpiring(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	ctx := context.Background()

	a := NewRedis(rc, "a", 10, time.Minute)
	b := NewRedis(rc, "b", 10, time.Minute)
	require.NoError(t, a.WriteCanonicalQuery(ctx, "tag=x"))

	got, err := b.ReadCurrentQuery(ctx)
	require.NoError(t, err)
	require.Empty(t, got)

	require.True(t, mr.Exists(keys.History("a")))
	mr.FastForward(2 * time.Minute)
	got, err = a.ReadCurrentQuery(ctx)
	require.NoError(t, err)
	require.Empty(t, got)
}
