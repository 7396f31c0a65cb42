package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/rescache/response"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestStore_EmptyLoad(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveLoadKeepsOrder(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	in := []response.Entry{
		{Fingerprint: "f2", Question: "second", Response: "2", InsertedAt: now, LastAccess: now.Add(time.Second)},
		{Fingerprint: "f1", Question: "first", Response: "1", InsertedAt: now.Add(-time.Minute), LastAccess: now},
	}
	require.NoError(t, s.Save(ctx, in))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range in {
		assert.Equal(t, in[i].Fingerprint, got[i].Fingerprint)
		assert.Equal(t, in[i].Question, got[i].Question)
		assert.Equal(t, in[i].Response, got[i].Response)
		assert.True(t, in[i].InsertedAt.Equal(got[i].InsertedAt))
		assert.True(t, in[i].LastAccess.Equal(got[i].LastAccess))
	}
}

func TestStore_SaveReplaces(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, []response.Entry{
		{Fingerprint: "a", Question: "a", Response: "1", InsertedAt: now, LastAccess: now},
		{Fingerprint: "b", Question: "b", Response: "2", InsertedAt: now, LastAccess: now},
	}))
	require.NoError(t, s.Save(ctx, []response.Entry{
		{Fingerprint: "c", Question: "c", Response: "3", InsertedAt: now, LastAccess: now},
	}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].Question)
}

// A snapshot written by one process warms a fresh cache in the next.
func TestStore_WarmsResponseCache(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	src := response.New(response.Options{MaxSize: 8, Duration: time.Hour})
	src.Set("¿Cuál es el precio?", "42")
	src.Set("hello", "world")
	require.NoError(t, s.Save(ctx, src.Entries()))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	entries, err := reopened.Load(ctx)
	require.NoError(t, err)

	dst := response.New(response.Options{MaxSize: 8, Duration: time.Hour})
	assert.Equal(t, 2, dst.Restore(entries))
	v, ok := dst.Get("cual es el precio")
	require.True(t, ok)
	assert.Equal(t, "42", v)
}
