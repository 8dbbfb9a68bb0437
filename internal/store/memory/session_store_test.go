package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

func TestSessionStore_RoundTripIsExact(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	sess := crawl.Session{
		RootKey:      "x.com",
		MaxPages:     5,
		Queue:        []string{"b", "c"},
		Visited:      map[string]bool{"a": true},
		BatchCounter: 1,
		PagesCrawled: 1,
	}

	require.NoError(t, store.Put(context.Background(), sess))

	got, ok, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sess, got)
}

func TestSessionStore_GetMissingKey(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	_, ok, err := store.Get(context.Background(), "nope")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionStore_ValuesDoNotAlias(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	sess := crawl.NewSession("x.com", 5, []string{"a", "b"})
	require.NoError(t, store.Put(context.Background(), sess))

	// Mutating the original after Put must not leak into the store.
	sess.Queue[0] = "mutated"
	sess.Visited["v"] = true

	got, _, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	require.Equal(t, "a", got.Queue[0])
	require.False(t, got.Visited["v"])

	// Mutating what Get returned must not leak either.
	got.Queue[0] = "mutated"
	again, _, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	require.Equal(t, "a", again.Queue[0])
}

func TestSessionStore_Delete(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	require.NoError(t, store.Put(context.Background(), crawl.NewSession("x.com", 1, nil)))
	require.NoError(t, store.Delete(context.Background(), "x.com"))

	_, ok, err := store.Get(context.Background(), "x.com")
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting a missing key is a no-op.
	require.NoError(t, store.Delete(context.Background(), "x.com"))
}
