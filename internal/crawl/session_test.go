package crawl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSession_EnqueueDeduplicates(t *testing.T) {
	t.Parallel()

	sess := NewSession("x.com", 10, []string{"https://x.com/a"})

	require.False(t, sess.Enqueue("https://x.com/a"), "already queued")
	require.True(t, sess.Enqueue("https://x.com/b"))

	sess.Visited["https://x.com/c"] = true
	require.False(t, sess.Enqueue("https://x.com/c"), "already visited")

	require.Equal(t, []string{"https://x.com/a", "https://x.com/b"}, sess.Queue)
}

func TestSession_PopAndRequeue(t *testing.T) {
	t.Parallel()

	sess := NewSession("x.com", 10, []string{"a", "b"})

	url, ok := sess.Pop()
	require.True(t, ok)
	require.Equal(t, "a", url)

	sess.Requeue("a")
	require.Equal(t, []string{"a", "b"}, sess.Queue)

	sess.Queue = nil
	_, ok = sess.Pop()
	require.False(t, ok)
}

func TestSession_ExhaustedAndSuspended(t *testing.T) {
	t.Parallel()

	sess := NewSession("x.com", 2, []string{"a"})
	require.False(t, sess.Exhausted())
	require.True(t, sess.Suspended())

	sess.PagesCrawled = 2
	require.True(t, sess.Exhausted())
	require.False(t, sess.Suspended())

	sess.PagesCrawled = 1
	sess.Queue = nil
	require.True(t, sess.Exhausted())
	require.False(t, sess.Suspended())
}

func TestSession_CloneIsIndependent(t *testing.T) {
	t.Parallel()

	orig := NewSession("x.com", 5, []string{"a", "b"})
	orig.Visited["v"] = true

	clone := orig.Clone()
	clone.Queue[0] = "mutated"
	clone.Visited["w"] = true

	require.Equal(t, "a", orig.Queue[0])
	require.False(t, orig.Visited["w"])
}

func TestSession_JSONRoundTripIsExact(t *testing.T) {
	t.Parallel()

	sess := Session{
		RootKey:      "x.com",
		MaxPages:     5,
		Queue:        []string{"b", "c"},
		Visited:      map[string]bool{"a": true},
		BatchCounter: 1,
		PagesCrawled: 1,
	}

	payload, err := json.Marshal(sess)
	require.NoError(t, err)

	var restored Session
	require.NoError(t, json.Unmarshal(payload, &restored))
	require.Equal(t, sess, restored)
}

func TestNewResultID_Monotonic(t *testing.T) {
	t.Parallel()

	a, err := NewResultID()
	require.NoError(t, err)
	b, err := NewResultID()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.LessOrEqual(t, a, b, "uuidv7 ids are time-ordered")
}
