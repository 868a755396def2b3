package signaling

import (
	"testing"
	"time"

	"github.com/aliboard/aliboard-server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := NewCache(&config.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func offerSDP(body string) SDP  { return SDP{Type: "offer", Sdp: body} }
func answerSDP(body string) SDP { return SDP{Type: "answer", Sdp: body} }

func TestOfferRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	_, err := cache.GetOffer("lesson-1")
	assert.Equal(t, ErrNotFound, err)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0\r\no=alice")))
	got, err := cache.GetOffer("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "offer", got.Type)
	assert.Equal(t, "v=0\r\no=alice", got.Sdp)
}

func TestSecondOffererIsRejected(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0")))
	err := cache.PutOffer("lesson-1", "bob", offerSDP("v=0"))
	assert.Equal(t, ErrConflict, err)

	// the original offer is untouched
	got, err := cache.GetOffer("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "v=0", got.Sdp)
}

func TestSameCallerMayReOffer(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("first")))
	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("second")))
	got, err := cache.GetOffer("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.Sdp)
}

func TestSessionsAreIndependent(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0")))
	require.NoError(t, cache.PutOffer("lesson-2", "bob", offerSDP("v=0")))

	state, err := cache.Debug("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", state.LockHolder)
	state, err = cache.Debug("lesson-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", state.LockHolder)
}

func TestAnswerRequiresOffer(t *testing.T) {
	cache := newTestCache(t)

	err := cache.PutAnswer("lesson-1", answerSDP("v=0"))
	assert.Equal(t, ErrNotFound, err)
}

func TestAnswerConsumesOffer(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0\r\no=alice")))
	require.NoError(t, cache.PutAnswer("lesson-1", answerSDP("v=0\r\no=bob")))

	got, err := cache.GetAnswer("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, "v=0\r\no=bob", got.Sdp)

	_, err = cache.GetOffer("lesson-1")
	assert.Equal(t, ErrNotFound, err)
}

func TestReOfferClearsStaleAnswer(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("first")))
	require.NoError(t, cache.PutAnswer("lesson-1", answerSDP("v=0")))
	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("second")))

	_, err := cache.GetAnswer("lesson-1")
	assert.Equal(t, ErrNotFound, err)
}

func TestHangupClearsEverything(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0")))
	require.NoError(t, cache.Hangup("lesson-1"))

	_, err := cache.GetOffer("lesson-1")
	assert.Equal(t, ErrNotFound, err)
	state, err := cache.Debug("lesson-1")
	require.NoError(t, err)
	assert.Equal(t, State{}, state)

	// a new caller can offer right away
	require.NoError(t, cache.PutOffer("lesson-1", "bob", offerSDP("v=0")))
}

func TestHangupIsIdempotent(t *testing.T) {
	cache := newTestCache(t)
	require.NoError(t, cache.Hangup("lesson-1"))
	require.NoError(t, cache.Hangup("lesson-1"))
}

func TestLockExpiryFreesSession(t *testing.T) {
	cache := newTestCache(t)
	cache.lockTTL = 50 * time.Millisecond

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("v=0")))
	assert.Equal(t, ErrConflict, cache.PutOffer("lesson-1", "bob", offerSDP("v=0")))

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, cache.PutOffer("lesson-1", "bob", offerSDP("v=0")))
}

func TestDebugReportsLengths(t *testing.T) {
	cache := newTestCache(t)

	require.NoError(t, cache.PutOffer("lesson-1", "alice", offerSDP("12345")))
	state, err := cache.Debug("lesson-1")
	require.NoError(t, err)
	assert.True(t, state.Offer)
	assert.False(t, state.Answer)
	assert.Equal(t, 5, state.OfferLen)
	assert.Equal(t, "alice", state.LockHolder)

	require.NoError(t, cache.PutAnswer("lesson-1", answerSDP("v=0")))
	state, err = cache.Debug("lesson-1")
	require.NoError(t, err)
	assert.False(t, state.Offer)
	assert.True(t, state.Answer)
	assert.Equal(t, 3, state.AnswerLen)
}
