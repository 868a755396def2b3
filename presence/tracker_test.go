package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOnlineWithinThreshold(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Heartbeat("u1", "s1", now)

	assert.True(t, tr.IsOnline("u1", "s1", now, 20*time.Second))
	assert.True(t, tr.IsOnline("u1", "s1", now.Add(19*time.Second), 20*time.Second))
	// the boundary itself counts as offline
	assert.False(t, tr.IsOnline("u1", "s1", now.Add(20*time.Second), 20*time.Second))
	assert.False(t, tr.IsOnline("u1", "s1", now.Add(time.Minute), 20*time.Second))
}

func TestIsOnlineUnknownUser(t *testing.T) {
	tr := NewTracker()
	assert.False(t, tr.IsOnline("u1", "s1", time.Now(), 20*time.Second))
}

func TestHeartbeatRefreshes(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Heartbeat("u1", "s1", now)
	tr.Heartbeat("u1", "s1", now.Add(time.Minute))
	assert.True(t, tr.IsOnline("u1", "s1", now.Add(time.Minute+5*time.Second), 20*time.Second))
}

func TestRecordsAreKeyedPerSession(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Heartbeat("u1", "s1", now)
	assert.False(t, tr.IsOnline("u1", "s2", now, 20*time.Second))
	assert.False(t, tr.IsOnline("u2", "s1", now, 20*time.Second))
}

func TestSweepDropsAncientRecords(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Heartbeat("u1", "s1", now.Add(-2*time.Hour))
	tr.Heartbeat("u2", "s1", now)
	removed := tr.Sweep(now, time.Hour)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, tr.Len())
	assert.True(t, tr.IsOnline("u2", "s1", now, 20*time.Second))
}
