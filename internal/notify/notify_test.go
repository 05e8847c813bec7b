package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostAndAutoDismiss(t *testing.T) {
	c := NewCenter(50 * time.Millisecond)
	defer c.Close()

	notice := c.Error("Failed to send message")
	assert.Equal(t, LevelError, notice.Level)
	assert.NotEmpty(t, notice.ID)

	require.Len(t, c.Notices(), 1)

	assert.Eventually(t, func() bool {
		return len(c.Notices()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNoticesAreIndependentlyDismissed(t *testing.T) {
	c := NewCenter(80 * time.Millisecond)
	defer c.Close()

	c.Error("first")
	time.Sleep(40 * time.Millisecond)
	second := c.Error("second")

	assert.Eventually(t, func() bool {
		notices := c.Notices()
		return len(notices) == 1 && notices[0].ID == second.ID
	}, 2*time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return len(c.Notices()) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWatchReceivesUpdates(t *testing.T) {
	c := NewCenter(time.Minute)
	defer c.Close()

	ch := c.Watch()
	c.Post(LevelInfo, "hello")

	select {
	case notices := <-ch:
		require.Len(t, notices, 1)
		assert.Equal(t, "hello", notices[0].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice broadcast received")
	}
}

func TestCloseClosesWatchers(t *testing.T) {
	c := NewCenter(time.Minute)
	ch := c.Watch()

	c.Close()
	c.Close()

	_, open := <-ch
	assert.False(t, open)
}
