package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDismissAfter matches the transient error banner timeout of the UI
const DefaultDismissAfter = 3 * time.Second

// Level classifies a user-visible notice
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is one transient, auto-dismissing user-visible message. Remote
// failures degrade to notices; nothing in the sync core is fatal.
type Notice struct {
	ID       string
	Level    Level
	Text     string
	PostedAt time.Time
}

// Center collects notices and dismisses each one after a fixed delay
type Center struct {
	mu           sync.Mutex
	notices      []Notice
	watchers     []chan []Notice
	dismissAfter time.Duration
	closed       bool
}

// NewCenter creates a notice center with the given auto-dismiss delay
func NewCenter(dismissAfter time.Duration) *Center {
	if dismissAfter <= 0 {
		dismissAfter = DefaultDismissAfter
	}
	return &Center{dismissAfter: dismissAfter}
}

// Post adds a notice and schedules its dismissal
func (c *Center) Post(level Level, text string) Notice {
	notice := Notice{
		ID:       uuid.NewString(),
		Level:    level,
		Text:     text,
		PostedAt: time.Now(),
	}

	c.mu.Lock()
	c.notices = append(c.notices, notice)
	c.broadcastLocked()
	c.mu.Unlock()

	time.AfterFunc(c.dismissAfter, func() {
		c.dismiss(notice.ID)
	})

	return notice
}

// Error posts an error-level notice
func (c *Center) Error(text string) Notice {
	return c.Post(LevelError, text)
}

// Notices returns the currently visible notices
func (c *Center) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Watch returns a channel receiving the visible notice list after each
// change. The channel is closed when the center is closed.
func (c *Center) Watch() <-chan []Notice {
	ch := make(chan []Notice, 8)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

// Close closes all watcher channels
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.watchers {
		close(ch)
	}
	c.watchers = nil
}

func (c *Center) dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.notices[:0]
	removed := false
	for _, n := range c.notices {
		if n.ID == id {
			removed = true
			continue
		}
		kept = append(kept, n)
	}
	c.notices = kept
	if removed {
		c.broadcastLocked()
	}
}

func (c *Center) broadcastLocked() {
	if c.closed {
		return
	}
	snapshot := make([]Notice, len(c.notices))
	copy(snapshot, c.notices)
	for _, ch := range c.watchers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
