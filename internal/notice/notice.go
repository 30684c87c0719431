package notice

import (
	"sync"

	appLog "moodcal/internal/log"
	"moodcal/internal/model"
)

const defaultCapacity = 100

// Board collects user-visible notices until a client drains them. Every
// notice is also logged. When full, the oldest notice is dropped.
type Board struct {
	mu       sync.Mutex
	capacity int
	pending  []model.Notice
}

// NewBoard creates a Board holding at most capacity undelivered notices.
// capacity <= 0 selects the default.
func NewBoard(capacity int) *Board {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Board{capacity: capacity}
}

// Notify implements session.Notifier.
func (b *Board) Notify(n model.Notice) {
	appLog.Warn("notice", "kind", n.Kind, "message", n.Message)

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) >= b.capacity {
		b.pending = b.pending[1:]
	}
	b.pending = append(b.pending, n)
}

// Drain returns pending notices oldest-first and forgets them.
func (b *Board) Drain() []model.Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	if out == nil {
		out = []model.Notice{}
	}
	return out
}
