package store

import (
	"sync"

	"occupancy-service/internal/domain/occupancy"
)

// FrameBuffer is a per-camera latest-value distribution slot. The
// publishing worker overwrites the single latest frame; subscribers
// each hold a one-slot channel where a stale undelivered frame is
// replaced by the newer one. The publisher never blocks on readers, a
// slow reader sees each frame at most once and never one older than its
// last read, and subscribers do not interfere with each other.
type FrameBuffer struct {
	mu     sync.Mutex
	latest *occupancy.Frame
	seq    uint64

	subs   map[int]chan occupancy.Frame
	nextID int
}

// NewFrameBuffer creates an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{subs: make(map[int]chan occupancy.Frame)}
}

// Publish overwrites the latest frame and offers it to every
// subscriber, dropping each subscriber's undelivered previous frame.
// Never blocks.
func (b *FrameBuffer) Publish(f occupancy.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	f.Seq = b.seq
	b.latest = &f

	for _, ch := range b.subs {
		b.offer(ch, f)
	}
}

// offer replaces whatever sits unread in the one-slot channel. Sends
// happen only under b.mu, so after draining the slot the send cannot
// block.
func (b *FrameBuffer) offer(ch chan occupancy.Frame, f occupancy.Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// Subscribe registers a reader. The returned channel yields the latest
// available frame first (when one exists) and thereafter only frames
// published after the reader's own last receive. cancel releases the
// subscription immediately and closes the channel; it never blocks the
// publisher or other subscribers, and is safe to call more than once.
func (b *FrameBuffer) Subscribe() (<-chan occupancy.Frame, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan occupancy.Frame, 1)
	b.subs[id] = ch
	if b.latest != nil {
		ch <- *b.latest
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Latest returns the most recently published frame, if any.
func (b *FrameBuffer) Latest() (occupancy.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return occupancy.Frame{}, false
	}
	return *b.latest, true
}

// SubscriberCount reports the number of live subscriptions.
func (b *FrameBuffer) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
