package store

import (
	"context"
	"sync"
)

const defaultFeedBuffer = 64

// Feed fans change notifications out to table-scoped subscribers.
// Publish never blocks: a subscriber with a full buffer misses the change.
// Since every change triggers a full reload, one pending change per
// subscriber is enough to converge.
type Feed struct {
	mu         sync.RWMutex
	subs       map[chan Change]string
	done       chan struct{}
	bufferSize int
}

func NewFeed() *Feed {
	return NewFeedWithBuffer(defaultFeedBuffer)
}

func NewFeedWithBuffer(size int) *Feed {
	if size < 1 {
		size = 1
	}
	return &Feed{
		subs:       make(map[chan Change]string),
		done:       make(chan struct{}),
		bufferSize: size,
	}
}

// Subscribe registers for changes on table ("*" for every table). The
// returned channel is closed when ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, table string) <-chan Change {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		ch := make(chan Change)
		close(ch)
		return ch
	default:
	}

	sub := make(chan Change, f.bufferSize)
	f.subs[sub] = table

	go func() {
		select {
		case <-ctx.Done():
		case <-f.done:
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[sub]; ok {
			delete(f.subs, sub)
			close(sub)
		}
	}()

	return sub
}

func (f *Feed) Publish(c Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	select {
	case <-f.done:
		return
	default:
	}

	for sub, table := range f.subs {
		if table != "*" && table != c.Table {
			continue
		}
		select {
		case sub <- c:
		default:
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close closes every subscriber channel. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	select {
	case <-f.done:
		return
	default:
	}
	close(f.done)
	for sub := range f.subs {
		close(sub)
	}
	f.subs = make(map[chan Change]string)
}
