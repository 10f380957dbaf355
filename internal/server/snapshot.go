package server

import (
	"sync"
	"sync/atomic"

	"github.com/femtoldap/femtoldap/internal/directory"
)

// snapshotHandle publishes directory.Snapshot updates to every
// listener goroutine without them polling: Watch returns a channel
// that is closed on the next Publish, the idiomatic "broadcast once"
// signal. Current always returns the latest snapshot without blocking;
// connections call it once per request.
type snapshotHandle struct {
	ptr atomic.Pointer[directory.Snapshot]
	mu  sync.Mutex
	ch  chan struct{}
}

func newSnapshotHandle(initial *directory.Snapshot) *snapshotHandle {
	h := &snapshotHandle{ch: make(chan struct{})}
	h.ptr.Store(initial)
	return h
}

func (h *snapshotHandle) Current() *directory.Snapshot {
	return h.ptr.Load()
}

func (h *snapshotHandle) Publish(s *directory.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ptr.Store(s)
	close(h.ch)
	h.ch = make(chan struct{})
}

func (h *snapshotHandle) Watch() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ch
}
