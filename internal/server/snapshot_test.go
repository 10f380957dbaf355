package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/femtoldap/femtoldap/internal/directory"
)

func TestSnapshotHandleCurrentReturnsLatestPublished(t *testing.T) {
	initial := directory.NewSnapshot(nil)
	h := newSnapshotHandle(initial)
	assert.Same(t, initial, h.Current())

	next := directory.NewSnapshot(nil)
	h.Publish(next)
	assert.Same(t, next, h.Current())
}

func TestSnapshotHandleWatchClosesOnPublish(t *testing.T) {
	h := newSnapshotHandle(directory.NewSnapshot(nil))
	w := h.Watch()

	select {
	case <-w:
		t.Fatal("watch channel closed before any publish")
	default:
	}

	h.Publish(directory.NewSnapshot(nil))

	select {
	case <-w:
	case <-time.After(time.Second):
		t.Fatal("watch channel was not closed after publish")
	}

	// A fresh Watch() call after the publish returns a new, still-open channel.
	w2 := h.Watch()
	select {
	case <-w2:
		t.Fatal("new watch channel should not be closed yet")
	default:
	}
	require.NotEqual(t, w, w2)
}
