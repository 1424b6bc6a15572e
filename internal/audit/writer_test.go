package audit

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterRoundTrip(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.TryAppend(EntryAlert, []byte(`{"symbol":"ES","action":"buy"}`)))
	require.NoError(t, w.TryAppend(EntryTick, []byte(`{"symbol":"ES","price":5021}`)))
	require.NoError(t, w.Close())

	entries, err := ReadAll(w.Path())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, EntryAlert, entries[0].Kind)
	assert.Equal(t, EntryTick, entries[1].Kind)
	assert.False(t, entries[0].At.IsZero())

	var tick struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	require.NoError(t, json.Unmarshal(entries[1].Payload, &tick))
	assert.Equal(t, "ES", tick.Symbol)
	assert.Equal(t, 5021.0, tick.Price)
}

func TestTryAppendBeforeStart(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.ErrorIs(t, w.TryAppend(EntryAlert, []byte(`{}`)), ErrNotStarted)
}

func TestTryAppendAfterClose(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Close())
	require.ErrorIs(t, w.TryAppend(EntryAlert, []byte(`{}`)), ErrClosed)
}

func TestTryAppendQueueFull(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir(), QueueSize: 1})
	require.NoError(t, err)
	// Mark started without running the loop, so the queue never drains
	// and the second append overflows.
	w.started = 1

	require.NoError(t, w.TryAppend(EntryAlert, []byte(`{}`)))
	require.ErrorIs(t, w.TryAppend(EntryAlert, []byte(`{}`)), ErrQueueFull)
}

func TestReadAllSkipsPartialLines(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(Config{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.TryAppend(EntryAlert, []byte(`{"symbol":"ES"}`)))
	require.NoError(t, w.Close())

	// Simulate a crash mid-append.
	file, err := os.OpenFile(w.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"kind":"tick","at":"2026-`)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	entries, err := ReadAll(w.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryAlert, entries[0].Kind)
}

func TestStartTwice(t *testing.T) {
	w, err := NewWriter(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.ErrorIs(t, w.Start(context.Background()), ErrAlreadyStarted)
	require.NoError(t, w.Close())
}
