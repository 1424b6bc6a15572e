package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrQueueFull      = errors.New("audit queue full")
	ErrClosed         = errors.New("audit writer closed")
	ErrNotStarted     = errors.New("audit writer not started")
	ErrAlreadyStarted = errors.New("audit writer already started")
)

// EntryKind distinguishes recorded raw events.
type EntryKind string

const (
	EntryAlert EntryKind = "alert"
	EntryTick  EntryKind = "tick"
)

// Entry is one line of the audit stream.
type Entry struct {
	Kind    EntryKind       `json:"kind"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// Config defines the audit writer runtime settings.
type Config struct {
	Dir           string
	FileName      string
	QueueSize     int
	FlushInterval time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.FileName == "" {
		cfg.FileName = "events.jsonl"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return cfg
}

// Writer appends raw inbound events to a JSONL file from a buffered
// queue. A single goroutine owns the file, so appends never contend.
type Writer struct {
	cfg Config
	ch  chan Entry
	wg  sync.WaitGroup
	err atomic.Value

	started uint32
	closed  uint32
}

// NewWriter creates an audit writer and ensures the target directory exists.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if cfg.Dir == "" {
		return nil, errors.New("audit dir is empty")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{
		cfg: cfg,
		ch:  make(chan Entry, cfg.QueueSize),
	}, nil
}

// Path returns the audit file location.
func (w *Writer) Path() string {
	return filepath.Join(w.cfg.Dir, w.cfg.FileName)
}

// Start runs the writer loop in a new goroutine.
func (w *Writer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapUint32(&w.started, 0, 1) {
		return ErrAlreadyStarted
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Close stops the writer and flushes any buffered data.
func (w *Writer) Close() error {
	if atomic.CompareAndSwapUint32(&w.closed, 0, 1) {
		close(w.ch)
	}
	w.wg.Wait()
	return w.Err()
}

// Err returns the first error observed by the writer, if any.
func (w *Writer) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// TryAppend enqueues a raw event without blocking.
func (w *Writer) TryAppend(kind EntryKind, payload []byte) error {
	if atomic.LoadUint32(&w.closed) != 0 {
		return ErrClosed
	}
	if atomic.LoadUint32(&w.started) == 0 {
		return ErrNotStarted
	}
	if err := w.Err(); err != nil {
		return err
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)
	entry := Entry{Kind: kind, At: time.Now().UTC(), Payload: cp}

	select {
	case w.ch <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

func (w *Writer) run(ctx context.Context) {
	file, err := os.OpenFile(w.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		w.err.Store(err)
		return
	}
	buf := bufio.NewWriter(file)

	defer func() {
		if err := buf.Flush(); err != nil && w.Err() == nil {
			w.err.Store(err)
		}
		if err := file.Sync(); err != nil && w.Err() == nil {
			w.err.Store(err)
		}
		if err := file.Close(); err != nil && w.Err() == nil {
			w.err.Store(err)
		}
	}()

	flush := time.NewTicker(w.cfg.FlushInterval)
	defer flush.Stop()

	enc := json.NewEncoder(buf)
	for {
		select {
		case <-ctx.Done():
			return
		case <-flush.C:
			if err := buf.Flush(); err != nil {
				w.err.Store(err)
				return
			}
		case entry, ok := <-w.ch:
			if !ok {
				return
			}
			if err := enc.Encode(entry); err != nil {
				w.err.Store(err)
				return
			}
		}
	}
}
