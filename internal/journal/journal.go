// Package journal records store activity to SQLite for later inspection.
//
// A Journal is attached to a store as an observer. Every reduction and
// every dropped action becomes one row. Writes happen on a background
// goroutine, so the store's single-writer section only ever appends to an
// in-memory buffer.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/storekit/internal/sqlitedb"
	"github.com/roach88/storekit/internal/store"
)

//go:embed schema.sql
var schemaSQL string

var migrations = []sqlitedb.Migration{
	{Version: 1, SQL: schemaSQL},
}

// Entry kinds.
const (
	KindReduce = "reduce"
	KindDrop   = "drop"
)

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("journal closed")

// Entry is one journaled event.
type Entry struct {
	ID         int64           `json:"id"`
	Store      string          `json:"store"`
	Seq        int64           `json:"seq"`
	Flow       string          `json:"flow"`
	Step       int             `json:"step"`
	Kind       string          `json:"kind"`
	Action     string          `json:"action"`
	Payload    json.RawMessage `json:"payload"`
	Changed    bool            `json:"changed"`
	Error      string          `json:"error,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Option configures a Journal.
type Option func(*Journal)

// WithLogger sets the logger for write failures. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		j.logger = logger
	}
}

// WithNow overrides the wall clock used for RecordedAt.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Journal is an asynchronous SQLite action journal.
//
// Thread-safety model:
//   - Observer hooks, Append(): safe from any goroutine, never block on I/O
//   - Flush(), queries, Close(): safe from any goroutine
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	pending  []Entry
	queued   int64
	written  int64
	closed   bool
	signal   chan struct{} // wakes the writer (buffered, size 1)
	progress chan struct{} // closed and replaced after every batch

	done chan struct{}
}

// Open opens (or creates) a journal database and starts its writer.
func Open(path string, opts ...Option) (*Journal, error) {
	db, err := sqlitedb.Open(path, migrations...)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{
		db:       db,
		signal:   make(chan struct{}, 1),
		progress: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	if j.now == nil {
		j.now = time.Now
	}

	go j.run()
	return j, nil
}

// Observer returns store hooks that journal every reduction and drop under
// the given store name.
//
//	s := store.New(..., store.WithObserver(j.Observer("counter")))
func (j *Journal) Observer(storeName string) store.Hooks[any] {
	return store.Hooks[any]{
		OnReduce: func(e store.Event[any]) {
			j.Append(Entry{
				Store:   storeName,
				Seq:     e.Seq,
				Flow:    e.Flow,
				Step:    e.Step,
				Kind:    KindReduce,
				Action:  store.ActionName(e.Action),
				Payload: payload(e.Action),
				Changed: e.Changed,
			})
		},
		OnDrop: func(flow string, action any, err error) {
			j.Append(Entry{
				Store:   storeName,
				Flow:    flow,
				Kind:    KindDrop,
				Action:  store.ActionName(action),
				Payload: payload(action),
				Error:   err.Error(),
			})
		},
	}
}

func payload(action any) json.RawMessage {
	data, err := json.Marshal(action)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return data
}

// Append queues an entry for writing. Entries appended after Close are
// discarded.
func (j *Journal) Append(e Entry) {
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.pending = append(j.pending, e)
	j.queued++

	select {
	case j.signal <- struct{}{}:
	default:
	}
}

// run is the writer loop. It must only ever run on one goroutine.
func (j *Journal) run() {
	defer close(j.done)

	for {
		j.mu.Lock()
		batch := j.pending
		j.pending = nil
		closed := j.closed
		j.mu.Unlock()

		if len(batch) > 0 {
			if err := j.write(batch); err != nil {
				j.logger.Error("journal write failed", "entries", len(batch), "error", err)
			}
			j.mu.Lock()
			j.written += int64(len(batch))
			close(j.progress)
			j.progress = make(chan struct{})
			j.mu.Unlock()
			continue
		}

		if closed {
			return
		}
		<-j.signal
	}
}

// write inserts a batch in one transaction.
func (j *Journal) write(batch []Entry) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO entries
		(store, seq, flow, step, kind, action, payload, changed, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		_, err := stmt.Exec(
			e.Store,
			e.Seq,
			e.Flow,
			e.Step,
			e.Kind,
			e.Action,
			string(e.Payload),
			boolToInt(e.Changed),
			e.Error,
			e.RecordedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", e.Action, err)
		}
	}

	return tx.Commit()
}

// Flush waits until every entry appended before the call has been written.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	target := j.queued
	j.mu.Unlock()

	for {
		j.mu.Lock()
		written := j.written
		progress := j.progress
		j.mu.Unlock()

		if written >= target {
			return nil
		}

		select {
		case <-progress:
		case <-j.done:
			return ErrClosed
		case <-ctx.Done():
			return fmt.Errorf("flush journal: %w", ctx.Err())
		}
	}
}

// Close drains pending entries and closes the database.
// Close is idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	select {
	case j.signal <- struct{}{}:
	default:
	}
	<-j.done

	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
