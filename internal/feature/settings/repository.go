package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/roach88/storekit/internal/sqlitedb"
)

// ErrNotFound is returned by Load when no settings have been saved.
var ErrNotFound = errors.New("settings not found")

// Repository persists a single settings value.
type Repository interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// MemoryRepository keeps settings in memory. The zero value is empty and
// ready to use.
type MemoryRepository struct {
	mu    sync.Mutex
	state *State
	saves int
}

// NewMemoryRepository creates a repository already holding state.
func NewMemoryRepository(state State) *MemoryRepository {
	r := &MemoryRepository{}
	r.put(state)
	return r
}

// Load implements Repository.
func (r *MemoryRepository) Load(context.Context) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == nil {
		return State{}, ErrNotFound
	}
	s := *r.state
	s.CustomPrompts = slices.Clone(s.CustomPrompts)
	return s, nil
}

// Save implements Repository.
func (r *MemoryRepository) Save(_ context.Context, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.putLocked(state)
	return nil
}

// Saves returns how many times Save has been called.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

func (r *MemoryRepository) put(state State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(state)
}

func (r *MemoryRepository) putLocked(state State) {
	state.CustomPrompts = slices.Clone(state.CustomPrompts)
	r.state = &state
}

var migrations = []sqlitedb.Migration{
	{Version: 1, SQL: `
CREATE TABLE IF NOT EXISTS settings (
    id         INTEGER PRIMARY KEY CHECK (id = 1),
    data       TEXT NOT NULL,
    updated_at TEXT NOT NULL
) STRICT;`},
}

// SQLiteRepository stores settings as one JSON row in SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteRepository opens (or creates) the settings database at path.
func OpenSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sqlitedb.Open(path, migrations...)
	if err != nil {
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	return &SQLiteRepository{db: db, now: time.Now}, nil
}

// Load implements Repository.
func (r *SQLiteRepository) Load(ctx context.Context) (State, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("load settings: %w", err)
	}

	state := DefaultState()
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return State{}, fmt.Errorf("decode settings: %w", err)
	}
	return state, nil
}

// Save implements Repository.
func (r *SQLiteRepository) Save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO settings (id, data, updated_at) VALUES (1, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), r.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
