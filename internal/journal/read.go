package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// ListOptions filter List.
type ListOptions struct {
	Store string // Only entries of this store, if set
	Kind  string // Only entries of this kind, if set
	Limit int    // Most recent N entries; zero means all
}

// FlowSummary describes one flow in the journal.
type FlowSummary struct {
	Flow      string    `json:"flow"`
	Store     string    `json:"store"`
	Root      string    `json:"root"` // Action that started the flow
	Steps     int       `json:"steps"`
	Drops     int       `json:"drops"`
	FirstSeq  int64     `json:"first_seq"`
	LastSeq   int64     `json:"last_seq"`
	StartedAt time.Time `json:"started_at"`
}

const entryColumns = `id, store, seq, flow, step, kind, action, payload, changed, error, recorded_at`

// List returns entries in write order.
func (j *Journal) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	var where []string
	var args []any
	if opts.Store != "" {
		where = append(where, "store = ?")
		args = append(args, opts.Store)
	}
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, opts.Kind)
	}

	query := "SELECT " + entryColumns + " FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if opts.Limit > 0 {
		// Most recent N, still returned oldest first.
		query = "SELECT * FROM (" + query + " ORDER BY id DESC LIMIT ?) ORDER BY id ASC"
		args = append(args, opts.Limit)
	} else {
		query += " ORDER BY id ASC"
	}

	return j.query(ctx, query, args...)
}

// ReadFlow returns a flow's entries: reductions in seq order, then drops.
func (j *Journal) ReadFlow(ctx context.Context, flow string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE flow = ?
		ORDER BY CASE kind WHEN 'reduce' THEN 0 ELSE 1 END, seq ASC, id ASC
	`, flow)
}

// Flows summarizes every flow, oldest first.
func (j *Journal) Flows(ctx context.Context) ([]FlowSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT
			flow,
			store,
			COALESCE((SELECT action FROM entries r
			          WHERE r.flow = e.flow AND r.kind = 'reduce'
			          ORDER BY r.seq ASC LIMIT 1), ''),
			SUM(CASE kind WHEN 'reduce' THEN 1 ELSE 0 END),
			SUM(CASE kind WHEN 'drop' THEN 1 ELSE 0 END),
			COALESCE(MIN(CASE kind WHEN 'reduce' THEN seq END), 0),
			COALESCE(MAX(CASE kind WHEN 'reduce' THEN seq END), 0),
			MIN(recorded_at)
		FROM entries e
		GROUP BY flow, store
		ORDER BY MIN(id) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query flows: %w", err)
	}
	defer rows.Close()

	var flows []FlowSummary
	for rows.Next() {
		var f FlowSummary
		var started string
		if err := rows.Scan(&f.Flow, &f.Store, &f.Root, &f.Steps, &f.Drops, &f.FirstSeq, &f.LastSeq, &started); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		f.StartedAt, err = time.Parse(time.RFC3339Nano, started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flows: %w", err)
	}
	return flows, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var payload, recordedAt string
	var changed int
	if err := rows.Scan(&e.ID, &e.Store, &e.Seq, &e.Flow, &e.Step, &e.Kind, &e.Action,
		&payload, &changed, &e.Error, &recordedAt); err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Payload = []byte(payload)
	e.Changed = changed != 0

	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	e.RecordedAt = t
	return e, nil
}
