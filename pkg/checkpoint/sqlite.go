package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id             TEXT PRIMARY KEY,
	thread_id      TEXT NOT NULL,
	namespace      TEXT NOT NULL DEFAULT '',
	source         TEXT NOT NULL,
	step           INTEGER NOT NULL,
	parent_id      TEXT,
	tags           TEXT,
	created_at     TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	state          TEXT NOT NULL,
	pending_writes TEXT,
	UNIQUE (thread_id, step)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_thread ON checkpoints(thread_id, step);
`

// SQLiteCheckpointer persists checkpoints in an embedded sqlite database.
// State serializes to JSON; records carry their schema version so the same
// implementation can round-trip across restarts.
type SQLiteCheckpointer[S any] struct {
	db *sql.DB
}

// NewSQLiteCheckpointer opens (or creates) the checkpoint database at path.
func NewSQLiteCheckpointer[S any](ctx context.Context, path string) (*SQLiteCheckpointer[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate checkpoint db: %w", err)
	}
	return &SQLiteCheckpointer[S]{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteCheckpointer[S]) Close() error {
	return s.db.Close()
}

func (s *SQLiteCheckpointer[S]) Put(ctx context.Context, config Config, state S, metadata Metadata) (uuid.UUID, error) {
	if config.ThreadID == "" {
		return uuid.Nil, ErrEmptyThreadID
	}
	if metadata.CreatedAt.IsZero() {
		metadata.CreatedAt = time.Now().UTC()
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return uuid.Nil, fmt.Errorf("serialize state: %w", err)
	}
	tagsJSON, _ := json.Marshal(metadata.Tags)

	var latestStep sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(step) FROM checkpoints WHERE thread_id = ?`, config.ThreadID).Scan(&latestStep)
	if err != nil {
		return uuid.Nil, fmt.Errorf("query latest step: %w", err)
	}
	if latestStep.Valid && uint64(latestStep.Int64) >= metadata.Step {
		return uuid.Nil, ErrNonMonotonicStep
	}

	id := uuid.New()
	var parentID any
	if metadata.ParentID != nil {
		parentID = metadata.ParentID.String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO checkpoints (id, thread_id, namespace, source, step, parent_id, tags, created_at, schema_version, state, pending_writes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		id.String(), config.ThreadID, config.Namespace, metadata.Source, metadata.Step,
		parentID, string(tagsJSON), metadata.CreatedAt.UTC().Format(time.RFC3339Nano),
		SchemaVersion, string(stateJSON))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert checkpoint: %w", err)
	}
	return id, nil
}

func (s *SQLiteCheckpointer[S]) PutWrites(ctx context.Context, config Config, writes []PendingWrite) error {
	if config.ThreadID == "" {
		return ErrEmptyThreadID
	}

	tuple, err := s.GetTuple(ctx, NewConfig(config.ThreadID))
	if err != nil {
		return err
	}
	if tuple == nil {
		return ErrNotFound
	}

	combined := append(tuple.Checkpoint.PendingWrites, writes...)
	writesJSON, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("serialize pending writes: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE checkpoints SET pending_writes = ? WHERE id = ?`,
		string(writesJSON), tuple.Checkpoint.ID.String())
	if err != nil {
		return fmt.Errorf("update pending writes: %w", err)
	}
	return nil
}

const checkpointColumns = `id, thread_id, namespace, source, step, parent_id, tags, created_at, schema_version, state, pending_writes`

func (s *SQLiteCheckpointer[S]) scan(row interface{ Scan(...any) error }) (Checkpoint[S], error) {
	var (
		cp                 Checkpoint[S]
		idStr, createdStr  string
		parentStr, tags    sql.NullString
		pendingJSON        sql.NullString
		stateJSON          string
	)
	if err := row.Scan(&idStr, &cp.ThreadID, &cp.Namespace, &cp.Metadata.Source, &cp.Metadata.Step,
		&parentStr, &tags, &createdStr, &cp.SchemaVersion, &stateJSON, &pendingJSON); err != nil {
		return Checkpoint[S]{}, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return Checkpoint[S]{}, fmt.Errorf("parse checkpoint id: %w", err)
	}
	cp.ID = id

	if parentStr.Valid {
		if pid, err := uuid.Parse(parentStr.String); err == nil {
			cp.Metadata.ParentID = &pid
		}
	}
	if tags.Valid && tags.String != "null" {
		_ = json.Unmarshal([]byte(tags.String), &cp.Metadata.Tags)
	}
	cp.Metadata.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)

	if err := json.Unmarshal([]byte(stateJSON), &cp.State); err != nil {
		return Checkpoint[S]{}, fmt.Errorf("deserialize state: %w", err)
	}
	if pendingJSON.Valid && pendingJSON.String != "" {
		_ = json.Unmarshal([]byte(pendingJSON.String), &cp.PendingWrites)
	}
	return cp, nil
}

func (s *SQLiteCheckpointer[S]) GetTuple(ctx context.Context, config Config) (*Tuple[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	var row *sql.Row
	if config.CheckpointID != nil {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+checkpointColumns+` FROM checkpoints WHERE thread_id = ? AND id = ?`,
			config.ThreadID, config.CheckpointID.String())
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT `+checkpointColumns+` FROM checkpoints WHERE thread_id = ? ORDER BY step DESC LIMIT 1`,
			config.ThreadID)
	}

	cp, err := s.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &Tuple[S]{
		Checkpoint: cp,
		Config:     NewConfig(config.ThreadID).At(cp.ID),
		NextNodes:  nextNodesOf(cp.PendingWrites),
	}, nil
}

func (s *SQLiteCheckpointer[S]) List(ctx context.Context, config Config, filter *Filter) ([]Checkpoint[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE thread_id = ? ORDER BY step DESC`,
		config.ThreadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var f Filter
	if filter != nil {
		f = *filter
	}

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		if f.Matches(cp.Metadata) {
			out = append(out, cp)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []Checkpoint[S]{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *SQLiteCheckpointer[S]) GetHistory(ctx context.Context, config Config) ([]Checkpoint[S], error) {
	if config.ThreadID == "" {
		return nil, ErrEmptyThreadID
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+checkpointColumns+` FROM checkpoints WHERE thread_id = ? ORDER BY step ASC`,
		config.ThreadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checkpoint[S]
	for rows.Next() {
		cp, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLiteCheckpointer[S]) Delete(ctx context.Context, config Config) error {
	if config.ThreadID == "" {
		return ErrEmptyThreadID
	}
	if config.CheckpointID == nil {
		return ErrNotFound
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE thread_id = ? AND id = ?`,
		config.ThreadID, config.CheckpointID.String())
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteCheckpointer[S]) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	return err
}

func (s *SQLiteCheckpointer[S]) Count(ctx context.Context, config Config) (int, error) {
	if config.ThreadID == "" {
		return 0, ErrEmptyThreadID
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM checkpoints WHERE thread_id = ?`, config.ThreadID).Scan(&n)
	return n, err
}

var _ Checkpointer[any] = (*SQLiteCheckpointer[any])(nil)
