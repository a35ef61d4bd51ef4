package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/edustack/doubtsolver/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// local-development backend; production uses Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS frames (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	parent_id  TEXT,
	status     TEXT NOT NULL DEFAULT 'queued',
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_frames_owner ON frames(owner_id);
CREATE INDEX IF NOT EXISTS idx_frames_parent ON frames(parent_id);
CREATE INDEX IF NOT EXISTS idx_frames_status ON frames(status);

CREATE TABLE IF NOT EXISTS doubts (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	bookmarked INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_doubts_owner ON doubts(owner_id);
CREATE INDEX IF NOT EXISTS idx_doubts_status ON doubts(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateFrame(ctx context.Context, frame *model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal frame")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO frames (id, owner_id, kind, parent_id, status, data, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		frame.ID, frame.OwnerID, string(frame.Kind), frame.ParentID, string(frame.Status), string(data), frame.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert frame %s", frame.ID)
}

func (s *SQLiteStore) GetFrame(ctx context.Context, id string) (*model.Frame, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM frames WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get frame %s", id)
	}

	var f model.Frame
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal frame")
	}
	return &f, nil
}

func (s *SQLiteStore) UpdateFrame(ctx context.Context, frame *model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal frame")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE frames SET status = ?, data = ? WHERE id = ?`,
		string(frame.Status), string(data), frame.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update frame %s", frame.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListFrames(ctx context.Context, filter FrameFilter) ([]model.Frame, error) {
	query := `SELECT data FROM frames WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ParentID != "" {
		query += ` AND parent_id = ?`
		args = append(args, filter.ParentID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list frames")
	}
	defer rows.Close()

	var frames []model.Frame
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan frame")
		}
		var f model.Frame
		if err := json.Unmarshal([]byte(data), &f); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal frame")
		}
		frames = append(frames, f)
	}
	return frames, eris.Wrap(rows.Err(), "sqlite: list frames iterate")
}

func (s *SQLiteStore) DeleteFrame(ctx context.Context, id string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM frames WHERE id = ? OR parent_id = ?`, id, id,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete frame %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return int(n), nil
}

func (s *SQLiteStore) CreateDoubt(ctx context.Context, doubt *model.Doubt) error {
	data, err := json.Marshal(doubt)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal doubt")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO doubts (id, owner_id, status, bookmarked, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		doubt.ID, doubt.OwnerID, string(doubt.Status), doubt.Bookmarked, string(data), doubt.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert doubt %s", doubt.ID)
}

func (s *SQLiteStore) GetDoubt(ctx context.Context, id string) (*model.Doubt, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM doubts WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get doubt %s", id)
	}

	var d model.Doubt
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal doubt")
	}
	return &d, nil
}

func (s *SQLiteStore) UpdateDoubt(ctx context.Context, doubt *model.Doubt) error {
	data, err := json.Marshal(doubt)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal doubt")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE doubts SET status = ?, bookmarked = ?, data = ? WHERE id = ?`,
		string(doubt.Status), doubt.Bookmarked, string(data), doubt.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update doubt %s", doubt.ID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListDoubts(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error) {
	query := `SELECT data FROM doubts WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Bookmarked != nil {
		query += ` AND bookmarked = ?`
		args = append(args, *filter.Bookmarked)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list doubts")
	}
	defer rows.Close()

	var doubts []model.Doubt
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan doubt")
		}
		var d model.Doubt
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal doubt")
		}
		doubts = append(doubts, d)
	}
	return doubts, eris.Wrap(rows.Err(), "sqlite: list doubts iterate")
}

func (s *SQLiteStore) DeleteDoubt(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM doubts WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete doubt %s", id)
	}
	return checkRowsAffected(res)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
