package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/edustack/doubtsolver/internal/config"
	"github.com/edustack/doubtsolver/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store. pgxmock
// satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_frame": `INSERT INTO frames (id, owner_id, kind, parent_id, status, data, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_frame": `UPDATE frames SET status = $1, data = $2 WHERE id = $3`,
	"get_frame":    `SELECT data FROM frames WHERE id = $1`,
	"insert_doubt": `INSERT INTO doubts (id, owner_id, status, bookmarked, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"update_doubt": `UPDATE doubts SET status = $1, bookmarked = $2, data = $3 WHERE id = $4`,
	"get_doubt":    `SELECT data FROM doubts WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS frames (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	parent_id  TEXT,
	status     TEXT NOT NULL DEFAULT 'queued',
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_frames_owner ON frames(owner_id);
CREATE INDEX IF NOT EXISTS idx_frames_parent ON frames(parent_id);
CREATE INDEX IF NOT EXISTS idx_frames_status ON frames(status);

CREATE TABLE IF NOT EXISTS doubts (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	bookmarked BOOLEAN NOT NULL DEFAULT false,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_doubts_owner ON doubts(owner_id);
CREATE INDEX IF NOT EXISTS idx_doubts_status ON doubts(status);
CREATE INDEX IF NOT EXISTS idx_doubts_bookmarked ON doubts(owner_id, bookmarked);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateFrame(ctx context.Context, frame *model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal frame")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO frames (id, owner_id, kind, parent_id, status, data, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		frame.ID, frame.OwnerID, string(frame.Kind), nullIfEmpty(frame.ParentID), string(frame.Status), data, frame.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert frame %s", frame.ID)
}

func (s *PostgresStore) GetFrame(ctx context.Context, id string) (*model.Frame, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM frames WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get frame %s", id)
	}

	var f model.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal frame")
	}
	return &f, nil
}

func (s *PostgresStore) UpdateFrame(ctx context.Context, frame *model.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal frame")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE frames SET status = $1, data = $2 WHERE id = $3`,
		string(frame.Status), data, frame.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update frame %s", frame.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFrames(ctx context.Context, filter FrameFilter) ([]model.Frame, error) {
	query := `SELECT data FROM frames WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(` AND kind = $%d`, argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.ParentID != "" {
		query += fmt.Sprintf(` AND parent_id = $%d`, argIdx)
		args = append(args, filter.ParentID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list frames")
	}
	defer rows.Close()

	var frames []model.Frame
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan frame")
		}
		var f model.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal frame")
		}
		frames = append(frames, f)
	}
	return frames, eris.Wrap(rows.Err(), "postgres: list frames iterate")
}

func (s *PostgresStore) DeleteFrame(ctx context.Context, id string) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM frames WHERE id = $1 OR parent_id = $1`, id,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete frame %s", id)
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotFound
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateDoubt(ctx context.Context, doubt *model.Doubt) error {
	data, err := json.Marshal(doubt)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal doubt")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO doubts (id, owner_id, status, bookmarked, data, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		doubt.ID, doubt.OwnerID, string(doubt.Status), doubt.Bookmarked, data, doubt.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert doubt %s", doubt.ID)
}

func (s *PostgresStore) GetDoubt(ctx context.Context, id string) (*model.Doubt, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM doubts WHERE id = $1`, id).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get doubt %s", id)
	}

	var d model.Doubt
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal doubt")
	}
	return &d, nil
}

func (s *PostgresStore) UpdateDoubt(ctx context.Context, doubt *model.Doubt) error {
	data, err := json.Marshal(doubt)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal doubt")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE doubts SET status = $1, bookmarked = $2, data = $3 WHERE id = $4`,
		string(doubt.Status), doubt.Bookmarked, data, doubt.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update doubt %s", doubt.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListDoubts(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error) {
	query := `SELECT data FROM doubts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.OwnerID != "" {
		query += fmt.Sprintf(` AND owner_id = $%d`, argIdx)
		args = append(args, filter.OwnerID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Bookmarked != nil {
		query += fmt.Sprintf(` AND bookmarked = $%d`, argIdx)
		args = append(args, *filter.Bookmarked)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list doubts")
	}
	defer rows.Close()

	var doubts []model.Doubt
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan doubt")
		}
		var d model.Doubt
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal doubt")
		}
		doubts = append(doubts, d)
	}
	return doubts, eris.Wrap(rows.Err(), "postgres: list doubts iterate")
}

func (s *PostgresStore) DeleteDoubt(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM doubts WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete doubt %s", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
