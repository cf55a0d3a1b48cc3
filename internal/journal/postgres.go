package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to connString and verifies the connection.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "journal: postgres parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "journal: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "journal: postgres ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS policy_changes (
	id         TEXT PRIMARY KEY,
	tribe_id   BIGINT NOT NULL,
	mode       TEXT NOT NULL,
	before     JSONB NOT NULL,
	after      JSONB NOT NULL,
	changed    JSONB NOT NULL,
	outcome    TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_policy_changes_tribe ON policy_changes(tribe_id, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "journal: postgres migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	enc, err := encode(e)
	if err != nil {
		return eris.Wrap(err, "journal: postgres record")
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx,
		`INSERT INTO policy_changes (id, tribe_id, mode, before, after, changed, outcome, message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.TribeID, e.Mode, enc.before, enc.after, enc.changed, string(e.Outcome), e.Message, e.CreatedAt,
	)
	return eris.Wrap(err, "journal: postgres insert")
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, tribe_id, mode, before, after, changed, outcome, message, created_at FROM policy_changes WHERE true`
	args := []any{}
	argIdx := 1

	if f.TribeID != 0 {
		query += fmt.Sprintf(` AND tribe_id = $%d`, argIdx)
		args = append(args, f.TribeID)
		argIdx++
	}
	if f.Outcome != "" {
		query += fmt.Sprintf(` AND outcome = $%d`, argIdx)
		args = append(args, string(f.Outcome))
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, f.limit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "journal: postgres list")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var before, after, changed []byte
		var outcome string
		if err := rows.Scan(&e.ID, &e.TribeID, &e.Mode, &before, &after, &changed, &outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "journal: postgres scan")
		}
		e.Outcome = Outcome(outcome)
		if err := decode(&e, before, after, changed); err != nil {
			return nil, eris.Wrap(err, "journal: postgres decode")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "journal: postgres rows")
}
