package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "journal: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "journal: sqlite exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS policy_changes (
	id         TEXT PRIMARY KEY,
	tribe_id   INTEGER NOT NULL,
	mode       TEXT NOT NULL,
	before     TEXT NOT NULL,
	after      TEXT NOT NULL,
	changed    TEXT NOT NULL,
	outcome    TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_policy_changes_tribe ON policy_changes(tribe_id, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "journal: sqlite migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	enc, err := encode(e)
	if err != nil {
		return eris.Wrap(err, "journal: sqlite record")
	}
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO policy_changes (id, tribe_id, mode, before, after, changed, outcome, message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TribeID, e.Mode, string(enc.before), string(enc.after), string(enc.changed),
		string(e.Outcome), e.Message, e.CreatedAt,
	)
	return eris.Wrap(err, "journal: sqlite insert")
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, tribe_id, mode, before, after, changed, outcome, message, created_at
		FROM policy_changes WHERE 1=1`
	var args []any
	if f.TribeID != 0 {
		query += ` AND tribe_id = ?`
		args = append(args, f.TribeID)
	}
	if f.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, string(f.Outcome))
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, f.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "journal: sqlite list")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var e Entry
		var before, after, changed string
		if err := rows.Scan(&e.ID, &e.TribeID, &e.Mode, &before, &after, &changed, &e.Outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "journal: sqlite scan")
		}
		if err := decode(&e, []byte(before), []byte(after), []byte(changed)); err != nil {
			return nil, eris.Wrap(err, "journal: sqlite decode")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "journal: sqlite rows")
}
