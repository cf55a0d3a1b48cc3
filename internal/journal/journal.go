// Package journal persists a history of policy submissions made from this
// client: what was sent, what changed, and how the backend answered.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/genericsim/tribectl/internal/model"
)

// Outcome is the result of a submit attempt.
type Outcome string

const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Entry is one submit attempt.
type Entry struct {
	ID        string       `json:"id"`
	TribeID   int64        `json:"tribe_id"`
	Mode      string       `json:"mode"`
	Before    model.Policy `json:"before"`
	After     model.Policy `json:"after"`
	Changed   []string     `json:"changed"`
	Outcome   Outcome      `json:"outcome"`
	Message   string       `json:"message,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	TribeID int64
	Outcome Outcome
	Limit   int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}

// Store persists journal entries.
type Store interface {
	// Record assigns an ID and timestamp to e and stores it.
	Record(ctx context.Context, e *Entry) error
	// List returns entries newest first.
	List(ctx context.Context, f Filter) ([]Entry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns a store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		if dsn == "" {
			dsn = "tribectl.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("journal: unsupported driver %q", driver)
	}
}

type encodedEntry struct {
	before, after, changed []byte
}

func encode(e *Entry) (encodedEntry, error) {
	var enc encodedEntry
	var err error
	if enc.before, err = json.Marshal(e.Before); err != nil {
		return enc, eris.Wrap(err, "marshal before")
	}
	if enc.after, err = json.Marshal(e.After); err != nil {
		return enc, eris.Wrap(err, "marshal after")
	}
	changed := e.Changed
	if changed == nil {
		changed = []string{}
	}
	if enc.changed, err = json.Marshal(changed); err != nil {
		return enc, eris.Wrap(err, "marshal changed")
	}
	return enc, nil
}

func decode(e *Entry, before, after, changed []byte) error {
	if err := json.Unmarshal(before, &e.Before); err != nil {
		return eris.Wrap(err, "unmarshal before")
	}
	if err := json.Unmarshal(after, &e.After); err != nil {
		return eris.Wrap(err, "unmarshal after")
	}
	if err := json.Unmarshal(changed, &e.Changed); err != nil {
		return eris.Wrap(err, "unmarshal changed")
	}
	return nil
}
