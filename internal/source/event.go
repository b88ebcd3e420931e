package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/runger/flare/internal/errs"
)

// maxEvents caps the tiles produced by one event query.
const maxEvents = 10

// Event is one calendar entry.
type Event struct {
	Title    string
	Start    time.Time
	End      time.Time
	Location string
	URL      string
}

// EventStore is the calendar database read by event sources. A calendar sync
// tool populates it; flare only reads, except for Add which tests and imports use.
type EventStore struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// OpenEventStore opens (creating if needed) the calendar database at path.
func OpenEventStore(path string) (*EventStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(errs.DirCreate, "failed to create event database directory", err)
	}

	// modernc.org/sqlite uses _pragma=name(value) syntax
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.FileRead, "failed to open event database", err)
	}
	db.SetMaxOpenConns(1)

	store := &EventStore{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.FileParse, "failed to prepare event database", err)
	}
	return store, nil
}

func (s *EventStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT    NOT NULL,
			start_time INTEGER NOT NULL,
			end_time   INTEGER NOT NULL,
			location   TEXT    NOT NULL DEFAULT '',
			url        TEXT    NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_time);
	`)
	return err
}

// Add inserts an event.
func (s *EventStore) Add(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, start_time, end_time, location, url) VALUES (?, ?, ?, ?, ?)`,
		ev.Title, ev.Start.Unix(), ev.End.Unix(), ev.Location, ev.URL)
	if err != nil {
		return errs.Wrap(errs.FileWrite, "failed to insert event", err)
	}
	return nil
}

// Upcoming returns events overlapping [from, to] whose title contains filter,
// ordered by start time.
func (s *EventStore) Upcoming(ctx context.Context, from, to time.Time, filter string) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, start_time, end_time, location, url
		FROM events
		WHERE end_time >= ? AND start_time <= ? AND title LIKE ?
		ORDER BY start_time
		LIMIT ?`,
		from.Unix(), to.Unix(), "%"+filter+"%", maxEvents)
	if err != nil {
		return nil, errs.Wrap(errs.FileRead, "failed to query events", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var start, end int64
		if err := rows.Scan(&ev.Title, &start, &end, &ev.Location, &ev.URL); err != nil {
			return nil, errs.Wrap(errs.FileParse, "failed to scan event", err)
		}
		ev.Start = time.Unix(start, 0)
		ev.End = time.Unix(end, 0)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.FileRead, "failed to read events", err)
	}
	return out, nil
}

// Close closes the database. It is safe to call Close multiple times.
func (s *EventStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// EventSource lists upcoming calendar events. A source built from a path
// opens its database on the first query and owns it; an open failure is
// reported as that query's error and retried on the next one.
type EventSource struct {
	path      string
	lookahead time.Duration
	now       func() time.Time

	mu    sync.Mutex
	store *EventStore
	owned bool
}

// NewEventSource reads events starting within lookahead from an open store.
// The caller keeps ownership of store.
func NewEventSource(store *EventStore, lookahead time.Duration) *EventSource {
	return &EventSource{store: store, lookahead: lookahead, now: time.Now}
}

// NewEventSourceAt reads events from the database at path, opened on first use.
func NewEventSourceAt(path string, lookahead time.Duration) *EventSource {
	return &EventSource{path: path, lookahead: lookahead, now: time.Now}
}

func (e *EventSource) open() (*EventStore, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.store != nil {
		return e.store, nil
	}
	store, err := OpenEventStore(e.path)
	if err != nil {
		return nil, err
	}
	e.store, e.owned = store, true
	return store, nil
}

// Close closes the database if this source opened it.
func (e *EventSource) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.owned || e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *EventSource) Produce(ctx context.Context, req Request) ([]Item, error) {
	store, err := e.open()
	if err != nil {
		return nil, err
	}
	now := e.now()
	events, err := store.Upcoming(ctx, now, now.Add(e.lookahead), strings.TrimSpace(req.Keyword))
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(events))
	for _, ev := range events {
		sub := ev.Start.Format("Mon 15:04") + " – " + ev.End.Format("15:04")
		if ev.Location != "" {
			sub += " · " + ev.Location
		}
		items = append(items, Item{
			Title:    ev.Title,
			Subtitle: sub,
			Exec:     ev.URL,
		})
	}
	return items, nil
}
