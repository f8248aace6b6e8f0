// Copyright 2026 The Satchel Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/satchel-foundation/satchel/lib/clock"
)

// sqliteSchema holds entries plus a changelog. The changelog is the
// cross-process notification channel: every writer appends a row, and
// every tab's poller tails rows with seq greater than its own
// position. The changelog is pruned behind the oldest plausible
// reader window; a tab that falls further behind simply re-reads
// current state, which is safe because events carry keys, not values.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS changes (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL,
	op  INTEGER NOT NULL
);
`

// changelogWindow is how many changelog rows are retained behind the
// newest. 4096 covers any realistic burst between two polls.
const changelogWindow = 4096

// defaultPollInterval is the changelog poll cadence when the config
// does not specify one.
const defaultPollInterval = 250 * time.Millisecond

// SQLiteConfig holds the parameters for opening the durable medium.
type SQLiteConfig struct {
	// Path is the database file path. The parent directory must
	// exist. Every tab of an installation opens the same path.
	Path string

	// PoolSize is the connection pool size. Zero means
	// max(NumCPU, 4). SQLite serializes writes regardless; extra
	// connections serve concurrent readers.
	PoolSize int

	// PollInterval is the changelog poll cadence. Zero means the
	// default (250ms). Negative disables the poller entirely;
	// subscribers then only see events via CheckNow.
	PollInterval time.Duration

	// Clock drives the poll ticker. Nil means the real clock.
	Clock clock.Clock

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// SQLite is the durable Medium: a WAL-mode SQLite database shared by
// all tabs of an installation. Safe for concurrent use.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	clk    clock.Clock
	path   string

	mu          sync.Mutex
	subscribers map[int]func(Event)
	nextID      int
	lastSeq     int64
	closed      bool

	stopPoll chan struct{}
	pollDone chan struct{}
}

// OpenSQLite opens (creating if necessary) the durable medium at
// cfg.Path and starts the changelog poller. The caller must Close it.
func OpenSQLite(cfg SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage: sqlite path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
		if poolSize < 4 {
			poolSize = 4
		}
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", cfg.Path, err)
	}

	medium := &SQLite{
		pool:        pool,
		logger:      logger,
		clk:         clk,
		path:        cfg.Path,
		subscribers: make(map[int]func(Event)),
		stopPoll:    make(chan struct{}),
		pollDone:    make(chan struct{}),
	}

	// Start tailing the changelog at its current tip: a fresh tab
	// must not replay history as notifications.
	if err := medium.initLastSeq(); err != nil {
		pool.Close()
		return nil, err
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	if interval > 0 {
		go medium.pollLoop(interval)
	} else {
		close(medium.pollDone)
	}

	logger.Info("durable medium opened", "path", cfg.Path, "pool_size", poolSize)
	return medium, nil
}

// Get returns the value for key.
func (s *SQLite) Get(key string) ([]byte, bool, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, false, fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var value []byte
	var found bool
	err = sqlitex.Execute(conn, `SELECT value FROM entries WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			value = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, value)
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %q: %w", key, err)
	}
	return value, found, nil
}

// Set stores value under key and appends a changelog row.
func (s *SQLite) Set(key string, value []byte) error {
	return s.write(key, value, OpSet)
}

// Remove deletes key and appends a changelog row.
func (s *SQLite) Remove(key string) error {
	return s.write(key, nil, OpRemove)
}

func (s *SQLite) write(key string, value []byte, op Op) (err error) {
	conn, takeErr := s.pool.Take(context.Background())
	if takeErr != nil {
		return fmt.Errorf("storage: take connection: %w", takeErr)
	}
	defer s.pool.Put(conn)

	defer sqlitex.Save(conn)(&err)

	switch op {
	case OpSet:
		err = sqlitex.Execute(conn,
			`INSERT INTO entries (key, value) VALUES (?, ?)
			 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
			&sqlitex.ExecOptions{Args: []any{key, value}})
	case OpRemove:
		err = sqlitex.Execute(conn, `DELETE FROM entries WHERE key = ?`,
			&sqlitex.ExecOptions{Args: []any{key}})
	}
	if err != nil {
		return fmt.Errorf("storage: %s %q: %w", op, key, err)
	}

	err = sqlitex.Execute(conn, `INSERT INTO changes (key, op) VALUES (?, ?)`,
		&sqlitex.ExecOptions{Args: []any{key, int64(op)}})
	if err != nil {
		return fmt.Errorf("storage: appending changelog for %q: %w", key, err)
	}
	return nil
}

// Keys returns all keys with the given prefix, sorted.
func (s *SQLite) Keys(prefix string) ([]string, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var keys []string
	err = sqlitex.Execute(conn,
		`SELECT key FROM entries WHERE key >= ? AND key < ? || x'ff' ORDER BY key`,
		&sqlitex.ExecOptions{
			Args: []any{prefix, prefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				keys = append(keys, stmt.ColumnText(0))
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("storage: scanning prefix %q: %w", prefix, err)
	}
	return keys, nil
}

// Subscribe registers a change handler. Events are delivered from the
// poll goroutine (or from the goroutine calling CheckNow), in
// changelog order.
func (s *SQLite) Subscribe(handler func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = handler

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// CheckNow drains the changelog immediately instead of waiting for
// the next poll tick. The explicit-trigger path and the ticker path
// produce identical event delivery.
func (s *SQLite) CheckNow() error {
	return s.drainChangelog()
}

// Close stops the poller and closes the pool. Blocks until borrowed
// connections are returned.
func (s *SQLite) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.stopPoll)
	<-s.pollDone

	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("storage: closing %s: %w", s.path, err)
	}
	s.logger.Info("durable medium closed", "path", s.path)
	return nil
}

// initLastSeq positions the changelog cursor at the current tip.
func (s *SQLite) initLastSeq() error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `SELECT COALESCE(MAX(seq), 0) FROM changes`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			s.lastSeq = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("storage: reading changelog position: %w", err)
	}
	return nil
}

func (s *SQLite) pollLoop(interval time.Duration) {
	defer close(s.pollDone)

	ticker := s.clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPoll:
			return
		case <-ticker.C:
			if err := s.drainChangelog(); err != nil {
				s.logger.Debug("changelog poll failed", "error", err)
			}
		}
	}
}

// drainChangelog reads changelog rows past the cursor, advances the
// cursor, prunes old rows, and dispatches events in order. Serialized
// by the cursor mutex so a poll tick and a CheckNow cannot deliver the
// same event twice.
func (s *SQLite) drainChangelog() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	// The connection is returned before dispatch: handlers re-read
	// entries through this same medium and must be able to take a
	// connection even from a single-connection pool.
	events, err := s.readChangelogLocked()
	if err != nil {
		return err
	}

	handlers := make([]func(Event), 0, len(s.subscribers))
	for _, handler := range s.subscribers {
		handlers = append(handlers, handler)
	}

	for _, event := range events {
		dispatch(handlers, event)
	}
	return nil
}

func (s *SQLite) readChangelogLocked() ([]Event, error) {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	var events []Event
	newLast := s.lastSeq
	err = sqlitex.Execute(conn,
		`SELECT seq, key, op FROM changes WHERE seq > ? ORDER BY seq`,
		&sqlitex.ExecOptions{
			Args: []any{s.lastSeq},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				newLast = stmt.ColumnInt64(0)
				events = append(events, Event{
					Key: stmt.ColumnText(1),
					Op:  Op(stmt.ColumnInt64(2)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("storage: reading changelog: %w", err)
	}
	s.lastSeq = newLast

	if len(events) > 0 && newLast > changelogWindow {
		pruneErr := sqlitex.Execute(conn, `DELETE FROM changes WHERE seq <= ?`,
			&sqlitex.ExecOptions{Args: []any{newLast - changelogWindow}})
		if pruneErr != nil {
			s.logger.Debug("changelog prune failed", "error", pruneErr)
		}
	}
	return events, nil
}

// prepareConnection applies the standard pragmas and creates the
// schema. WAL keeps readers and the single writer out of each other's
// way, which matters here because every tab polls while any tab may
// write.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=OFF",
		"PRAGMA cache_size=-8192",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("storage: creating schema: %w", err)
	}
	return nil
}
