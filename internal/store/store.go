// Package store persists the monitor's observational records in a single
// DuckDB file: news alerts, notification attempts, sentiment samples and the
// last-known portfolio.
//
// Writes are serialized through one mutex; reads go straight to the pool.
// Timestamps are stored as TIMESTAMPTZ in UTC. Every failure is returned with
// errors.ErrCodeStorageError.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// FileName is the database file created under the storage directory.
const FileName = "monitor.duckdb"

type Store struct {
	db   *sql.DB
	sq   squirrel.StatementBuilderType
	path string
	mu   sync.Mutex
}

var schema = []string{
	`CREATE SEQUENCE IF NOT EXISTS news_alert_id_seq`,
	`CREATE SEQUENCE IF NOT EXISTS notification_id_seq`,
	`CREATE SEQUENCE IF NOT EXISTS sentiment_id_seq`,
	`CREATE SEQUENCE IF NOT EXISTS portfolio_id_seq`,
	`CREATE TABLE IF NOT EXISTS news_alerts (
		id BIGINT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL,
		subject_tag TEXT,
		asset_symbol TEXT,
		sentiment TEXT NOT NULL,
		impact_score DOUBLE NOT NULL,
		headline TEXT NOT NULL,
		content_excerpt TEXT,
		action_taken TEXT NOT NULL,
		trade_executed BOOLEAN NOT NULL,
		trade_pair TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id BIGINT PRIMARY KEY,
		trade_id BIGINT,
		symbol TEXT,
		action TEXT NOT NULL,
		amount DOUBLE,
		price DOUBLE,
		profit_pct DOUBLE,
		profit_abs DOUBLE,
		notification_kind TEXT NOT NULL,
		channel TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL,
		payload_hash TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sentiment_samples (
		id BIGINT PRIMARY KEY,
		symbol TEXT NOT NULL,
		fear_greed DOUBLE,
		news_score DOUBLE,
		social_score DOUBLE,
		technical_score DOUBLE,
		volume_score DOUBLE,
		overall_score DOUBLE,
		confidence DOUBLE,
		sources_used TEXT,
		ts TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS portfolio_snapshots (
		id BIGINT PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		payload TEXT NOT NULL
	)`,
}

// Open opens (creating if needed) the database under dir. An empty dir opens
// an in-memory database.
func Open(dir string) (*Store, error) {
	path := ""

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageError, err, "failed to create storage directory %s", dir)
		}

		path = filepath.Join(dir, FileName)
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageError, "failed to open DuckDB connection", err)
	}

	s := &Store{
		db:   db,
		sq:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
		path: path,
		mu:   sync.Mutex{},
	}

	if err := s.migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(errors.ErrCodeStorageError, "failed to apply schema", err)
		}
	}

	return nil
}

// Path returns the database file, or "" when in memory.
func (s *Store) Path() string {
	return s.path
}

// Close releases database resources.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil

	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageError, "failed to close database", err)
	}

	return nil
}

// nextID draws from seq. Callers hold s.mu.
func (s *Store) nextID(seq string) (int64, error) {
	var id int64
	if err := s.db.QueryRow("SELECT nextval('" + seq + "')").Scan(&id); err != nil {
		return 0, errors.Wrapf(errors.ErrCodeStorageError, err, "failed to get next id from %s", seq)
	}

	return id, nil
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return errors.New(errors.ErrCodeStorageError, "store is closed")
	}

	return nil
}
