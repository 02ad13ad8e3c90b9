package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/nhle/kanban/internal/gateway"
)

// DefaultPollInterval is how often subscriptions check for writes made by
// other processes.
const DefaultPollInterval = 2 * time.Second

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db           *sqlx.DB
	pollInterval time.Duration
	logger       log.FieldLogger

	mu    gosync.Mutex
	feeds map[*feed]struct{}
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithPollInterval sets how often subscriptions poll for foreign writes.
func WithPollInterval(d time.Duration) Option {
	return func(s *SQLiteStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.FieldLogger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode so readers in other processes don't block writers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:           db,
		pollInterval: DefaultPollInterval,
		logger:       log.StandardLogger(),
		feeds:        make(map[*feed]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithField("backend", "sqlite")

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close stops every live subscription and closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	feeds := make([]*feed, 0, len(s.feeds))
	for f := range s.feeds {
		feeds = append(feeds, f)
	}
	s.mu.Unlock()

	for _, f := range feeds {
		f.Unsubscribe()
	}
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
		s.logger.WithField("version", m.version).Debug("migration applied")
	}

	return nil
}

// docRow is one row of the documents table.
type docRow struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

func (r docRow) document() (gateway.Document, error) {
	data := make(map[string]any)
	if err := sonic.UnmarshalString(r.Data, &data); err != nil {
		return gateway.Document{}, fmt.Errorf("decoding document %s: %w", r.ID, err)
	}
	return gateway.Document{ID: r.ID, Data: data}, nil
}

// Create stores a new document under a random id.
func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	body, err := sonic.MarshalString(fields)
	if err != nil {
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: fmt.Errorf("encoding document: %w", err)}
	}

	err = s.write(ctx, collection, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
			collection, id, body,
		)
		return err
	})
	if err != nil {
		return "", &gateway.WriteError{Op: "create", Collection: collection, Err: err}
	}
	return id, nil
}

// Put writes a document under id, replacing any existing body.
func (s *SQLiteStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	body, err := sonic.MarshalString(fields)
	if err != nil {
		return &gateway.WriteError{Op: "put", Collection: collection, ID: id, Err: fmt.Errorf("encoding document: %w", err)}
	}

	err = s.write(ctx, collection, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET
				data = excluded.data,
				updated_at = CURRENT_TIMESTAMP`,
			collection, id, body,
		)
		return err
	})
	if err != nil {
		return &gateway.WriteError{Op: "put", Collection: collection, ID: id, Err: err}
	}
	return nil
}

// Update merges fields into an existing document.
func (s *SQLiteStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	err := s.write(ctx, collection, func(tx *sqlx.Tx) error {
		var row docRow
		err := tx.GetContext(ctx, &row,
			`SELECT id, data FROM documents WHERE collection = ? AND id = ?`,
			collection, id,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return gateway.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}

		doc, err := row.document()
		if err != nil {
			return err
		}
		for k, v := range fields {
			doc.Data[k] = v
		}
		body, err := sonic.MarshalString(doc.Data)
		if err != nil {
			return fmt.Errorf("encoding document: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE documents SET data = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE collection = ? AND id = ?`,
			body, collection, id,
		)
		return err
	})
	if err != nil {
		return &gateway.WriteError{Op: "update", Collection: collection, ID: id, Err: err}
	}
	return nil
}

// Delete removes a document.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	err := s.write(ctx, collection, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM documents WHERE collection = ? AND id = ?`,
			collection, id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return gateway.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return &gateway.WriteError{Op: "delete", Collection: collection, ID: id, Err: err}
	}
	return nil
}

// GetAll returns every document in the collection, ordered by id.
func (s *SQLiteStore) GetAll(ctx context.Context, collection string) ([]gateway.Document, error) {
	return s.query(ctx, collection, "")
}

// CollectionVersion returns the write counter for collection.
func (s *SQLiteStore) CollectionVersion(ctx context.Context, collection string) (int64, error) {
	var v int64
	err := s.db.GetContext(ctx, &v,
		`SELECT COALESCE(MAX(version), 0) FROM collection_versions WHERE collection = ?`,
		collection,
	)
	if err != nil {
		return 0, fmt.Errorf("reading version of %s: %w", collection, err)
	}
	return v, nil
}

// query loads a collection ordered by orderField, then id. Documents missing
// the field sort first, numbers before strings.
func (s *SQLiteStore) query(ctx context.Context, collection, orderField string) ([]gateway.Document, error) {
	q := `SELECT id, data FROM documents WHERE collection = ?`
	args := []any{collection}
	if orderField != "" {
		q += ` ORDER BY json_extract(data, ?), id`
		args = append(args, jsonPath(orderField))
	} else {
		q += ` ORDER BY id`
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("querying %s: %w", collection, err)
	}

	docs := make([]gateway.Document, 0, len(rows))
	for _, r := range rows {
		doc, err := r.document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// write runs fn in a transaction, bumps the collection version and wakes
// local subscribers.
func (s *SQLiteStore) write(ctx context.Context, collection string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_versions (collection, version) VALUES (?, 1)
		ON CONFLICT (collection) DO UPDATE SET version = version + 1`,
		collection,
	)
	if err != nil {
		return fmt.Errorf("bumping version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	s.trigger(collection)
	return nil
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}
