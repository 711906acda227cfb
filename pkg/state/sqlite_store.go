package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	groups "github.com/goliatone/go-groups"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists id lists in a SQLite database. Lists are stored as
// JSON arrays so null entries survive a round trip.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (and creates when missing) the database at path.
// Parent directories are created as needed and the schema is applied on open.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "state.sqlite")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("state: creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: opening database: %w", err)
	}
	// A single connection keeps :memory: databases and transactions coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("state: creating schema: %w", err)
	}

	logger.Info("SQLite group store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS group_ids (
			key        TEXT PRIMARY KEY,
			ids        TEXT NOT NULL,
			revision   INTEGER NOT NULL,
			extra      TEXT,
			updated_at TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, key string) (groups.IDList, Meta, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, Meta{}, false, err
	}

	var (
		rawIDs    string
		revision  int64
		rawExtra  sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT ids, revision, extra, updated_at FROM group_ids WHERE key = ?`, key,
	).Scan(&rawIDs, &revision, &rawExtra, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: query %q: %w", key, err)
	}

	var ids groups.IDList
	if err := json.Unmarshal([]byte(rawIDs), &ids); err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: decode ids for %q: %w", key, err)
	}
	meta := Meta{ETag: revisionETag(revision)}
	if rawExtra.Valid && rawExtra.String != "" {
		if err := json.Unmarshal([]byte(rawExtra.String), &meta.Extra); err != nil {
			return nil, Meta{}, false, fmt.Errorf("state: decode extra for %q: %w", key, err)
		}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		meta.UpdatedAt = parsed
	} else {
		s.logger.Warn("unparseable updated_at", "key", key, "value", updatedAt, "error", err)
	}
	return ids, meta, true, nil
}

// Save implements Store. The revision check and the write share one
// transaction.
func (s *SQLiteStore) Save(ctx context.Context, key string, ids groups.IDList, meta Meta) (Meta, error) {
	if err := validateKey(key); err != nil {
		return Meta{}, err
	}
	if ids == nil {
		ids = groups.IDList{}
	}
	rawIDs, err := json.Marshal(ids)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode ids for %q: %w", key, err)
	}
	var rawExtra sql.NullString
	if meta.Extra != nil {
		encoded, err := json.Marshal(meta.Extra)
		if err != nil {
			return Meta{}, fmt.Errorf("state: encode extra for %q: %w", key, err)
		}
		rawExtra = sql.NullString{String: string(encoded), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin: %w", err)
	}
	defer tx.Rollback()

	var current int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM group_ids WHERE key = ?`, key).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Meta{}, fmt.Errorf("state: query revision for %q: %w", key, err)
	}
	if err := checkRevision(meta.ETag, current); err != nil {
		s.logger.Warn("rejected stale save", "key", key, "expected", meta.ETag, "revision", current)
		return Meta{}, err
	}

	saved := cloneMeta(meta)
	saved.ETag = revisionETag(current + 1)
	if saved.UpdatedAt.IsZero() {
		saved.UpdatedAt = s.now().UTC()
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_ids (key, ids, revision, extra, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			ids = excluded.ids,
			revision = excluded.revision,
			extra = excluded.extra,
			updated_at = excluded.updated_at
	`, key, string(rawIDs), current+1, rawExtra, saved.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return Meta{}, fmt.Errorf("state: upsert %q: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit %q: %w", key, err)
	}

	s.logger.Debug("saved group ids", "key", key, "count", len(ids), "revision", current+1)
	return saved, nil
}

// Keys returns every stored key in ascending order.
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM group_ids ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("state: list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("state: scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
