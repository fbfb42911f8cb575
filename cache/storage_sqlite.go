package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteStorage struct {
	db           *sql.DB
	ctx          context.Context
	quota        int64
	queryTimeout time.Duration
}

var _ Storage = (*sqliteStorage)(nil)

// NewSQLiteStorage returns a Storage backed by SQLite.
// If path is empty or ":memory:", an in-memory database is used and nothing
// survives Close. A file path keeps entries across process restarts.
func NewSQLiteStorage(ctx context.Context, path string, opts ...Option) (Storage, error) {
	cfg := applyOptions(opts)
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %s", path)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "enable WAL")
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS cache_kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create cache_kv")
	}

	return &sqliteStorage{
		db:           db,
		ctx:          ctx,
		quota:        cfg.quota,
		queryTimeout: cfg.queryTimeout,
	}, nil
}

func (s *sqliteStorage) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = s.ctx
	}
	if s.queryTimeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, s.queryTimeout)
}

// classify marks errors by the cache taxonomy so callers can tell a full
// database from one that cannot be reached.
func (s *sqliteStorage) classify(err error, op string) error {
	var serr *sqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_FULL {
		return errors.Mark(errors.Wrap(err, op), ErrQuotaExceeded)
	}
	return errors.Mark(errors.Wrap(err, op), ErrStorageUnavailable)
}

func (s *sqliteStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	var data []byte
	err := s.db.QueryRowContext(qctx, `SELECT value FROM cache_kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.classify(err, "sqlite get")
	}
	return data, true, nil
}

func (s *sqliteStorage) Set(ctx context.Context, key string, value []byte) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	tx, err := s.db.BeginTx(qctx, nil)
	if err != nil {
		return s.classify(err, "sqlite begin")
	}
	defer tx.Rollback()

	if s.quota > 0 {
		var used int64
		if err := tx.QueryRowContext(qctx,
			`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM cache_kv WHERE key <> ?`, key,
		).Scan(&used); err != nil {
			return s.classify(err, "sqlite usage")
		}
		if used+int64(len(value)) > s.quota {
			return errors.Wrapf(ErrQuotaExceeded, "writing %d bytes to %s", len(value), key)
		}
	}

	if _, err := tx.ExecContext(qctx,
		`INSERT INTO cache_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	); err != nil {
		return s.classify(err, "sqlite set")
	}
	if err := tx.Commit(); err != nil {
		return s.classify(err, "sqlite commit")
	}
	return nil
}

func (s *sqliteStorage) Delete(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(qctx, `DELETE FROM cache_kv WHERE key = ?`, key); err != nil {
		return s.classify(err, "sqlite delete")
	}
	return nil
}

func (s *sqliteStorage) DeleteIf(ctx context.Context, key string, value []byte) (bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	res, err := s.db.ExecContext(qctx, `DELETE FROM cache_kv WHERE key = ? AND value = ?`, key, value)
	if err != nil {
		return false, s.classify(err, "sqlite delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.classify(err, "sqlite delete")
	}
	return n > 0, nil
}

func (s *sqliteStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	rows, err := s.db.QueryContext(qctx,
		`SELECT key FROM cache_kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`,
		prefix, prefix,
	)
	if err != nil {
		return nil, s.classify(err, "sqlite keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, s.classify(err, "sqlite keys")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, s.classify(err, "sqlite keys")
	}
	return keys, nil
}

func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
