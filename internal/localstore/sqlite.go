package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/buddyinbox/internal/dbx"
	"github.com/dmitrijs2005/buddyinbox/internal/localstore/migrations"
	"github.com/pressly/goose/v3"
)

// SQLiteRepository implements Repository over the kv table.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RunMigrations applies the embedded schema. It is safe to run repeatedly.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate local store: %w", err)
	}
	return nil
}

// OpenSQLite opens (creating if needed) the store file at dsn and migrates it.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteRepository, error) {
	db, err := dbx.OpenSQLite(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewSQLiteRepository(db), nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get kv[%s]: %w", key, err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) (int64, error) {
	var rev int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if rev, err = nextRevision(ctx, tx); err != nil {
			return err
		}
		return upsert(ctx, tx, key, value, rev)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set kv[%s]: %w", key, err)
	}
	return rev, nil
}

// errUnchanged rolls back an Update whose func made no change.
var errUnchanged = errors.New("unchanged")

func nextRevision(ctx context.Context, tx dbx.DBTX) (int64, error) {
	var rev int64
	if err := tx.QueryRowContext(ctx, `UPDATE kv_seq SET rev = rev + 1 WHERE id = 1 RETURNING rev`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("next revision: %w", err)
	}
	return rev, nil
}

func upsert(ctx context.Context, tx dbx.DBTX, key string, value []byte, rev int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO kv (key, value, rev) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev
	`, key, value, rev)
	return err
}

// Update bumps the revision counter before reading, so the transaction
// holds the write lock for the whole read-modify-write and other
// processes wait on busy_timeout.
func (r *SQLiteRepository) Update(ctx context.Context, key string, fn UpdateFunc) (int64, bool, error) {
	var rev int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if rev, err = nextRevision(ctx, tx); err != nil {
			return err
		}

		var old []byte
		ok := true
		err = tx.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&old)
		if errors.Is(err, sql.ErrNoRows) {
			ok = false
		} else if err != nil {
			return err
		}

		next, changed, err := fn(old, ok)
		if err != nil {
			return err
		}
		if !changed {
			return errUnchanged
		}
		return upsert(ctx, tx, key, next, rev)
	})
	if errors.Is(err, errUnchanged) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to update kv[%s]: %w", key, err)
	}
	return rev, true, nil
}

func (r *SQLiteRepository) Apply(ctx context.Context, writes []Write) (map[string]int64, error) {
	revs := make(map[string]int64, len(writes))
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, w := range writes {
			if w.Delete {
				if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, w.Key); err != nil {
					return fmt.Errorf("delete %s: %w", w.Key, err)
				}
				delete(revs, w.Key)
				continue
			}
			rev, err := nextRevision(ctx, tx)
			if err != nil {
				return err
			}
			if err := upsert(ctx, tx, w.Key, w.Value, rev); err != nil {
				return fmt.Errorf("set %s: %w", w.Key, err)
			}
			revs[w.Key] = rev
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply kv batch: %w", err)
	}
	return revs, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete kv[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv`); err != nil {
		return fmt.Errorf("failed to clear kv: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) (map[string][]byte, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("failed to list kv: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]byte)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan kv row: %w", err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kv rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Revisions(ctx context.Context) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, rev FROM kv`)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var key string
		var rev int64
		if err := rows.Scan(&key, &rev); err != nil {
			return nil, fmt.Errorf("failed to scan revision row: %w", err)
		}
		result[key] = rev
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate revision rows: %w", err)
	}
	return result, nil
}
