package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
	"github.com/gotd/td/session"
	"github.com/mattn/go-sqlite3"
)

// SchemaVersion is bumped whenever init.sql changes incompatibly. A session
// file with another version is discarded.
const SchemaVersion = 1

// SQLite keeps the MTProto session of the user account.
type SQLite struct {
	db  *sql.DB
	log logger.Logger
}

// NewSQLite opens the session database at filePath. A file that is not a
// database, is corrupted or carries a foreign schema is removed and recreated;
// the user simply has to log in again.
func NewSQLite(ctx context.Context, log logger.Logger, filePath string) (*SQLite, error) {
	client, err := openSQLite(ctx, log, filePath)
	if err == nil {
		return client, nil
	}

	if !isInvalidDatabase(err) {
		return nil, err
	}

	log.Warn("session file is invalid, starting a new session", "path", filePath, "error", err)

	if err := RemoveSessionFiles(filePath); err != nil {
		return nil, fmt.Errorf("removing invalid session: %w", err)
	}

	return openSQLite(ctx, log, filePath)
}

var errSchemaMismatch = errors.New("session schema version mismatch")

func openSQLite(ctx context.Context, log logger.Logger, filePath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", filePath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite3 database: %w", err)
	}

	client := &SQLite{
		db:  db,
		log: log,
	}

	err = client.init(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing sqlite3 database: %w", err)
	}

	return client, nil
}

func (c *SQLite) Close() error {
	return c.db.Close()
}

// LoadSession implements session.Storage.
func (c *SQLite) LoadSession(ctx context.Context) ([]byte, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, "SELECT data FROM sessions WHERE id = 1").Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrNotFound
		}

		return nil, fmt.Errorf("reading session: %w", err)
	}

	if len(data) == 0 {
		return nil, session.ErrNotFound
	}

	return data, nil
}

// StoreSession implements session.Storage.
func (c *SQLite) StoreSession(ctx context.Context, data []byte) error {
	_, err := c.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, data, updated_at)
			VALUES (1, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(id) DO UPDATE
			    SET data = ?, updated_at = CURRENT_TIMESTAMP`,
		data, data,
	)
	if err != nil {
		return fmt.Errorf("writing session: %w", err)
	}

	return nil
}

// RemoveSessionFiles deletes the session database together with the journal
// files sqlite may have left next to it. Missing files are not an error.
func RemoveSessionFiles(filePath string) error {
	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		err := os.Remove(filePath + suffix)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", filePath+suffix, err)
		}
	}

	return nil
}

// CleanSessions removes the session at filePath and every other session file
// (`*.session*`) in its directory, including the ones left by other clients.
// It returns the removed paths.
func CleanSessions(filePath string) ([]string, error) {
	if err := RemoveSessionFiles(filePath); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(filePath), "*.session*"))
	if err != nil {
		return nil, fmt.Errorf("listing session files: %w", err)
	}

	removed := []string{filePath}
	for _, path := range matches {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("removing %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	return removed, nil
}

//go:embed init.sql
var initQuery string

// schemaColumns lists the columns every table of init.sql must have. A file
// whose tables lack them was written by another program.
var schemaColumns = map[string][]string{
	"sessions": {"id", "data", "updated_at"},
	"version":  {"version"},
}

func (c *SQLite) init(ctx context.Context) error {
	if err := c.checkSchema(ctx); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx, initQuery)
	if err != nil {
		return err
	}

	var version int
	err = c.db.QueryRowContext(ctx, "SELECT version FROM version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = c.db.ExecContext(ctx, "INSERT INTO version (version) VALUES (?)", SchemaVersion)
		return err
	}
	if err != nil {
		return err
	}

	if version != SchemaVersion {
		return fmt.Errorf("%w: have %d, want %d", errSchemaMismatch, version, SchemaVersion)
	}

	return nil
}

func (c *SQLite) checkSchema(ctx context.Context) error {
	for table, want := range schemaColumns {
		rows, err := c.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
		if err != nil {
			return fmt.Errorf("reading columns of %s: %w", table, err)
		}

		have := make(map[string]bool)
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				_ = rows.Close()
				return fmt.Errorf("reading columns of %s: %w", table, err)
			}
			have[name] = true
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return fmt.Errorf("reading columns of %s: %w", table, err)
		}

		// missing tables are created by init.sql
		if len(have) == 0 {
			continue
		}

		for _, col := range want {
			if !have[col] {
				return fmt.Errorf("%w: table %s has no column %s", errSchemaMismatch, table, col)
			}
		}
	}

	return nil
}

func isInvalidDatabase(err error) bool {
	if errors.Is(err, errSchemaMismatch) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrNotADB || sqliteErr.Code == sqlite3.ErrCorrupt
	}

	return false
}
