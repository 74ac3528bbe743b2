package storage

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleMessages() []e.Message {
	return []e.Message{
		{ID: 1, ConversationID: -1001234, Text: "hello"},
		{
			ID:             2,
			ConversationID: -1001234,
			Caption:        "aula 1",
			Thread:         e.ThreadRef{ReplyToTopID: 10},
			Media: &e.Media{
				Kind:   e.MediaVideo,
				FileID: "5",
				Size:   500,
				Name:   "aula.mp4",
				Location: e.Location{
					ID:             5,
					AccessHash:     42,
					FileReference:  []byte{1, 2, 3},
					ConversationID: -1001234,
					MessageID:      2,
				},
			},
		},
		{ID: 3, ConversationID: -1001234, TopicCreated: &e.ForumTopic{ID: 3, Title: "Geral"}},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	store := NewCacheStore(discardLogger(), filepath.Join(t.TempDir(), "cache"))
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	msgs := sampleMessages()
	require.NoError(t, store.Save(-1001234, "Aula", msgs))

	snapshot, ok := store.Load(-1001234, "Aula")
	require.True(t, ok)

	assert.Equal(t, int64(-1001234), snapshot.ChatID)
	assert.Equal(t, "Aula", snapshot.ChatTitle)
	assert.Equal(t, 3, snapshot.TotalMessages)
	assert.Equal(t, int64(1700000000), snapshot.LastUpdated)
	assert.Equal(t, msgs, snapshot.Messages)
}

func TestCacheFileName(t *testing.T) {
	dir := t.TempDir()
	store := NewCacheStore(discardLogger(), dir)

	require.NoError(t, store.Save(-1001234, "Aula: parte/1", nil))

	_, err := os.Stat(filepath.Join(dir, "-1001234_Aula_ parte_1_cache.json"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCacheLoadMissing(t *testing.T) {
	store := NewCacheStore(discardLogger(), t.TempDir())

	snapshot, ok := store.Load(1, "nothing")
	assert.False(t, ok)
	assert.Nil(t, snapshot)
}

func TestCacheLoadRejectsForeignChat(t *testing.T) {
	dir := t.TempDir()
	store := NewCacheStore(discardLogger(), dir)

	require.NoError(t, store.Save(111, "Aula", sampleMessages()))

	// another chat whose path collides with the stored one
	require.NoError(t, os.Rename(store.Path(111, "Aula"), store.Path(222, "Aula")))

	_, ok := store.Load(222, "Aula")
	assert.False(t, ok)
}

func TestCacheLoadToleratesRename(t *testing.T) {
	dir := t.TempDir()
	store := NewCacheStore(discardLogger(), dir)

	require.NoError(t, store.Save(111, "Old", sampleMessages()))
	require.NoError(t, os.Rename(store.Path(111, "Old"), store.Path(111, "New")))

	snapshot, ok := store.Load(111, "New")
	require.True(t, ok)
	assert.Equal(t, "Old", snapshot.ChatTitle)
}

func TestCacheLoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	store := NewCacheStore(discardLogger(), dir)

	require.NoError(t, os.WriteFile(store.Path(7, "x"), []byte(`{"chat_id": 7, "messages": [`), 0o644))

	_, ok := store.Load(7, "x")
	assert.False(t, ok)
}

func TestLedgerOverwrites(t *testing.T) {
	ledger := &ProgressLedger{Dir: filepath.Join(t.TempDir(), "tasks")}

	for _, id := range []int{5, 12, 7} {
		require.NoError(t, ledger.Record("Aula", "-1001234", id))
	}

	assert.Equal(t, 7, ledger.Read("Aula", "-1001234"))
}

func TestLedgerConcurrentRecords(t *testing.T) {
	ledger := &ProgressLedger{Dir: t.TempDir()}

	var wg sync.WaitGroup
	for id := 1; id <= 20; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ledger.Record("Aula", "1", id))
		}()
	}
	wg.Wait()

	got := ledger.Read("Aula", "1")
	assert.True(t, got >= 1 && got <= 20, "unexpected marker %d", got)
}

func TestLedgerFormat(t *testing.T) {
	dir := t.TempDir()
	ledger := &ProgressLedger{Dir: dir}

	require.NoError(t, ledger.Record("Aula/1", "-1001234", 3))

	data, err := os.ReadFile(filepath.Join(dir, "Aula_1_-1001234.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"last_processed_id": 3}`, string(data))
}

func TestLedgerReadAbsentOrBroken(t *testing.T) {
	dir := t.TempDir()
	ledger := &ProgressLedger{Dir: dir}

	assert.Equal(t, 0, ledger.Read("none", "1"))

	require.NoError(t, os.WriteFile(ledger.Path("broken", "1"), []byte("not json"), 0o644))
	assert.Equal(t, 0, ledger.Read("broken", "1"))
}

func TestSQLiteSession(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user.session")

	db, err := NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)

	_, err = db.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, db.StoreSession(ctx, []byte("first")))
	require.NoError(t, db.StoreSession(ctx, []byte("second")))

	data, err := db.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
	require.NoError(t, db.Close())

	db, err = NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	defer db.Close()

	data, err = db.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestSQLiteRecreatesInvalidFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user.session")

	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("garbage!"), 512), 0o600))

	db, err := NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLiteRecreatesForeignSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user.session")

	db, err := NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	require.NoError(t, db.StoreSession(ctx, []byte("old")))
	_, err = db.db.ExecContext(ctx, "UPDATE version SET version = ?", SchemaVersion+1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestSQLiteRecreatesForeignSessionFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user.session")

	// layout of the session files written by the previous python tool
	foreign, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = foreign.ExecContext(ctx, `
		CREATE TABLE sessions (
			dc_id INTEGER PRIMARY KEY,
			api_id INTEGER,
			test_mode INTEGER,
			auth_key BLOB,
			date INTEGER NOT NULL,
			user_id INTEGER,
			is_bot INTEGER
		);
		CREATE TABLE version (number INTEGER PRIMARY KEY);
		INSERT INTO version VALUES (3);
		INSERT INTO sessions VALUES (2, 123, 0, x'00', 0, 42, 0);
	`)
	require.NoError(t, err)
	require.NoError(t, foreign.Close())

	db, err := NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, db.StoreSession(ctx, []byte("fresh")))
	data, err := db.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), data)
}

func TestSQLiteRecreatesForeignVersionTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "user.session")

	foreign, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = foreign.ExecContext(ctx, "CREATE TABLE version (number INTEGER); INSERT INTO version VALUES (3);")
	require.NoError(t, err)
	require.NoError(t, foreign.Close())

	db, err := NewSQLite(ctx, discardLogger(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.LoadSession(ctx)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRemoveSessionFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.session")

	for _, name := range []string{path, path + "-journal", path + "-wal"} {
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o600))
	}

	require.NoError(t, RemoveSessionFiles(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.NoError(t, RemoveSessionFiles(path))
}

func TestCleanSessions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "user.session")

	for _, name := range []string{
		"user.session", "user.session-journal", "old-user.session", "other.session-wal", "notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	removed, err := CleanSessions(path)
	require.NoError(t, err)
	assert.Contains(t, removed, path)
	assert.Contains(t, removed, filepath.Join(dir, "old-user.session"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())

	_, err = CleanSessions(path)
	assert.NoError(t, err)
}
