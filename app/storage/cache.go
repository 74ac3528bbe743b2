package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/filename"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

// CacheStore keeps one history snapshot per conversation on disk.
type CacheStore struct {
	Dir string
	Log logger.Logger

	now func() time.Time
}

func NewCacheStore(log logger.Logger, dir string) *CacheStore {
	return &CacheStore{
		Dir: dir,
		Log: log,
		now: time.Now,
	}
}

func (s *CacheStore) Path(chatID int64, title string) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d_%s_cache.json", chatID, filename.Clean(title)))
}

// Save writes the snapshot through a temporary file renamed into place, so a
// reader never sees a partial snapshot.
func (s *CacheStore) Save(chatID int64, title string, msgs []e.Message) error {
	if msgs == nil {
		msgs = []e.Message{}
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}

	snapshot := e.Snapshot{
		ChatID:        chatID,
		ChatTitle:     title,
		TotalMessages: len(msgs),
		LastUpdated:   now().Unix(),
		Messages:      msgs,
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := s.Path(chatID, title)

	tmp, err := os.CreateTemp(s.Dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	s.Log.Info("history cached", "chat_id", chatID, "messages", len(msgs), "path", path)

	return nil
}

// Load returns the stored snapshot of the conversation. A missing, unreadable
// or foreign snapshot is reported as absent.
func (s *CacheStore) Load(chatID int64, title string) (*e.Snapshot, bool) {
	path := s.Path(chatID, title)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.Log.Warn("reading cache", "path", path, "error", err)
		}
		return nil, false
	}

	var snapshot e.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.Log.Warn("cache is corrupted, ignoring", "path", path, "error", err)
		return nil, false
	}

	if snapshot.ChatID != chatID {
		s.Log.Warn("cache belongs to another chat, ignoring",
			"path", path,
			"want_chat_id", chatID,
			"got_chat_id", snapshot.ChatID,
		)
		return nil, false
	}

	if snapshot.ChatTitle != title {
		s.Log.Debug("cached chat title differs", "cached", snapshot.ChatTitle, "current", title)
	}

	return &snapshot, true
}
