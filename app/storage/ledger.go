package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ghizzi-eng/tg-downloader/pkg/filename"
	"github.com/ghizzi-eng/tg-downloader/pkg/mutex"
)

// ProgressLedger stores the last processed message id per (title, source).
// Every Record overwrites the previous value, order is not enforced.
type ProgressLedger struct {
	Dir string

	locks mutex.KeyedMutex
}

type progress struct {
	LastProcessedID int `json:"last_processed_id"`
}

func (l *ProgressLedger) Path(title, source string) string {
	return filepath.Join(l.Dir, filename.Clean(title)+"_"+filename.Clean(source)+".json")
}

func (l *ProgressLedger) Record(title, source string, messageID int) error {
	data, err := json.Marshal(progress{LastProcessedID: messageID})
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}

	path := l.Path(title, source)
	l.locks.Lock(path)
	defer l.locks.Unlock(path)

	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("creating task dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}

	return nil
}

// Read returns 0 when nothing usable is stored.
func (l *ProgressLedger) Read(title, source string) int {
	path := l.Path(title, source)
	l.locks.Lock(path)
	defer l.locks.Unlock(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var p progress
	if err := json.Unmarshal(data, &p); err != nil {
		return 0
	}

	return p.LastProcessedID
}
