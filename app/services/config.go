package services

import (
	"context"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
)

// Config holds the settings shared by the collecting and downloading services.
type Config struct {
	// MaxMessages caps the number of messages collected from a flat history
	MaxMessages int

	// BatchSize is the page size of history requests
	BatchSize int

	// MaxRetries is how many times a failed history page is requested again
	MaxRetries int

	// ThreadLimit caps the number of replies requested for one thread
	ThreadLimit int

	// SearchLimit caps the results of one link pattern search
	SearchLimit int

	// BatchDelay is the pause between history pages
	BatchDelay time.Duration

	// RetryDelay is the pause before a failed history page is requested again
	RetryDelay time.Duration

	// ErrorDelay is the pause after a failed download
	ErrorDelay time.Duration

	// AcceptedMedia lists the media kinds to download, others are ignored
	AcceptedMedia map[e.MediaKind]bool

	CacheDir    string
	TaskDir     string
	DownloadDir string

	// Resume makes the downloader skip messages up to the stored progress
	// marker. Off by default, every run starts from the first message.
	Resume bool
}

func DefaultConfig() Config {
	accepted := make(map[e.MediaKind]bool, len(e.MediaKinds))
	for _, k := range e.MediaKinds {
		accepted[k] = true
	}

	return Config{
		MaxMessages:   50000,
		BatchSize:     100,
		MaxRetries:    5,
		ThreadLimit:   50000,
		SearchLimit:   100,
		BatchDelay:    time.Second,
		RetryDelay:    5 * time.Second,
		ErrorDelay:    time.Second,
		AcceptedMedia: accepted,
		CacheDir:      "cache",
		TaskDir:       "chat_download_task",
		DownloadDir:   "downloads",
	}
}

func (c Config) accepts(kind e.MediaKind) bool {
	return c.AcceptedMedia[kind]
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
