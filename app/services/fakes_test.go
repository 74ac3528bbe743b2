package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.BatchDelay = 0
	cfg.RetryDelay = 0
	cfg.ErrorDelay = 0
	cfg.CacheDir = dir + "/cache"
	cfg.TaskDir = dir + "/tasks"
	cfg.DownloadDir = dir + "/downloads"
	return cfg
}

func messageRange(from, to int) []e.Message {
	var msgs []e.Message
	for id := from; id <= to; id++ {
		msgs = append(msgs, e.Message{ID: id})
	}
	return msgs
}

func ids(msgs []e.Message) []int {
	result := make([]int, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, msg.ID)
	}
	return result
}

// fakeHistory serves an ascending message list the way the platform pages it.
type fakeHistory struct {
	msgs   []e.Message
	errs   map[int]error // by call number, starting at 1
	always error
	calls  int
	limits []int
}

func (f *fakeHistory) GetChatHistory(_ context.Context, _ int64, limit, offsetID int) ([]e.Message, error) {
	f.calls++
	f.limits = append(f.limits, limit)

	if f.always != nil {
		return nil, f.always
	}
	if err, ok := f.errs[f.calls]; ok {
		return nil, err
	}

	var page []e.Message
	for i := len(f.msgs) - 1; i >= 0 && len(page) < limit; i-- {
		if offsetID != 0 && f.msgs[i].ID >= offsetID {
			continue
		}
		page = append(page, f.msgs[i])
	}

	return page, nil
}

type fakeSnapshots struct {
	snapshot *e.Snapshot
	saved    []e.Message
	saveErr  error
}

func (f *fakeSnapshots) Save(chatID int64, title string, msgs []e.Message) error {
	f.saved = msgs
	return f.saveErr
}

func (f *fakeSnapshots) Load(chatID int64, title string) (*e.Snapshot, bool) {
	if f.snapshot == nil || f.snapshot.ChatID != chatID {
		return nil, false
	}
	return f.snapshot, true
}

type fixedPolicy struct {
	reuse bool
	asked int
}

func (p *fixedPolicy) ReuseSnapshot(context.Context, *e.Snapshot) bool {
	p.asked++
	return p.reuse
}

type fakeThreads struct {
	replies    []e.Message
	repliesErr error
	search     map[string][]e.Message
	searchErr  map[string]error
	queries    []string
}

func (f *fakeThreads) GetThreadReplies(context.Context, int64, int, int) ([]e.Message, error) {
	return f.replies, f.repliesErr
}

func (f *fakeThreads) SearchMessages(_ context.Context, _ int64, query string, _ int) ([]e.Message, error) {
	f.queries = append(f.queries, query)
	if err := f.searchErr[query]; err != nil {
		return nil, err
	}
	return f.search[query], nil
}

// fakeMedia writes as many bytes as the media declares. Files listed in fail
// get half of their bytes written before the download fails.
type fakeMedia struct {
	fail       map[string]bool
	downloaded []string
}

var errBroken = errors.New("connection reset")

func (f *fakeMedia) DownloadMedia(_ context.Context, media *e.Media, path string, progress func(current, total int64)) error {
	size := media.Size
	if f.fail[media.FileID] {
		size /= 2
	}

	if err := os.WriteFile(path, bytes.Repeat([]byte{1}, int(size)), 0o644); err != nil {
		return err
	}
	progress(size, media.Size)

	if f.fail[media.FileID] {
		return errBroken
	}

	f.downloaded = append(f.downloaded, media.FileID)
	return nil
}
