package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

// Downloader stores every media attachment of a message sequence on disk. A
// file already present with the declared size is never downloaded again, so
// running it twice over the same messages downloads nothing the second time.
// Files are processed one by one; a failed file is removed and the run goes on.
type Downloader struct {
	Log      logger.Logger
	Config   Config
	Platform MediaPlatform

	// Ledger receives the id of every processed message
	Ledger ProgressLedger
}

// Report sums up a download run.
type Report struct {
	// Found is the number of messages carrying media
	Found int

	// Existing is the number of media already complete on disk before the run
	Existing int

	// Pending is Found minus Existing
	Pending int

	Downloaded int

	// Skipped counts media found complete while processing
	Skipped int

	Failed int

	// Ignored counts media of kinds that are not accepted
	Ignored int
}

// Run processes msgs in ascending id order. The returned error is only ever the
// context error; the report is valid up to the point of cancellation.
func (d *Downloader) Run(ctx context.Context, conv e.Conversation, msgs []e.Message) (Report, error) {
	log := d.Log.With("chat_id", conv.ID, "chat_title", conv.Title)
	source := strconv.FormatInt(conv.ID, 10)

	msgs = slices.Clone(msgs)
	slices.SortStableFunc(msgs, func(a, b e.Message) int { return a.ID - b.ID })

	var report Report
	for i := range msgs {
		if !msgs[i].HasMedia() {
			continue
		}

		report.Found++
		if d.complete(TargetFor(d.Config.DownloadDir, conv.Title, &msgs[i])) {
			report.Existing++
		}
	}
	report.Pending = report.Found - report.Existing

	log.Info("media found", "found", report.Found, "existing", report.Existing, "pending", report.Pending)

	resumeAfter := d.resumePoint(log, conv.Title, source)

	for i := range msgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		msg := &msgs[i]
		if msg.ID <= resumeAfter {
			continue
		}

		if msg.HasMedia() {
			if err := d.process(ctx, log, conv, msg, &report); err != nil {
				return report, err
			}
		}

		d.record(log, conv.Title, source, msg.ID)
	}

	log.Info("download finished",
		"downloaded", report.Downloaded,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"ignored", report.Ignored,
		"found", report.Found,
	)

	return report, nil
}

func (d *Downloader) process(ctx context.Context, log logger.Logger, conv e.Conversation, msg *e.Message, report *Report) error {
	media := msg.Media
	log = log.With("message_id", msg.ID, "kind", media.Kind)

	if !d.Config.accepts(media.Kind) {
		report.Ignored++
		log.Debug("media kind is not accepted, ignoring")
		return nil
	}

	target := TargetFor(d.Config.DownloadDir, conv.Title, msg)
	log = log.With("path", target.Path)

	if d.complete(target) {
		report.Skipped++
		log.Debug("file already complete")
		return nil
	}

	log.Info("downloading file",
		"progress", fmt.Sprintf("%d/%d", report.Downloaded+report.Failed+1, report.Pending),
		"size", target.Size,
	)

	start := time.Now()

	err := os.MkdirAll(filepath.Dir(target.Path), 0o755)
	if err == nil {
		err = d.Platform.DownloadMedia(ctx, media, target.Path, progressLogger(log))
	}
	if err != nil {
		if ctx.Err() != nil {
			_ = os.Remove(target.Path)
			return ctx.Err()
		}

		report.Failed++
		log.Error("downloading file", "error", err)

		if rmErr := os.Remove(target.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("removing partial file", "error", rmErr)
		}

		return sleep(ctx, d.Config.ErrorDelay)
	}

	report.Downloaded++
	log.Info("file downloaded", "took", time.Since(start).Round(100*time.Millisecond))

	return nil
}

// complete tells whether the target exists with exactly the expected size.
func (d *Downloader) complete(t Target) bool {
	info, err := os.Stat(t.Path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() == t.Size
}

func (d *Downloader) resumePoint(log logger.Logger, title, source string) int {
	if d.Ledger == nil {
		return 0
	}

	last := d.Ledger.Read(title, source)
	if last <= 0 {
		return 0
	}

	if !d.Config.Resume {
		log.Info("previous progress found, starting over", "last_processed_id", last)
		return 0
	}

	log.Info("resuming after previous progress", "last_processed_id", last)
	return last
}

func (d *Downloader) record(log logger.Logger, title, source string, messageID int) {
	if d.Ledger == nil {
		return
	}

	if err := d.Ledger.Record(title, source, messageID); err != nil {
		log.Warn("recording progress", "message_id", messageID, "error", err)
	}
}

// progressLogger reports the transfer of one file every quarter.
func progressLogger(log logger.Logger) func(current, total int64) {
	next := int64(25)

	return func(current, total int64) {
		if total <= 0 {
			return
		}

		pct := current * 100 / total
		if pct < next {
			return
		}

		log.Debug("download progress", "percent", pct, "bytes", current, "total", total)
		for next <= pct {
			next += 25
		}
	}
}

type MediaPlatform interface {
	DownloadMedia(ctx context.Context, media *e.Media, path string, progress func(current, total int64)) error
}

type ProgressLedger interface {
	Record(title, source string, messageID int) error
	Read(title, source string) int
}
