package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// DownloadMedia writes the file of media to path, reporting the bytes written
// so far to progress. File references expire after a while, an expired one is
// refreshed by reading the message again.
func (s *Session) DownloadMedia(ctx context.Context, media *e.Media, path string, progress func(current, total int64)) error {
	if err := validLocation(media); err != nil {
		return err
	}

	err := s.download(ctx, media, path, progress)
	if err == nil || !tgerr.Is(err, "FILE_REFERENCE_EXPIRED", "FILE_REFERENCE_INVALID") {
		return err
	}

	s.log.Debug("file reference expired, refreshing", "message_id", media.Location.MessageID)

	msg, getErr := s.GetMessage(ctx, media.Location.ConversationID, media.Location.MessageID)
	if getErr != nil {
		return fmt.Errorf("refreshing file reference: %w", getErr)
	}
	if msg == nil || msg.Media == nil {
		return fmt.Errorf("refreshing file reference: %w", err)
	}

	media.Location.FileReference = msg.Media.Location.FileReference

	return s.download(ctx, media, path, progress)
}

func (s *Session) download(ctx context.Context, media *e.Media, path string, progress func(current, total int64)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	w := &progressWriter{w: f, total: media.Size, progress: progress}

	err = s.call(ctx, "upload.getFile", func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		if err := f.Truncate(0); err != nil {
			return err
		}
		w.written = 0

		_, err := s.dl.Download(s.api, fileLocation(media)).Stream(ctx, w)
		return err
	})

	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("closing file: %w", closeErr)
	}

	return nil
}

func fileLocation(media *e.Media) tg.InputFileLocationClass {
	loc := media.Location

	if media.Kind == e.MediaPhoto {
		return &tg.InputPhotoFileLocation{
			ID:            loc.ID,
			AccessHash:    loc.AccessHash,
			FileReference: loc.FileReference,
			ThumbSize:     loc.ThumbSize,
		}
	}

	return &tg.InputDocumentFileLocation{
		ID:            loc.ID,
		AccessHash:    loc.AccessHash,
		FileReference: loc.FileReference,
	}
}

type progressWriter struct {
	w        io.Writer
	written  int64
	total    int64
	progress func(current, total int64)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)

	if p.progress != nil {
		p.progress(p.written, p.total)
	}

	return n, err
}

var errNoLocation = errors.New("media has no file location")

func validLocation(media *e.Media) error {
	if media == nil || media.Location.ID == 0 {
		return errNoLocation
	}
	return nil
}
