package services

import (
	"path/filepath"
	"strings"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/filename"
)

// UnknownExtension is used when the media does not declare a file name with
// an extension.
const UnknownExtension = "unknown"

// SyntheticPrefix starts the name of media without caption and declared name.
const SyntheticPrefix = "arquivo_"

// Target is where a media file lives on disk and how big it has to be there.
type Target struct {
	Path string
	Size int64
}

// TargetFor derives the local file of a media message. The same message and
// chat title always give the same target, so reruns agree on what is already
// downloaded.
func TargetFor(downloadDir, chatTitle string, msg *e.Message) Target {
	media := msg.Media

	var base string
	switch {
	case msg.Caption != "":
		base = filename.Clean(msg.Caption)
	case media.Name != "":
		base = filename.Clean(stem(media.Name))
	default:
		base = SyntheticPrefix + filename.Clean(media.FileID)
	}

	ext := UnknownExtension
	if i := strings.LastIndex(media.Name, "."); i >= 0 && i < len(media.Name)-1 {
		ext = filename.Clean(media.Name[i+1:])
	}

	if over := len(base) + 1 + len(ext) - filename.MaxLength; over > 0 {
		base = filename.Truncate(base, len(base)-over)
	}

	return Target{
		Path: filepath.Join(downloadDir, filename.Clean(chatTitle), base+"."+ext),
		Size: media.Size,
	}
}

func stem(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
