package entities

import (
	"fmt"
	"strings"
)

// Media is an attachment of a message. Kind tells which of the variants it is;
// a message never carries more than one.
type Media struct {
	Kind     MediaKind `json:"kind"`
	FileID   string    `json:"file_id"`
	Size     int64     `json:"file_size"`           // declared size in bytes, 0 if unknown
	Name     string    `json:"file_name,omitempty"` // declared file name, may be empty
	MimeType string    `json:"mime_type,omitempty"`
	Location Location  `json:"location"`
}

// Location addresses the remote file. It is filled and read by the platform
// client only.
type Location struct {
	ID             int64  `json:"id"`
	AccessHash     int64  `json:"access_hash"`
	FileReference  []byte `json:"file_reference,omitempty"`
	ThumbSize      string `json:"thumb_size,omitempty"`
	DCID           int    `json:"dc_id,omitempty"`
	ConversationID int64  `json:"conversation_id"`
	MessageID      int    `json:"message_id"`
}

type MediaKind string

const (
	// MediaPhoto is a compressed picture
	MediaPhoto MediaKind = "photo"

	// MediaAudio is a music file or a voice note
	MediaAudio MediaKind = "audio"

	// MediaVideo is a video, including round video messages
	MediaVideo MediaKind = "video"

	// MediaDocument is any other file
	MediaDocument MediaKind = "document"
)

// MediaKinds lists all known kinds in their canonical order.
var MediaKinds = []MediaKind{MediaPhoto, MediaAudio, MediaVideo, MediaDocument}

func ParseMediaKind(s string) (MediaKind, error) {
	k := MediaKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range MediaKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown media kind: %q", s)
}
