package telegram

import (
	"strconv"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/gotd/td/tg"
)

// Marked ids keep chats and channels apart in a single int64 space, the same
// way Bot API and most clients show them.
const channelIDOffset = 1_000_000_000_000

func channelChatID(channelID int64) int64 {
	return -(channelIDOffset + channelID)
}

func groupChatID(chatID int64) int64 {
	return -chatID
}

func convertChat(chat tg.ChatClass) (peer, bool) {
	switch c := chat.(type) {
	case *tg.Channel:
		kind := e.ConversationSupergroup
		if c.Broadcast {
			kind = e.ConversationChannel
		}

		return peer{
			input: &tg.InputPeerChannel{ChannelID: c.ID, AccessHash: c.AccessHash},
			conv: e.Conversation{
				ID:       channelChatID(c.ID),
				Title:    c.Title,
				Username: c.Username,
				Kind:     kind,
				IsForum:  c.Forum,
			},
			left: c.Left,
		}, true

	case *tg.Chat:
		if c.Deactivated {
			return peer{}, false
		}

		return peer{
			input: &tg.InputPeerChat{ChatID: c.ID},
			conv: e.Conversation{
				ID:    groupChatID(c.ID),
				Title: c.Title,
				Kind:  e.ConversationGroup,
			},
		}, true
	}

	return peer{}, false
}

func convertMessages(chatID int64, msgs []tg.MessageClass) []e.Message {
	result := make([]e.Message, 0, len(msgs))
	for _, m := range msgs {
		if msg, ok := convertMessage(chatID, m); ok {
			result = append(result, msg)
		}
	}
	return result
}

func messagesOf(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	case *tg.MessagesChannelMessages:
		return r.Messages
	}
	return nil
}

func convertMessage(chatID int64, m tg.MessageClass) (e.Message, bool) {
	switch msg := m.(type) {
	case *tg.Message:
		result := e.Message{
			ID:             msg.ID,
			ConversationID: chatID,
			Date:           time.Unix(int64(msg.Date), 0),
			Thread:         threadRef(msg.ReplyTo),
		}

		if media, ok := convertMedia(chatID, msg.ID, msg.Media); ok {
			result.Media = &media
			result.Caption = msg.Message
		} else {
			result.Text = msg.Message
		}

		return result, true

	case *tg.MessageService:
		result := e.Message{
			ID:             msg.ID,
			ConversationID: chatID,
			Date:           time.Unix(int64(msg.Date), 0),
			Thread:         threadRef(msg.ReplyTo),
		}

		if action, ok := msg.Action.(*tg.MessageActionTopicCreate); ok {
			result.TopicCreated = &e.ForumTopic{ID: msg.ID, Title: action.Title}
		}

		return result, true
	}

	return e.Message{}, false
}

func threadRef(header tg.MessageReplyHeaderClass) e.ThreadRef {
	h, ok := header.(*tg.MessageReplyHeader)
	if !ok {
		return e.ThreadRef{}
	}

	if !h.ForumTopic {
		return e.ThreadRef{ReplyToTopID: h.ReplyToTopID}
	}

	// a direct reply to the topic root carries no top id
	topic := h.ReplyToTopID
	if topic == 0 {
		topic = h.ReplyToMsgID
	}

	return e.ThreadRef{
		ThreadID:   topic,
		ForumTopic: &e.ForumTopic{ID: topic},
	}
}

func convertMedia(chatID int64, msgID int, media tg.MessageMediaClass) (e.Media, bool) {
	loc := e.Location{ConversationID: chatID, MessageID: msgID}

	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		if m.Photo == nil {
			return e.Media{}, false
		}
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return e.Media{}, false
		}

		thumb, size := largestPhotoSize(photo.Sizes)
		if thumb == "" {
			return e.Media{}, false
		}

		loc.ID = photo.ID
		loc.AccessHash = photo.AccessHash
		loc.FileReference = photo.FileReference
		loc.ThumbSize = thumb
		loc.DCID = photo.DCID

		return e.Media{
			Kind:     e.MediaPhoto,
			FileID:   strconv.FormatInt(photo.ID, 10),
			Size:     int64(size),
			MimeType: "image/jpeg",
			Location: loc,
		}, true

	case *tg.MessageMediaDocument:
		if m.Document == nil {
			return e.Media{}, false
		}
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return e.Media{}, false
		}

		kind, name, ok := documentKind(doc.Attributes)
		if !ok {
			return e.Media{}, false
		}

		loc.ID = doc.ID
		loc.AccessHash = doc.AccessHash
		loc.FileReference = doc.FileReference
		loc.DCID = doc.DCID

		return e.Media{
			Kind:     kind,
			FileID:   strconv.FormatInt(doc.ID, 10),
			Size:     doc.Size,
			Name:     name,
			MimeType: doc.MimeType,
			Location: loc,
		}, true
	}

	return e.Media{}, false
}

// documentKind tells what a document is from its attributes. Stickers and
// animations are not archived.
func documentKind(attrs []tg.DocumentAttributeClass) (e.MediaKind, string, bool) {
	kind := e.MediaDocument
	var name string

	for _, a := range attrs {
		switch attr := a.(type) {
		case *tg.DocumentAttributeFilename:
			name = attr.FileName
		case *tg.DocumentAttributeVideo:
			kind = e.MediaVideo
		case *tg.DocumentAttributeAudio:
			kind = e.MediaAudio
		case *tg.DocumentAttributeSticker, *tg.DocumentAttributeAnimated:
			return "", "", false
		}
	}

	return kind, name, true
}

// largestPhotoSize picks the biggest downloadable size of a photo. Stripped and
// cached sizes are inline previews and are skipped.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int) {
	var (
		thumb   string
		size    int
		biggest int
	)

	for _, s := range sizes {
		var (
			t       string
			dim, sz int
		)

		switch ps := s.(type) {
		case *tg.PhotoSize:
			t, dim, sz = ps.Type, max(ps.W, ps.H), ps.Size
		case *tg.PhotoSizeProgressive:
			t, dim = ps.Type, max(ps.W, ps.H)
			if n := len(ps.Sizes); n > 0 {
				sz = ps.Sizes[n-1]
			}
		default:
			continue
		}

		if dim > biggest {
			thumb, size, biggest = t, sz, dim
		}
	}

	return thumb, size
}
