package telegram

import (
	"context"
	"fmt"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/gotd/td/tg"
)

// replyPageSize is the largest page messages.getReplies serves.
const replyPageSize = 100

// GetChatHistory returns up to limit messages older than offsetID, newest
// first.
func (s *Session) GetChatHistory(ctx context.Context, chatID int64, limit, offsetID int) ([]e.Message, error) {
	p, err := s.peer(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidPeer, err)
	}

	var res tg.MessagesMessagesClass
	err = s.call(ctx, "messages.getHistory", func(ctx context.Context) (err error) {
		res, err = s.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     p.input,
			OffsetID: offsetID,
			Limit:    limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting history: %w", err)
	}

	return convertMessages(chatID, messagesOf(res)), nil
}

// GetThreadReplies returns up to limit replies of a thread, newest first.
// Only channels and supergroups have threads, other chats fail with
// e.ErrCapabilityUnavailable.
func (s *Session) GetThreadReplies(ctx context.Context, chatID int64, threadID, limit int) ([]e.Message, error) {
	p, err := s.peer(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidPeer, err)
	}

	if _, ok := inputChannel(p); !ok {
		return nil, fmt.Errorf("%w: chat %d has no threads", e.ErrCapabilityUnavailable, chatID)
	}

	var (
		result   []e.Message
		offsetID int
	)

	for len(result) < limit {
		pageLimit := min(replyPageSize, limit-len(result))

		var res tg.MessagesMessagesClass
		err := s.call(ctx, "messages.getReplies", func(ctx context.Context) (err error) {
			res, err = s.api.MessagesGetReplies(ctx, &tg.MessagesGetRepliesRequest{
				Peer:     p.input,
				MsgID:    threadID,
				OffsetID: offsetID,
				Limit:    pageLimit,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("getting replies: %w", err)
		}

		page := convertMessages(chatID, messagesOf(res))
		if len(page) == 0 {
			break
		}

		result = append(result, page...)
		for _, msg := range page {
			if offsetID == 0 || msg.ID < offsetID {
				offsetID = msg.ID
			}
		}

		if len(page) < pageLimit {
			break
		}
	}

	s.log.Debug("thread replies fetched", "chat_id", chatID, "thread_id", threadID, "count", len(result))

	return result, nil
}

// SearchMessages returns up to limit messages whose text matches query.
func (s *Session) SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]e.Message, error) {
	p, err := s.peer(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidPeer, err)
	}

	var res tg.MessagesMessagesClass
	err = s.call(ctx, "messages.search", func(ctx context.Context) (err error) {
		res, err = s.api.MessagesSearch(ctx, &tg.MessagesSearchRequest{
			Peer:   p.input,
			Q:      query,
			Filter: &tg.InputMessagesFilterEmpty{},
			Limit:  limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	return convertMessages(chatID, messagesOf(res)), nil
}

// GetMessage returns a single message, nil if it does not exist.
func (s *Session) GetMessage(ctx context.Context, chatID int64, messageID int) (*e.Message, error) {
	p, err := s.peer(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrInvalidPeer, err)
	}

	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}}

	var res tg.MessagesMessagesClass
	err = s.call(ctx, "messages.getMessages", func(ctx context.Context) (err error) {
		if channel, ok := inputChannel(p); ok {
			res, err = s.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
				Channel: channel,
				ID:      ids,
			})
			return err
		}

		res, err = s.api.MessagesGetMessages(ctx, ids)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}

	for _, msg := range convertMessages(chatID, messagesOf(res)) {
		if msg.ID == messageID {
			return &msg, nil
		}
	}

	return nil, nil
}
