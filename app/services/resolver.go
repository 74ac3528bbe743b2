package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

// ThreadResolver finds the messages of one forum thread. The native replies
// lookup is asked first; when it has nothing, messages linking to the thread
// are searched for by permalink. An empty result is not an error.
type ThreadResolver struct {
	Log      logger.Logger
	Config   Config
	Platform ThreadPlatform
}

func (r *ThreadResolver) Resolve(ctx context.Context, conv e.Conversation, threadID int) ([]e.Message, error) {
	log := r.Log.With("chat_id", conv.ID, "thread_id", threadID)

	msgs, err := r.replies(ctx, log, conv.ID, threadID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		log.Info("thread resolved by replies", "messages", len(msgs), "first_id", msgs[0].ID, "last_id", msgs[len(msgs)-1].ID)
		return msgs, nil
	}

	msgs, err = r.searchLinks(ctx, log, conv.ID, threadID)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		log.Info("thread resolved by link search", "messages", len(msgs))
		return msgs, nil
	}

	log.Warn("no messages found for thread")

	return nil, nil
}

func (r *ThreadResolver) replies(ctx context.Context, log logger.Logger, chatID int64, threadID int) ([]e.Message, error) {
	msgs, err := r.Platform.GetThreadReplies(ctx, chatID, threadID, r.Config.ThreadLimit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if errors.Is(err, e.ErrCapabilityUnavailable) {
			log.Warn("thread replies are not supported for this chat", "error", err)
		} else {
			log.Error("fetching thread replies", "error", err)
		}
		return nil, nil
	}

	// newest first
	slices.Reverse(msgs)

	return uniqueAscending(msgs), nil
}

func (r *ThreadResolver) searchLinks(ctx context.Context, log logger.Logger, chatID int64, threadID int) ([]e.Message, error) {
	var found []e.Message

	for _, query := range LinkPatterns(chatID, threadID) {
		msgs, err := r.Platform.SearchMessages(ctx, chatID, query, r.Config.SearchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			log.Warn("searching thread link", "query", query, "error", err)
			continue
		}

		log.Debug("thread link searched", "query", query, "count", len(msgs))
		found = append(found, msgs...)
	}

	return uniqueAscending(found), nil
}

// LinkPatterns returns the permalink variants of a thread, the way users paste
// them into messages.
func LinkPatterns(chatID int64, threadID int) []string {
	raw := strconv.FormatInt(chatID, 10)

	codes := []string{strings.TrimPrefix(raw, "-100")}
	if codes[0] != raw {
		codes = append(codes, raw)
	}

	var patterns []string
	for _, code := range codes {
		link := fmt.Sprintf("t.me/c/%s/%d", code, threadID)
		patterns = append(patterns,
			link,
			"https://"+link,
			link+"/",
			"https://"+link+"/",
		)
	}

	return patterns
}

type ThreadPlatform interface {
	// GetThreadReplies returns the replies of a thread newest first. It fails
	// with e.ErrCapabilityUnavailable when the chat has no threads.
	GetThreadReplies(ctx context.Context, chatID int64, threadID, limit int) ([]e.Message, error)
	SearchMessages(ctx context.Context, chatID int64, query string, limit int) ([]e.Message, error)
}
