package services

import (
	"context"
	"errors"
	"fmt"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

// HistoryCollector fetches the whole flat history of a conversation. History is
// requested page by page walking back from the newest message, the offset of
// each page is the oldest id seen so far. The result is cached and may be
// reused by the next run if the policy agrees.
type HistoryCollector struct {
	Log    logger.Logger
	Config Config

	// Platform serves the history pages
	Platform HistoryPlatform

	// Cache keeps collected histories between runs, optional
	Cache SnapshotStore

	// Policy decides whether a cached history is reused, a nil policy always
	// reuses it
	Policy CachePolicy
}

// Collect returns the messages of the conversation in ascending id order. Only
// context cancellation is returned as an error; platform failures end the
// collection early and whatever was collected so far is returned.
func (c *HistoryCollector) Collect(ctx context.Context, conv e.Conversation, useCache bool) ([]e.Message, error) {
	log := c.Log.With("chat_id", conv.ID, "chat_title", conv.Title)

	if useCache && c.Cache != nil {
		if snapshot, ok := c.Cache.Load(conv.ID, conv.Title); ok {
			if c.Policy == nil || c.Policy.ReuseSnapshot(ctx, snapshot) {
				log.Info("using cached history", "messages", len(snapshot.Messages))
				return uniqueAscending(snapshot.Messages), nil
			}
		}
	}

	log.Info("collecting history", "max_messages", c.Config.MaxMessages, "batch_size", c.Config.BatchSize)

	msgs, err := c.fetch(ctx, log, conv.ID)
	if err != nil {
		return nil, err
	}

	log.Info("history collected", "messages", len(msgs))

	if len(msgs) > 0 && c.Cache != nil {
		if err := c.Cache.Save(conv.ID, conv.Title, msgs); err != nil {
			log.Warn("caching history", "error", err)
		}
	}

	return msgs, nil
}

func (c *HistoryCollector) fetch(ctx context.Context, log logger.Logger, chatID int64) ([]e.Message, error) {
	var (
		all      []e.Message
		offsetID int
		retries  int
	)

	batchSize := c.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	for len(all) < c.Config.MaxMessages {
		limit := min(batchSize, c.Config.MaxMessages-len(all))

		batch, err := c.Platform.GetChatHistory(ctx, chatID, limit, offsetID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if errors.Is(err, e.ErrInvalidPeer) || errors.Is(err, e.ErrTimeout) {
				log.Warn("history is not reachable, stopping", "offset_id", offsetID, "error", err)
				break
			}

			retries++
			if retries > c.Config.MaxRetries {
				log.Error("fetching history batch, giving up", "offset_id", offsetID, "retries", c.Config.MaxRetries, "error", err)
				break
			}

			log.Warn("fetching history batch, retrying", "offset_id", offsetID, "attempt", retries, "error", err)

			if err := sleep(ctx, c.Config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		retries = 0

		if len(batch) == 0 {
			break
		}

		all = append(all, batch...)
		offsetID = oldestID(batch)

		log.Debug("history batch fetched", "count", len(batch), "total", len(all), "offset_id", offsetID)

		if len(batch) < limit {
			break
		}

		if err := sleep(ctx, c.Config.BatchDelay); err != nil {
			return nil, fmt.Errorf("waiting for next batch: %w", err)
		}
	}

	msgs := uniqueAscending(all)
	if len(msgs) > c.Config.MaxMessages {
		msgs = msgs[len(msgs)-c.Config.MaxMessages:]
	}

	return msgs, nil
}

type HistoryPlatform interface {
	// GetChatHistory returns up to limit messages older than offsetID, newest
	// first. A zero offsetID starts from the newest message.
	GetChatHistory(ctx context.Context, chatID int64, limit, offsetID int) ([]e.Message, error)
}

type SnapshotStore interface {
	Save(chatID int64, title string, msgs []e.Message) error
	Load(chatID int64, title string) (*e.Snapshot, bool)
}

type CachePolicy interface {
	ReuseSnapshot(ctx context.Context, snapshot *e.Snapshot) bool
}
