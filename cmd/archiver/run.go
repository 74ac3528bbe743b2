package main

import (
	"context"
	"fmt"

	"github.com/ghizzi-eng/tg-downloader/app/notify"
	"github.com/ghizzi-eng/tg-downloader/app/prompt"
	"github.com/ghizzi-eng/tg-downloader/app/services"
	"github.com/ghizzi-eng/tg-downloader/app/storage"
	"github.com/ghizzi-eng/tg-downloader/app/telegram"
	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

func run(ctx context.Context, log logger.Logger, cfg services.Config) error {
	term, err := prompt.NewTerminal()
	if err != nil {
		return err
	}
	defer func() { _ = term.Close() }()

	appID, appHash, err := prompt.Credentials(term, opts.AppID, opts.AppHash)
	if err != nil {
		return err
	}

	db, err := storage.NewSQLite(ctx, log, opts.SessionPath)
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("closing session", "error", err)
		}
	}()

	var notifier *notify.Bot
	if opts.NotifyToken != "" && opts.NotifyChat != 0 {
		notifier, err = notify.NewBot(log, opts.NotifyToken, opts.NotifyChat)
		if err != nil {
			log.Warn("report notifications disabled", "error", err)
			notifier = nil
		}
	}

	zapLog := logger.NewZap(opts.Debug)
	defer func() { _ = zapLog.Sync() }()

	client := &telegram.Client{
		Log:     log,
		AppID:   appID,
		AppHash: appHash,
		Storage: db,
		Auth:    telegram.TerminalAuth{In: term, PhoneNumber: opts.Phone},
		ZapLog:  zapLog,
	}

	return client.Run(ctx, func(ctx context.Context, s *telegram.Session) error {
		return archive(ctx, log, cfg, term, s, notifier)
	})
}

// archive runs one interactive pass: pick a chat and maybe a topic, collect the
// messages and download their media.
func archive(
	ctx context.Context,
	log logger.Logger,
	cfg services.Config,
	term *prompt.Terminal,
	s *telegram.Session,
	notifier *notify.Bot,
) error {
	sel := &prompt.Selector{Log: log, In: term, Platform: s}

	conv, err := sel.SelectConversation(ctx)
	if err != nil {
		return fmt.Errorf("selecting chat: %w", err)
	}

	var topic prompt.Topic
	if conv.IsForum {
		topic, err = sel.SelectTopic(ctx, conv)
		if err != nil {
			return fmt.Errorf("selecting topic: %w", err)
		}
	}

	var msgs []e.Message
	if topic.ID != 0 {
		resolver := &services.ThreadResolver{Log: log, Config: cfg, Platform: s}
		msgs, err = resolver.Resolve(ctx, conv, topic.ID)
	} else {
		collector := &services.HistoryCollector{
			Log:      log,
			Config:   cfg,
			Platform: s,
			Cache:    storage.NewCacheStore(log, cfg.CacheDir),
			Policy:   &prompt.CachePrompt{In: term},
		}
		msgs, err = collector.Collect(ctx, conv, true)
	}
	if err != nil {
		return fmt.Errorf("collecting messages: %w", err)
	}

	if len(msgs) == 0 {
		log.Warn("no messages found", "chat_id", conv.ID, "topic_id", topic.ID)
		return nil
	}

	downloader := &services.Downloader{
		Log:      log,
		Config:   cfg,
		Platform: s,
		Ledger:   &storage.ProgressLedger{Dir: cfg.TaskDir},
	}

	report, err := downloader.Run(ctx, conv, msgs)
	if err != nil {
		return fmt.Errorf("downloading media: %w", err)
	}

	if notifier != nil {
		if err := notifier.Report(ctx, conv, topic.Title, report); err != nil {
			log.Warn("sending report", "error", err)
		}
	}

	return nil
}
