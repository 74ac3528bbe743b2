package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/ghizzi-eng/tg-downloader/app/prompt"
	"github.com/ghizzi-eng/tg-downloader/app/services"
	"github.com/ghizzi-eng/tg-downloader/app/storage"
	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

type options struct {
	CleanSessions bool `long:"clean-sessions" description:"remove the session file and every *.session* file next to it, then exit"`

	AppID       int    `long:"api-id" env:"API_ID" description:"telegram application id, asked when empty"`
	AppHash     string `long:"api-hash" env:"API_HASH" description:"telegram application hash, asked when empty"`
	Phone       string `long:"phone" env:"PHONE" description:"account phone number, asked when needed and empty"`
	SessionPath string `long:"session" env:"SESSION_PATH" default:"user.session" description:"path to the session file"`

	DownloadDir string `long:"download-dir" env:"DOWNLOAD_DIR" default:"downloads" description:"directory for downloaded media"`
	CacheDir    string `long:"cache-dir" env:"CACHE_DIR" default:"cache" description:"directory for cached histories"`
	TaskDir     string `long:"task-dir" env:"TASK_DIR" default:"chat_download_task" description:"directory for progress files"`
	MaxMessages int    `long:"max-messages" env:"MAX_MESSAGES" default:"50000" description:"maximum number of messages collected from a chat"`
	BatchSize   int    `long:"batch-size" env:"BATCH_SIZE" default:"100" description:"messages requested per history page"`
	Media       string `long:"media" env:"MEDIA_TYPES" default:"photo,audio,video,document" description:"comma separated media kinds to download"`
	Resume      bool   `long:"resume" env:"RESUME" description:"skip messages up to the stored progress marker"`

	SentryDSN   string `long:"sentry-dsn" env:"SENTRY_DSN" description:"sentry dsn, errors are reported when set"`
	NotifyToken string `long:"notify-token" env:"NOTIFY_BOT_TOKEN" description:"bot token used to post the final report"`
	NotifyChat  int64  `long:"notify-chat" env:"NOTIFY_CHAT_ID" description:"chat the final report is posted to"`

	Debug bool `long:"debug" env:"DEBUG" description:"enable debug logging"`
}

var opts options

var Revision = "dev"

func main() {
	// a missing .env file is fine, the environment may be set already
	_ = godotenv.Load()

	_, err := flags.Parse(&opts)
	if err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	log := logger.NewLogger(opts.Debug)

	if opts.CleanSessions {
		removed, err := storage.CleanSessions(opts.SessionPath)
		if err != nil {
			log.Error("removing session files", "error", err)
			os.Exit(1)
		}
		log.Info("session files removed", "path", opts.SessionPath, "count", len(removed))
		return
	}

	log.Info("starting archiver", "revision", Revision)

	reporting := false
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			Release:          Revision,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("initializing sentry", "error", err)
		} else {
			reporting = true
		}
	}

	defer func() {
		if r := recover(); r != nil {
			if reporting {
				sentry.CurrentHub().Recover(r)
				sentry.Flush(2 * time.Second)
			}
			panic(r)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := buildConfig(opts)
	if err != nil {
		log.Error("reading options", "error", err)
		os.Exit(1)
	}

	err = run(ctx, log, cfg)
	if err == nil {
		log.Info("archiver finished")
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, prompt.ErrAborted) {
		log.Info("archiver stopped")
		return
	}

	log.Error("archiving", "error", err)
	if reporting {
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
	}
	cancel()
	os.Exit(1)
}

func buildConfig(o options) (services.Config, error) {
	cfg := services.DefaultConfig()

	if o.MaxMessages <= 0 {
		return cfg, fmt.Errorf("max messages must be positive, got %d", o.MaxMessages)
	}
	if o.BatchSize <= 0 || o.BatchSize > 100 {
		return cfg, fmt.Errorf("batch size must be between 1 and 100, got %d", o.BatchSize)
	}

	accepted := make(map[e.MediaKind]bool)
	for _, part := range strings.Split(o.Media, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kind, err := e.ParseMediaKind(part)
		if err != nil {
			return cfg, err
		}
		accepted[kind] = true
	}
	if len(accepted) == 0 {
		return cfg, errors.New("no media kinds selected")
	}

	cfg.MaxMessages = o.MaxMessages
	cfg.BatchSize = o.BatchSize
	cfg.AcceptedMedia = accepted
	cfg.DownloadDir = o.DownloadDir
	cfg.CacheDir = o.CacheDir
	cfg.TaskDir = o.TaskDir
	cfg.Resume = o.Resume

	return cfg, nil
}
