package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
	"github.com/gotd/td/session"
	td "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
)

// Client is a user account connection. It is opened by Run for the duration
// of a single callback and closed when the callback returns.
type Client struct {
	Log     logger.Logger
	AppID   int
	AppHash string

	// Storage keeps the MTProto session between runs
	Storage session.Storage

	// Auth answers the login flow questions when the session is not authorized
	Auth auth.UserAuthenticator

	// ZapLog receives the MTProto client internals, optional
	ZapLog *zap.Logger
}

// Run connects, logs in if necessary and calls f with a ready session.
func (c *Client) Run(ctx context.Context, f func(ctx context.Context, s *Session) error) error {
	zapLog := c.ZapLog
	if zapLog == nil {
		zapLog = zap.NewNop()
	}

	client := td.NewClient(c.AppID, c.AppHash, td.Options{
		Logger:         zapLog,
		SessionStorage: c.Storage,
	})

	return client.Run(ctx, func(ctx context.Context) error {
		flow := auth.NewFlow(c.Auth, auth.SendCodeOptions{})
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}

		self, err := client.Self(ctx)
		if err != nil {
			return fmt.Errorf("getting current user: %w", err)
		}

		c.Log.Info("logged in", "user_id", self.ID, "username", self.Username)

		return f(ctx, newSession(c.Log, client.API()))
	})
}

// Session serves the requests of the archiver over an authorized connection.
// It is not safe for concurrent use.
type Session struct {
	log   logger.Logger
	api   *tg.Client
	dl    *downloader.Downloader
	peers map[int64]peer

	// dialogsLoaded is set once the dialog list was scanned for peers
	dialogsLoaded bool
}

func newSession(log logger.Logger, api *tg.Client) *Session {
	return &Session{
		log:   log,
		api:   api,
		dl:    downloader.NewDownloader(),
		peers: make(map[int64]peer),
	}
}

// call runs an RPC, waiting out one flood wait, and maps known RPC errors to
// the entity error kinds.
func (s *Session) call(ctx context.Context, name string, f func(ctx context.Context) error) error {
	err := f(ctx)
	if d, ok := tgerr.AsFloodWait(err); ok {
		s.log.Warn("flood wait", "method", name, "wait", d)

		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		err = f(ctx)
	}

	return classify(err)
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded), tgerr.Is(err, "TIMEOUT"):
		return fmt.Errorf("%w: %w", e.ErrTimeout, err)
	case tgerr.Is(err, "PEER_ID_INVALID", "CHANNEL_INVALID", "CHANNEL_PRIVATE", "CHAT_ID_INVALID"):
		return fmt.Errorf("%w: %w", e.ErrInvalidPeer, err)
	case tgerr.Is(err, "METHOD_INVALID"):
		return fmt.Errorf("%w: %w", e.ErrCapabilityUnavailable, err)
	}

	return err
}
