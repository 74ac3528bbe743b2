package telegram

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

type peer struct {
	input tg.InputPeerClass
	conv  e.Conversation
	left  bool
}

func (s *Session) remember(chats []tg.ChatClass) []peer {
	var result []peer
	for _, chat := range chats {
		p, ok := convertChat(chat)
		if !ok {
			continue
		}
		s.peers[p.conv.ID] = p
		result = append(result, p)
	}
	return result
}

// Dialogs returns up to limit groups and channels the user is in, most recent
// first.
func (s *Session) Dialogs(ctx context.Context, limit int) ([]e.Conversation, error) {
	var res tg.MessagesDialogsClass
	err := s.call(ctx, "messages.getDialogs", func(ctx context.Context) (err error) {
		res, err = s.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
			OffsetPeer: &tg.InputPeerEmpty{},
			Limit:      limit,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting dialogs: %w", err)
	}

	var (
		dialogs []tg.DialogClass
		chats   []tg.ChatClass
	)
	switch r := res.(type) {
	case *tg.MessagesDialogs:
		dialogs, chats = r.Dialogs, r.Chats
	case *tg.MessagesDialogsSlice:
		dialogs, chats = r.Dialogs, r.Chats
	}

	s.remember(chats)
	s.dialogsLoaded = true

	var result []e.Conversation
	for _, d := range dialogs {
		var id int64
		switch p := d.GetPeer().(type) {
		case *tg.PeerChannel:
			id = channelChatID(p.ChannelID)
		case *tg.PeerChat:
			id = groupChatID(p.ChatID)
		default:
			continue
		}

		if known, ok := s.peers[id]; ok {
			result = append(result, known.conv)
		}
	}

	return result, nil
}

// Identifier kinds accepted by JoinOrGetChat.
const (
	identifierID = iota + 1
	identifierInvite
	identifierUsername
)

var (
	inviteLink   = regexp.MustCompile(`^(?:https?://)?(?:t\.me|telegram\.me)/(?:\+|joinchat/)([\w-]+)/?$`)
	privateLink  = regexp.MustCompile(`^(?:https?://)?(?:t\.me|telegram\.me)/c/(\d+)(?:/\d+)*/?$`)
	publicLink   = regexp.MustCompile(`^(?:https?://)?(?:t\.me|telegram\.me)/([A-Za-z]\w{3,})(?:/\d+)*/?$`)
	usernameOnly = regexp.MustCompile(`^@([A-Za-z]\w{3,})$`)
)

// parseIdentifier recognizes numeric ids, message or chat links, invite links
// and usernames.
func parseIdentifier(s string) (kind int, id int64, value string, err error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return identifierID, n, "", nil
	}

	if m := inviteLink.FindStringSubmatch(s); m != nil {
		return identifierInvite, 0, m[1], nil
	}

	if m := privateLink.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, 0, "", fmt.Errorf("parsing chat link %q: %w", s, err)
		}
		return identifierID, channelChatID(n), "", nil
	}

	if m := publicLink.FindStringSubmatch(s); m != nil {
		return identifierUsername, 0, m[1], nil
	}

	if m := usernameOnly.FindStringSubmatch(s); m != nil {
		return identifierUsername, 0, m[1], nil
	}

	return 0, 0, "", fmt.Errorf("%w: unrecognized identifier %q", e.ErrChatNotFound, s)
}

// JoinOrGetChat returns the conversation behind an id, link or username,
// joining it first when needed.
func (s *Session) JoinOrGetChat(ctx context.Context, identifier string) (e.Conversation, error) {
	kind, id, value, err := parseIdentifier(identifier)
	if err != nil {
		return e.Conversation{}, err
	}

	var p peer
	switch kind {
	case identifierID:
		p, err = s.peer(ctx, id)
	case identifierInvite:
		p, err = s.joinInvite(ctx, value)
	case identifierUsername:
		p, err = s.resolveUsername(ctx, value)
	}
	if err != nil {
		return e.Conversation{}, err
	}

	if p.left {
		if err := s.joinChannel(ctx, p); err != nil {
			return e.Conversation{}, err
		}
	}

	return p.conv, nil
}

// peer finds a known conversation. Unknown ids are looked up in the dialog
// list once per session.
func (s *Session) peer(ctx context.Context, chatID int64) (peer, error) {
	if p, ok := s.peers[chatID]; ok {
		return p, nil
	}

	if !s.dialogsLoaded {
		if _, err := s.Dialogs(ctx, 200); err != nil {
			return peer{}, err
		}
		if p, ok := s.peers[chatID]; ok {
			return p, nil
		}
	}

	return peer{}, fmt.Errorf("%w: chat %d", e.ErrChatNotFound, chatID)
}

func (s *Session) joinInvite(ctx context.Context, hash string) (peer, error) {
	var invite tg.ChatInviteClass
	err := s.call(ctx, "messages.checkChatInvite", func(ctx context.Context) (err error) {
		invite, err = s.api.MessagesCheckChatInvite(ctx, hash)
		return err
	})
	if err != nil {
		return peer{}, fmt.Errorf("checking invite: %w", err)
	}

	switch inv := invite.(type) {
	case *tg.ChatInviteAlready:
		return s.single(inv.Chat)
	case *tg.ChatInvitePeek:
		return s.single(inv.Chat)
	}

	var updates tg.UpdatesClass
	err = s.call(ctx, "messages.importChatInvite", func(ctx context.Context) (err error) {
		updates, err = s.api.MessagesImportChatInvite(ctx, hash)
		return err
	})
	if err != nil {
		return peer{}, fmt.Errorf("joining by invite: %w", err)
	}

	s.log.Info("joined chat by invite")

	return s.fromUpdates(updates)
}

func (s *Session) resolveUsername(ctx context.Context, username string) (peer, error) {
	var res *tg.ContactsResolvedPeer
	err := s.call(ctx, "contacts.resolveUsername", func(ctx context.Context) (err error) {
		res, err = s.api.ContactsResolveUsername(ctx, username)
		return err
	})
	if err != nil {
		if tgerr.Is(err, "USERNAME_NOT_OCCUPIED", "USERNAME_INVALID") {
			return peer{}, fmt.Errorf("%w: @%s", e.ErrChatNotFound, username)
		}
		return peer{}, fmt.Errorf("resolving username: %w", err)
	}

	for _, p := range s.remember(res.Chats) {
		if strings.EqualFold(p.conv.Username, username) {
			return p, nil
		}
	}

	return peer{}, fmt.Errorf("%w: @%s is not a group or channel", e.ErrChatNotFound, username)
}

func (s *Session) joinChannel(ctx context.Context, p peer) error {
	channel, ok := p.input.(*tg.InputPeerChannel)
	if !ok {
		return nil
	}

	err := s.call(ctx, "channels.joinChannel", func(ctx context.Context) error {
		_, err := s.api.ChannelsJoinChannel(ctx, &tg.InputChannel{
			ChannelID:  channel.ChannelID,
			AccessHash: channel.AccessHash,
		})
		return err
	})
	if err != nil && !tgerr.Is(err, "USER_ALREADY_PARTICIPANT") {
		return fmt.Errorf("joining channel: %w", err)
	}

	s.log.Info("joined chat", "chat_id", p.conv.ID, "chat_title", p.conv.Title)

	p.left = false
	s.peers[p.conv.ID] = p

	return nil
}

func (s *Session) single(chat tg.ChatClass) (peer, error) {
	peers := s.remember([]tg.ChatClass{chat})
	if len(peers) == 0 {
		return peer{}, fmt.Errorf("%w: chat is not accessible", e.ErrChatNotFound)
	}
	return peers[0], nil
}

func (s *Session) fromUpdates(updates tg.UpdatesClass) (peer, error) {
	var chats []tg.ChatClass
	switch u := updates.(type) {
	case *tg.Updates:
		chats = u.Chats
	case *tg.UpdatesCombined:
		chats = u.Chats
	}

	peers := s.remember(chats)
	if len(peers) == 0 {
		return peer{}, fmt.Errorf("%w: no chat in join result", e.ErrChatNotFound)
	}
	return peers[0], nil
}

// inputChannel returns the channel behind a peer, if it is one.
func inputChannel(p peer) (*tg.InputChannel, bool) {
	c, ok := p.input.(*tg.InputPeerChannel)
	if !ok {
		return nil, false
	}
	return &tg.InputChannel{ChannelID: c.ChannelID, AccessHash: c.AccessHash}, true
}
