package prompt

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	e "github.com/ghizzi-eng/tg-downloader/pkg/entities"
	"github.com/ghizzi-eng/tg-downloader/pkg/logger"
)

// DialogsLimit is how many recent chats are offered for selection.
const DialogsLimit = 50

// Selector lets the operator pick what to archive.
type Selector struct {
	Log      logger.Logger
	In       Input
	Platform ChatPlatform
}

// SelectConversation offers the recent groups and channels and returns the
// chosen one. Besides a list number, an id, a link or a username is accepted.
func (s *Selector) SelectConversation(ctx context.Context) (e.Conversation, error) {
	out := s.In.Out()

	dialogs, err := s.Platform.Dialogs(ctx, DialogsLimit)
	if err != nil {
		s.Log.Warn("loading dialogs", "error", err)
	}

	if len(dialogs) > 0 {
		fmt.Fprintln(out, "\nYour groups and channels:")
		for i, conv := range dialogs {
			fmt.Fprintf(out, "%3d - %s [%s]%s\n", i+1, conv.Title, kindLabel(conv), usernameLabel(conv))
		}
	}

	for {
		answer, err := s.In.Ask("\nChat number, link or ID: ")
		if err != nil {
			return e.Conversation{}, err
		}
		if answer == "" {
			continue
		}

		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(dialogs) {
			conv := dialogs[n-1]
			fmt.Fprintf(out, "Selected: %s (ID: %d)\n", conv.Title, conv.ID)
			return conv, nil
		}

		conv, err := s.Platform.JoinOrGetChat(ctx, answer)
		if err != nil {
			if ctx.Err() != nil {
				return e.Conversation{}, ctx.Err()
			}
			fmt.Fprintf(out, "Cannot open this chat: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "Connected: %s (ID: %d)\n", conv.Title, conv.ID)
		return conv, nil
	}
}

func kindLabel(conv e.Conversation) string {
	if conv.IsForum {
		return string(conv.Kind) + ", forum"
	}
	return string(conv.Kind)
}

func usernameLabel(conv e.Conversation) string {
	if conv.Username == "" {
		return ""
	}
	return " (@" + conv.Username + ")"
}

// Topic is a selected forum thread. A zero ID means the whole chat.
type Topic struct {
	ID    int
	Title string
}

var (
	linkTail   = regexp.MustCompile(`/(\d+)/?$`)
	idInTitle  = regexp.MustCompile(`(?i)\s*\(ID:?\s*\d+\)`)
	errNoTopic = errors.New("not a topic id or link")
)

// TopicID reads a thread id from a bare number or from the tail of a message
// link.
func TopicID(s string) (int, error) {
	s = strings.TrimSpace(s)

	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, nil
	}

	if m := linkTail.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return n, nil
		}
	}

	return 0, errNoTopic
}

// CleanTopicTitle drops the "(ID: n)" suffix some groups put in topic names.
func CleanTopicTitle(title string) string {
	return strings.TrimSpace(idInTitle.ReplaceAllString(title, ""))
}

// SelectTopic asks which thread of a forum to archive. "0" selects all topics
// and "-1" the main chat, both mean the whole history. A message from inside a
// topic is redirected to the topic itself.
func (s *Selector) SelectTopic(ctx context.Context, conv e.Conversation) (Topic, error) {
	out := s.In.Out()

	fmt.Fprintln(out, "\nEnter the topic ID or the link of a message in the topic.")
	fmt.Fprintln(out, "0 = all topics, -1 = main chat only")

	for {
		answer, err := s.In.Ask("\nTopic link / ID: ")
		if err != nil {
			return Topic{}, err
		}

		switch answer {
		case "":
			continue
		case "0":
			fmt.Fprintln(out, "Selected: all topics")
			return Topic{}, nil
		case "-1":
			fmt.Fprintln(out, "Selected: main chat only")
			return Topic{}, nil
		}

		id, err := TopicID(answer)
		if err != nil {
			fmt.Fprintln(out, "Invalid ID or unrecognized link, try again.")
			continue
		}

		topic, err := s.describeTopic(ctx, conv, id)
		if err != nil {
			if ctx.Err() != nil {
				return Topic{}, ctx.Err()
			}
			fmt.Fprintf(out, "Cannot validate topic: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\nTopic found: %s\nID: %d\n", topic.Title, topic.ID)

		confirm, err := s.In.Ask("Is this the right topic? (y/n): ")
		if err != nil {
			return Topic{}, err
		}

		if yes, _ := YesNo(confirm); yes {
			return topic, nil
		}

		fmt.Fprintln(out, "Try again...")
	}
}

func (s *Selector) describeTopic(ctx context.Context, conv e.Conversation, id int) (Topic, error) {
	topic := Topic{ID: id, Title: "Unknown"}

	msg, err := s.Platform.GetMessage(ctx, conv.ID, id)
	if err != nil {
		return Topic{}, err
	}

	switch {
	case msg == nil:
		fmt.Fprintln(s.In.Out(), "Could not read the details of this ID.")

	case msg.TopicCreated != nil:
		topic.Title = msg.TopicCreated.Title

	default:
		top, ok := msg.TopicID()
		if !ok || top == id {
			topic.Title = "Title not detected (valid ID)"
			break
		}

		fmt.Fprintf(s.In.Out(), "This message is inside a topic, using the topic ID %d.\n", top)
		topic.ID = top

		root, err := s.Platform.GetMessage(ctx, conv.ID, top)
		if err != nil {
			s.Log.Warn("reading topic root", "message_id", top, "error", err)
		} else if root != nil && root.TopicCreated != nil {
			topic.Title = root.TopicCreated.Title
		}
	}

	topic.Title = CleanTopicTitle(topic.Title)

	return topic, nil
}

type ChatPlatform interface {
	Dialogs(ctx context.Context, limit int) ([]e.Conversation, error)
	JoinOrGetChat(ctx context.Context, identifier string) (e.Conversation, error)
	GetMessage(ctx context.Context, chatID int64, messageID int) (*e.Message, error)
}
