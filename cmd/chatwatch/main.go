// Command chatwatch follows one conversation from the terminal. It polls the
// server while running, prints new messages and typing changes, and marks
// what it printed as read. With a NATS URL it also wakes on relay hints.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/HammerMeetNail/fitchat/internal/chatclient"
	"github.com/HammerMeetNail/fitchat/internal/config"
	"github.com/HammerMeetNail/fitchat/internal/logging"
	"github.com/HammerMeetNail/fitchat/internal/models"
	"github.com/HammerMeetNail/fitchat/internal/services"
)

type watchConfig struct {
	ServerURL    string
	Token        string
	FriendID     uuid.UUID
	UserID       uuid.UUID
	NatsURL      string
	NatsPrefix   string
	PollInterval time.Duration
}

func main() {
	config.LoadDotEnv()

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error("chatwatch stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func parseConfig(args []string, lookupEnv func(string) (string, bool)) (watchConfig, error) {
	env := func(key, fallback string) string {
		if v, ok := lookupEnv(key); ok && v != "" {
			return v
		}
		return fallback
	}

	fs := flag.NewFlagSet("chatwatch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	server := fs.String("server", env("FITCHAT_SERVER", "http://localhost:8080/api"), "API base URL")
	token := fs.String("token", env("FITCHAT_TOKEN", ""), "session token")
	friend := fs.String("friend", env("FITCHAT_FRIEND_ID", ""), "friend user id")
	user := fs.String("user", env("FITCHAT_USER_ID", ""), "own user id, needed for relay hints")
	natsURL := fs.String("nats", env("NATS_URL", ""), "NATS URL for relay hints")
	prefix := fs.String("prefix", env("NATS_SUBJECT_PREFIX", "fitchat"), "relay subject prefix")
	interval := fs.Duration("interval", chatclient.DefaultPollInterval, "poll interval")
	if err := fs.Parse(args); err != nil {
		return watchConfig{}, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := watchConfig{
		ServerURL:    strings.TrimRight(*server, "/"),
		Token:        *token,
		NatsURL:      *natsURL,
		NatsPrefix:   *prefix,
		PollInterval: *interval,
	}
	if cfg.Token == "" {
		return watchConfig{}, errors.New("a session token is required (-token or FITCHAT_TOKEN)")
	}

	friendID, err := uuid.Parse(*friend)
	if err != nil {
		return watchConfig{}, fmt.Errorf("invalid friend id %q", *friend)
	}
	cfg.FriendID = friendID

	if cfg.NatsURL != "" {
		userID, err := uuid.Parse(*user)
		if err != nil {
			return watchConfig{}, fmt.Errorf("relay hints need a valid user id, got %q", *user)
		}
		cfg.UserID = userID
	}
	return cfg, nil
}

func run(ctx context.Context, cfg watchConfig, in io.Reader, out io.Writer) error {
	client := chatclient.NewClient(cfg.ServerURL, cfg.Token)

	syncer := chatclient.NewSyncer(client, printer(out, client, cfg.FriendID))
	syncer.SetInterval(cfg.PollInterval)
	syncer.Open(cfg.FriendID)

	if cfg.NatsURL != "" {
		nc, err := services.ConnectNats(cfg.NatsURL, "fitchat-chatwatch")
		if err != nil {
			return err
		}
		defer nc.Close()

		subject := services.RelaySubject(cfg.NatsPrefix, cfg.UserID)
		sub, err := nc.Subscribe(subject, relayWaker(syncer, cfg.FriendID))
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", subject, err)
		}
		defer func() { _ = sub.Unsubscribe() }()
	}

	go readInput(ctx, in, client, cfg.FriendID, syncer)

	return syncer.Run(ctx)
}

// printer writes each batch and acknowledges the friend's messages.
func printer(out io.Writer, client *chatclient.Client, friendID uuid.UUID) chatclient.Handler {
	var typing bool
	return func(ctx context.Context, messages []models.Message, isTyping bool) error {
		incoming := false
		for _, m := range messages {
			fmt.Fprintln(out, formatMessage(m))
			if m.SenderID == friendID {
				incoming = true
			}
		}
		if isTyping != typing {
			typing = isTyping
			if isTyping {
				fmt.Fprintln(out, "... typing")
			}
		}
		if incoming {
			if _, err := client.MarkRead(ctx, friendID); err != nil {
				logging.Warn("Failed to mark messages read", map[string]interface{}{"error": err.Error()})
			}
		}
		return nil
	}
}

func formatMessage(m models.Message) string {
	name := m.SenderDisplayName
	if name == "" {
		name = m.SenderID.String()[:8]
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04:05"), name, m.Content)
}

// relayWaker polls early when a hint concerns the open conversation.
func relayWaker(syncer *chatclient.Syncer, friendID uuid.UUID) nats.MsgHandler {
	return func(msg *nats.Msg) {
		var event models.RelayEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.Debug("Ignoring malformed relay hint", map[string]interface{}{"error": err.Error()})
			return
		}
		if event.FromUserID == friendID {
			syncer.Wake()
		}
	}
}

// readInput sends each stdin line as a message. The terminal hands over whole
// lines only, so this client never reports typing.
func readInput(ctx context.Context, in io.Reader, client *chatclient.Client, friendID uuid.UUID, syncer *chatclient.Syncer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, err := client.Send(ctx, friendID, line); err != nil {
			logging.Warn("Failed to send message", map[string]interface{}{"error": err.Error()})
			continue
		}
		syncer.Wake()
	}
}
