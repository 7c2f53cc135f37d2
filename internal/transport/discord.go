package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"affectd/internal/interaction"
)

// DiscordConfig configures the companion's single-channel Discord
// presence: one bot token, one DM/channel it watches and replies in.
type DiscordConfig struct {
	BotToken  string
	ChannelID string
}

type DiscordTransport struct {
	cfg     DiscordConfig
	session *discordgo.Session
	logger  *slog.Logger
	events  chan interaction.Event
}

func NewDiscordTransport(cfg DiscordConfig, logger *slog.Logger) *DiscordTransport {
	return &DiscordTransport{
		cfg:    cfg,
		logger: logger,
		events: make(chan interaction.Event, 64),
	}
}

func (t *DiscordTransport) Name() string { return "discord" }

func (t *DiscordTransport) Start(ctx context.Context) error {
	session, err := discordgo.New("Bot " + t.cfg.BotToken)
	if err != nil {
		return err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	session.AddHandler(t.handleMessageCreate)

	if err := session.Open(); err != nil {
		return err
	}
	t.session = session

	go func() {
		<-ctx.Done()
		t.session.Close()
	}()

	return nil
}

func (t *DiscordTransport) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if t.cfg.ChannelID != "" && m.ChannelID != t.cfg.ChannelID {
		return
	}

	kind, ok := InferKind(m.Content)
	if !ok {
		return
	}

	out := interaction.Event{
		EventID:   uuid.NewString(),
		Kind:      kind,
		Transport: t.Name(),
		Instant:   time.Now().UTC(),
	}

	select {
	case t.events <- out:
	default:
		t.logger.Warn("discord event dropped, funnel full", "kind", kind)
	}
}

func (t *DiscordTransport) Events() <-chan interaction.Event {
	return t.events
}

func (t *DiscordTransport) Deliver(ctx context.Context, payload Payload) (DeliverResult, error) {
	if t.session == nil {
		return DeliverResult{Delivered: false, Reason: "session not started"}, nil
	}
	if t.cfg.ChannelID == "" {
		return DeliverResult{Delivered: false, Reason: "no channel configured"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := t.session.ChannelMessageSend(t.cfg.ChannelID, payload.Text)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return DeliverResult{}, ctx.Err()
	case err := <-done:
		if err != nil {
			return DeliverResult{}, err
		}
		return DeliverResult{Delivered: true}, nil
	}
}
