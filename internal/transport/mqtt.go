package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"affectd/internal/interaction"
)

// MQTTConfig configures the terminal-facing transport. A single topic
// prefix scopes all subscriptions and publishes for this deployment.
type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

// inboundEvent is the wire shape a terminal publishes when it wants to
// report an interaction directly, bypassing lexical inference.
type inboundEvent struct {
	Kind    string          `json:"kind"`
	Instant time.Time       `json:"instant"`
	Context json.RawMessage `json:"context,omitempty"`
	Text    string          `json:"text,omitempty"`
}

type MQTTTransport struct {
	cfg    MQTTConfig
	client paho.Client
	logger *slog.Logger
	events chan interaction.Event
}

func NewMQTTTransport(cfg MQTTConfig, logger *slog.Logger) *MQTTTransport {
	return &MQTTTransport{
		cfg:    cfg,
		logger: logger,
		events: make(chan interaction.Event, 64),
	}
}

func (t *MQTTTransport) Name() string { return "mqtt" }

func (t *MQTTTransport) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(t.cfg.BrokerURL).
		SetClientID(t.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
		opts.SetPassword(t.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		t.logger.Error("mqtt connection lost", "error", err)
	})

	t.client = paho.NewClient(opts)
	if token := t.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	inboundTopic := fmt.Sprintf("%s/inbound/+", t.cfg.TopicPrefix)
	if token := t.client.Subscribe(inboundTopic, 1, t.handleInbound); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		t.client.Disconnect(250)
	}()

	return nil
}

func (t *MQTTTransport) handleInbound(_ paho.Client, msg paho.Message) {
	var ev inboundEvent
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		t.logger.Warn("invalid mqtt inbound payload", "topic", msg.Topic(), "error", err)
		return
	}

	kind := interaction.Kind(strings.ToLower(ev.Kind))
	if !interaction.Valid(kind) {
		inferred, ok := InferKind(ev.Text)
		if !ok {
			t.logger.Debug("mqtt inbound did not match any interaction kind", "topic", msg.Topic())
			return
		}
		kind = inferred
	}

	instant := ev.Instant
	if instant.IsZero() {
		instant = time.Now().UTC()
	}

	out := interaction.Event{
		EventID:   uuid.NewString(),
		Kind:      kind,
		Transport: t.Name(),
		Instant:   instant,
		Context:   ev.Context,
	}

	select {
	case t.events <- out:
	default:
		t.logger.Warn("mqtt event dropped, funnel full", "kind", kind)
	}
}

func (t *MQTTTransport) Events() <-chan interaction.Event {
	return t.events
}

func (t *MQTTTransport) Deliver(ctx context.Context, payload Payload) (DeliverResult, error) {
	if t.client == nil || !t.client.IsConnected() {
		return DeliverResult{Delivered: false, Reason: "not connected"}, nil
	}

	body, err := json.Marshal(map[string]string{
		"text":    payload.Text,
		"trigger": payload.Trigger,
	})
	if err != nil {
		return DeliverResult{}, err
	}

	topic := fmt.Sprintf("%s/outbound", t.cfg.TopicPrefix)
	token := t.client.Publish(topic, 1, false, body)

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return DeliverResult{}, ctx.Err()
	case <-done:
		if token.Error() != nil {
			return DeliverResult{}, token.Error()
		}
		return DeliverResult{Delivered: true}, nil
	}
}
