package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"affectd/internal/interaction"
)

// WebSocketConfig configures the mobile/browser-facing transport: clients
// dial in over HTTP and upgrade to a socket at Path.
type WebSocketConfig struct {
	Path string
}

type wsInbound struct {
	Text string `json:"text"`
}

type wsOutbound struct {
	Text    string `json:"text"`
	Trigger string `json:"trigger,omitempty"`
}

// WebSocketTransport fans every connected client's text in to the shared
// interaction channel and fans every delivery out to all connected
// clients, since an always-on companion has no notion of "the" client.
type WebSocketTransport struct {
	cfg     WebSocketConfig
	logger  *slog.Logger
	events  chan interaction.Event
	upgrade websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewWebSocketTransport(cfg WebSocketConfig, logger *slog.Logger) *WebSocketTransport {
	return &WebSocketTransport{
		cfg:     cfg,
		logger:  logger,
		events:  make(chan interaction.Event, 64),
		clients: make(map[*websocket.Conn]struct{}),
		upgrade: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

// Start registers the upgrade handler on the default mux; callers that run
// their own chi router should instead call Handler directly.
func (t *WebSocketTransport) Start(ctx context.Context) error {
	http.HandleFunc(t.cfg.Path, t.Handler)
	go func() {
		<-ctx.Done()
		t.closeAll()
	}()
	return nil
}

func (t *WebSocketTransport) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrade.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	t.mu.Lock()
	t.clients[conn] = struct{}{}
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.clients, conn)
		t.mu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in wsInbound
		if err := json.Unmarshal(raw, &in); err != nil {
			continue
		}
		kind, ok := InferKind(in.Text)
		if !ok {
			continue
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
			t.logger.Warn("websocket event dropped, funnel full", "kind", kind)
		}
	}
}

func (t *WebSocketTransport) Events() <-chan interaction.Event {
	return t.events
}

func (t *WebSocketTransport) Deliver(ctx context.Context, payload Payload) (DeliverResult, error) {
	body, err := json.Marshal(wsOutbound{Text: payload.Text, Trigger: payload.Trigger})
	if err != nil {
		return DeliverResult{}, err
	}

	t.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(t.clients))
	for c := range t.clients {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	if len(conns) == 0 {
		return DeliverResult{Delivered: false, Reason: "no connected clients"}, nil
	}

	delivered := false
	for _, c := range conns {
		select {
		case <-ctx.Done():
			return DeliverResult{}, ctx.Err()
		default:
		}
		if err := c.WriteMessage(websocket.TextMessage, body); err == nil {
			delivered = true
		}
	}

	return DeliverResult{Delivered: delivered}, nil
}

func (t *WebSocketTransport) closeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for c := range t.clients {
		c.Close()
	}
	t.clients = make(map[*websocket.Conn]struct{})
}
