// Package transport is the Core's view of the outside world: a Transport
// delivers a rendered message to wherever the person actually is (MQTT
// terminal, Discord DM, browser socket), and feeds raw inbound events back
// to the Scheduler's funnel as interaction.Event values. The core never
// depends on a specific wire protocol; it depends on this contract.
package transport

import (
	"context"
	"time"

	"affectd/internal/interaction"
)

// Payload is one outbound message the Scheduler asks a Transport to
// deliver, either a reply or an autonomy-triggered message.
type Payload struct {
	Text    string
	Trigger string // "" for a direct reply, else the autonomy trigger name
}

// DeliverResult reports what happened to a Deliver call, for audit and
// for the delivered flag recorded alongside autonomy events.
type DeliverResult struct {
	Delivered bool
	Reason    string
}

// Transport is a bidirectional channel between the core and one surface.
// Deliver pushes a payload out; Events yields a read-only stream of
// interaction events the Scheduler folds into its funnel. A Transport
// that cannot currently reach anyone (terminal offline, socket closed)
// returns a DeliverResult with Delivered=false rather than an error, so a
// single unreachable surface never stalls the tick loop; Deliver returns
// an error only for request-level failures (timeout, malformed payload).
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Deliver(ctx context.Context, payload Payload) (DeliverResult, error)
	Events() <-chan interaction.Event
}

// DefaultDeliverTimeout is the reference bound for a single Deliver call.
// The Scheduler does not read it: it wraps every call in a context whose
// deadline comes from its own SendTimeout setting (default also 10s).
const DefaultDeliverTimeout = 10 * time.Second
