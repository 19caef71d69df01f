package party

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Conn is one member connection as seen by the hub.
type Conn interface {
	// ID returns an identifier unique among live connections.
	ID() string

	// Send delivers one encoded event. Implementations must be safe for
	// concurrent use with other connections' Send calls.
	Send(ctx context.Context, payload []byte) error
}

// Hub fans encoded events out to member connections.
type Hub struct {
	logger zerolog.Logger
}

// NewHub creates a hub that logs delivery failures to logger.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
	}
}

// Broadcast encodes event once and delivers it to every connection
// concurrently. It returns after every send has completed or failed.
// Delivery failures are logged and never returned; only an encoding
// failure is.
func (h *Hub) Broadcast(ctx context.Context, conns []Conn, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	var wg conc.WaitGroup
	for _, c := range conns {
		wg.Go(func() {
			if err := c.Send(ctx, payload); err != nil {
				h.logger.Warn().
					Err(err).
					Str("conn", c.ID()).
					Msg("Failed to deliver event")
			}
		})
	}
	wg.Wait()

	return nil
}

// SendTo delivers event to exactly one connection and returns any failure.
func (h *Hub) SendTo(ctx context.Context, conn Conn, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	if err := conn.Send(ctx, payload); err != nil {
		return fmt.Errorf("failed to send to %s: %w", conn.ID(), err)
	}

	return nil
}
