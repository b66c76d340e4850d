package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/HammerMeetNail/fitchat/internal/models"
)

// Relay publishes live wake-up hints to a user's channel. Delivery is best
// effort; clients fall back to polling.
type Relay interface {
	Publish(ctx context.Context, userID uuid.UUID, event models.RelayEvent) error
}

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

type NatsRelay struct {
	conn   natsPublisher
	prefix string
}

func NewNatsRelay(conn natsPublisher, prefix string) *NatsRelay {
	return &NatsRelay{conn: conn, prefix: prefix}
}

var natsConnect = nats.Connect

// ConnectNats dials the relay server, reconnecting forever in the background.
func ConnectNats(url, name string) (*nats.Conn, error) {
	nc, err := natsConnect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	return nc, nil
}

// RelaySubject is the per-user subject, e.g. fitchat.user.<id>.
func RelaySubject(prefix string, userID uuid.UUID) string {
	return fmt.Sprintf("%s.%s", prefix, userID)
}

func (r *NatsRelay) Publish(ctx context.Context, userID uuid.UUID, event models.RelayEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding relay event: %w", err)
	}
	if err := r.conn.Publish(RelaySubject(r.prefix, userID), data); err != nil {
		return fmt.Errorf("publishing relay event: %w", err)
	}
	return nil
}
