package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SweepIDHeader is set on every published message.
const SweepIDHeader = "Dino-Sweep-Id"

// NATSPublisher implements Publisher using NATS. Status events go to the base subject,
// episode events to <subject>.episodes, and failed or interrupted statuses are also
// copied to <subject>.error.
type NATSPublisher struct {
	conn       *nats.Conn
	publishMsg func(*nats.Msg) error
	subject    string
	logger     zerolog.Logger
}

// NewNATSPublisher connects to natsURL.
func NewNATSPublisher(natsURL, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("dinosweep"),
		nats.MaxReconnects(5),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: conn, publishMsg: conn.PublishMsg, subject: subject, logger: logger}, nil
}

// Close flushes pending messages and closes the connection.
func (n *NATSPublisher) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// PublishSweepStatus implements Publisher.
func (n *NATSPublisher) PublishSweepStatus(_ context.Context, event SweepStatusEvent) error {
	if err := n.publish(n.subject, event.SweepID, event); err != nil {
		return err
	}
	if event.State == "failed" || event.State == "interrupted" {
		if err := n.publish(n.subject+".error", event.SweepID, event); err != nil {
			n.logger.Warn().Err(err).Str("sweep_id", event.SweepID).Msg("failed to copy status to error subject")
		}
	}
	return nil
}

// PublishEpisode implements Publisher.
func (n *NATSPublisher) PublishEpisode(_ context.Context, event EpisodeEvent) error {
	return n.publish(n.subject+".episodes", event.SweepID, event)
}

func (n *NATSPublisher) publish(subject, sweepID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", subject, err)
	}
	msg := nats.NewMsg(subject)
	msg.Header.Set(SweepIDHeader, sweepID)
	msg.Data = data
	if err := n.publishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	n.logger.Debug().Str("subject", subject).Str("sweep_id", sweepID).Msg("Published event")
	return nil
}
