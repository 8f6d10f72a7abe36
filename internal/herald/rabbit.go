// Schildwächter's Genteel Folio
// Copyright Carsten Thiel 2025-2026
//
// SPDX-Identifier: Apache-2.0

package herald

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/schildwaechter/genteelfolio/internal/types"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// RabbitHerald publishes confirmations on a topic exchange
type RabbitHerald struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbitHerald(url, exchange string) (*RabbitHerald, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &RabbitHerald{conn: conn, ch: ch, exchange: exchange}, nil
}

func (h *RabbitHerald) AnnounceBooking(ctx context.Context, confirmation types.BookingConfirmation) error {
	body, err := json.Marshal(confirmation)
	if err != nil {
		return err
	}
	return h.ch.PublishWithContext(ctx, h.exchange, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    confirmation.ID.String(),
		Timestamp:    time.Now(),
		Headers:      traceHeaders(ctx),
		Body:         body,
	})
}

// the consumer continues our trace from these
func traceHeaders(ctx context.Context) amqp.Table {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}
	return headers
}

func (h *RabbitHerald) Close() error {
	if h.ch != nil {
		_ = h.ch.Close()
	}
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}
