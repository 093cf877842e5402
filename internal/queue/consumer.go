package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/travel-booking/internal/logger"
)

// Consumer drains the notification queue and appends one line per event to
// <LogDir>/notifications.log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
}

func NewConsumer(url, queue, logDir string) *Consumer {
	return &Consumer{URL: url, Queue: queue, LogDir: logDir}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, redialing
// with exponential backoff (capped at 30s) whenever the connection drops.
// Malformed messages are rejected without requeue.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			logger.Errorf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Errorf("notify-consumer: consume loop ended: %v; reconnecting", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Errorf("notify-consumer: set QoS failed: %v", err)
	}
	if _, err := declareQueue(ch, c.Queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				logger.Errorf("notify-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false) // do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends it to the notifications log.
func (c *Consumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Kind == "" {
		return errors.New("event without kind")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	fpath := filepath.Join(c.LogDir, "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return WriteLine(f, ev)
}

// WriteLine formats ev as a single human-readable line.
func WriteLine(w io.Writer, ev Event) error {
	parts := []string{fmt.Sprintf("[%s] %s", ev.OccurredAt, ev.Kind)}
	if ev.BookingID != 0 {
		parts = append(parts, fmt.Sprintf("booking_id=%d", ev.BookingID))
	}
	if ev.BookingNumber != "" {
		parts = append(parts, "booking_number="+ev.BookingNumber)
	}
	if ev.TourID != 0 {
		parts = append(parts, fmt.Sprintf("tour_id=%d", ev.TourID))
	}
	if ev.Status != "" {
		parts = append(parts, "status="+ev.Status)
	}
	if ev.CustomerName != "" {
		parts = append(parts, fmt.Sprintf("customer=%q", ev.CustomerName))
	}
	if ev.CustomerEmail != "" {
		parts = append(parts, "email="+ev.CustomerEmail)
	}
	if ev.Participants != 0 {
		parts = append(parts, fmt.Sprintf("participants=%d", ev.Participants))
	}
	if ev.ApplicationID != 0 {
		parts = append(parts, fmt.Sprintf("application=%s#%d", ev.ApplicationType, ev.ApplicationID))
	}
	if ev.UserID != 0 {
		parts = append(parts, fmt.Sprintf("user_id=%d", ev.UserID))
	}
	if ev.Amount != 0 {
		parts = append(parts, fmt.Sprintf("amount=%d", ev.Amount))
	}
	_, err := io.WriteString(w, strings.Join(parts, " | ")+"\n")
	if err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
