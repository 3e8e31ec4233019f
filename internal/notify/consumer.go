package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const consumerQueueName = "quickreserve.events.log"

// EventLog appends received events to <Dir>/events.log, one line per event.
type EventLog struct {
	Dir string
	mu  sync.Mutex
}

// Handle decodes a message body and appends its log line.
func (l *EventLog) Handle(body []byte) error {
	var msg struct {
		Event   Event           `json:"event"`
		City    string          `json:"city"`
		Payload json.RawMessage `json:"payload"`
		SentAt  time.Time       `json:"sent_at"`
	}
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if msg.Event == "" {
		return errors.New("missing event name")
	}
	payload := "{}"
	if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
		payload = string(msg.Payload)
	}
	line := fmt.Sprintf("[%s] %s | city=%q | payload=%s\n",
		msg.SentAt.UTC().Format(time.RFC3339), msg.Event, msg.City, payload)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", l.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(l.Dir, "events.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// Consume binds a durable queue to every event on the exchange and feeds
// deliveries to l until ctx is cancelled, reconnecting on failure.
func (l *EventLog) Consume(ctx context.Context, url, exchange string) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("event-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		if err := l.consumeLoop(ctx, conn, exchange); err != nil {
			log.Printf("event-consumer: consume loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
	}
}

func (l *EventLog) consumeLoop(ctx context.Context, conn *amqp.Connection, exchange string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("event-consumer: set QoS failed: %v", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(consumerQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(consumerQueueName, "city.#", exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(consumerQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := l.Handle(d.Body); err != nil {
				log.Printf("event-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
