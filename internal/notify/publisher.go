package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "quickreserve.events"

// AMQPPublisher is a Publisher backed by a RabbitMQ topic exchange.  Publish
// only enqueues; Run owns the connection and performs the deliveries.
type AMQPPublisher struct {
	url      string
	exchange string
	queue    chan Message
	dropped  atomic.Int64
	now      func() time.Time
}

// NewAMQPPublisher creates a publisher with a bounded queue of size buffer.
func NewAMQPPublisher(url, exchange string, buffer int) *AMQPPublisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		queue:    make(chan Message, buffer),
		now:      time.Now,
	}
}

// Publish enqueues the event, dropping it when the queue is full.
func (p *AMQPPublisher) Publish(event Event, city string, payload any) {
	msg := Message{Event: event, City: city, Payload: payload, SentAt: p.now().UTC()}
	select {
	case p.queue <- msg:
	default:
		n := p.dropped.Add(1)
		log.Printf("notify: queue full, dropped %s for %s (total dropped %d)", event, city, n)
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (p *AMQPPublisher) Dropped() int64 { return p.dropped.Load() }

// Run delivers queued events until ctx is cancelled, reconnecting to the
// broker with exponential backoff.  An event being delivered while the
// connection breaks is logged and lost.
func (p *AMQPPublisher) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(p.url)
		if err != nil {
			log.Printf("notify: dial broker failed: %v; retrying in %s", err, backoff)
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
		if err := p.deliver(ctx, conn); err != nil {
			log.Printf("notify: delivery loop ended: %v; reconnecting", err)
		}
		_ = conn.Close()
	}
}

func (p *AMQPPublisher) deliver(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			return fmt.Errorf("connection closed: %v", err)
		case msg := <-p.queue:
			body, err := json.Marshal(msg)
			if err != nil {
				log.Printf("notify: marshal %s failed: %v", msg.Event, err)
				continue
			}
			pub := amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    msg.SentAt,
				Type:         string(msg.Event),
				Body:         body,
			}
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = ch.PublishWithContext(pctx, p.exchange, RoutingKey(msg.City, msg.Event), false, false, pub)
			cancel()
			if err != nil {
				log.Printf("notify: publish %s failed: %v", msg.Event, err)
				return err
			}
		}
	}
}
