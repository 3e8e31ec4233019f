// Package notify delivers fire-and-forget domain events to subscribers
// grouped by city.  Publishing never blocks a request: events are queued in
// memory and a background goroutine hands them to RabbitMQ.
package notify

import (
	"fmt"
	"strings"
	"time"
)

// Event names a kind of notification.
type Event string

const (
	NewPlaceAdded     Event = "new_place_added"
	LiveStatusChanged Event = "live_status_changed"
	BookingCreated    Event = "booking_created"
)

// Message is the JSON body published to the exchange.
type Message struct {
	Event   Event     `json:"event"`
	City    string    `json:"city"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Publisher queues an event for the audience of a city.  Implementations
// must not block and must not fail the caller.
type Publisher interface {
	Publish(event Event, city string, payload any)
}

// RoutingKey builds the topic routing key city.<city>.<event>.  Dots and
// spaces inside the city name are replaced so they cannot split the topic.
func RoutingKey(city string, event Event) string {
	c := strings.ToLower(strings.TrimSpace(city))
	c = strings.NewReplacer(".", "_", " ", "_").Replace(c)
	if c == "" {
		c = "unknown"
	}
	return fmt.Sprintf("city.%s.%s", c, event)
}

// Nop discards every event.  It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(Event, string, any) {}
