package notify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRoutingKey(t *testing.T) {
	tests := []struct {
		city  string
		event Event
		want  string
	}{
		{"almaty", NewPlaceAdded, "city.almaty.new_place_added"},
		{" Astana ", LiveStatusChanged, "city.astana.live_status_changed"},
		{"ust.kamenogorsk", BookingCreated, "city.ust_kamenogorsk.booking_created"},
		{"", BookingCreated, "city.unknown.booking_created"},
	}
	for _, tt := range tests {
		if got := RoutingKey(tt.city, tt.event); got != tt.want {
			t.Errorf("RoutingKey(%q, %s) = %q, want %q", tt.city, tt.event, got, tt.want)
		}
	}
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	p := NewAMQPPublisher("amqp://unused", "", 2)
	for i := 0; i < 5; i++ {
		p.Publish(LiveStatusChanged, "almaty", map[string]string{"gis_id": "g1"})
	}
	if got := len(p.queue); got != 2 {
		t.Fatalf("queued = %d, want 2", got)
	}
	if got := p.Dropped(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
	msg := <-p.queue
	if msg.Event != LiveStatusChanged || msg.City != "almaty" || msg.SentAt.IsZero() {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestEventLogHandle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	l := &EventLog{Dir: dir}

	body := `{"event":"new_place_added","city":"almaty","payload":{"gis_id":"g1"},"sent_at":"2026-01-02T03:04:05Z"}`
	if err := l.Handle([]byte(body)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := l.Handle([]byte(`{"event":"booking_created","city":"astana","sent_at":"2026-01-02T03:04:06Z"}`)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "events.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{
		`[2026-01-02T03:04:05Z] new_place_added | city="almaty" | payload={"gis_id":"g1"}`,
		`[2026-01-02T03:04:06Z] booking_created | city="astana" | payload={}`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEventLogRejectsBadMessages(t *testing.T) {
	l := &EventLog{Dir: t.TempDir()}
	for _, body := range []string{"not json", `{"city":"almaty"}`} {
		if err := l.Handle([]byte(body)); err == nil {
			t.Errorf("Handle(%q) succeeded, want error", body)
		}
	}
}
