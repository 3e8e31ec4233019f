package livestatus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/iliyamo/quickreserve/internal/model"
)

func TestResetStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	s, mem := newTestStore(now)

	put := func(id string, st model.LiveStatus, age time.Duration) {
		body, _ := json.Marshal(Record{Status: st, City: "almaty", UpdatedAt: now.Add(-age)})
		_ = mem.Set(ctx, Key(id), string(body))
	}
	put("fresh-free", model.LiveFree, 10*time.Minute)
	put("stale-free", model.LiveFree, 3*time.Hour)
	put("stale-busy", model.LiveBusy, 3*time.Hour)
	put("stale-unknown", model.LiveUnknown, 5*time.Hour)
	_ = mem.Set(ctx, Key("garbage"), "%%%")
	_ = mem.Set(ctx, Key("no-time"), `{"status":"free"}`)

	changed, err := s.ResetStale(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if changed != 1 {
		t.Fatalf("changed = %d, want 1", changed)
	}

	got := s.GetStatuses(ctx, []string{"fresh-free", "stale-free", "stale-busy", "stale-unknown"})
	want := map[string]model.LiveStatus{
		"fresh-free":    model.LiveFree,
		"stale-free":    model.LiveUnknown,
		"stale-busy":    model.LiveBusy,
		"stale-unknown": model.LiveUnknown,
	}
	for id, st := range want {
		if got[id] != st {
			t.Errorf("%s = %q, want %q", id, got[id], st)
		}
	}

	raw, _ := mem.Get(ctx, Key("stale-free"))
	var rec Record
	_ = json.Unmarshal([]byte(raw), &rec)
	if !rec.UpdatedAt.Equal(now) || rec.City != "almaty" {
		t.Fatalf("rewritten record = %+v", rec)
	}

	// A second run finds nothing left to change.
	if changed, err := s.ResetStale(ctx); err != nil || changed != 0 {
		t.Fatalf("second run changed = %d, err = %v", changed, err)
	}
}
