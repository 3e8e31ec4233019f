package livestatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/model"
)

// StaleAfter is how long a "free" record may go without a refresh before the
// reconciler downgrades it to "unknown".
const StaleAfter = 2 * time.Hour

// ResetStale scans every live-status record and rewrites stale "free"
// records to "unknown".  Busy and unknown records are left alone; busy
// venues are expected to correct themselves with an explicit update.  It
// returns the number of records changed.  Malformed records are skipped.
func (s *Store) ResetStale(ctx context.Context) (int, error) {
	keys, err := s.kv.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("scan live statuses: %w", err)
	}
	now := s.now().UTC()
	threshold := now.Add(-StaleAfter)
	changed := 0
	for _, key := range keys {
		payload, err := s.kv.Get(ctx, key)
		if errors.Is(err, kvstore.ErrMiss) {
			continue
		}
		if err != nil {
			return changed, fmt.Errorf("read %s: %w", key, err)
		}
		rec, err := decode(payload)
		if err != nil || rec.UpdatedAt.IsZero() {
			log.Printf("livestatus: skipping malformed record %s", key)
			continue
		}
		if rec.Status != model.LiveFree || !rec.UpdatedAt.Before(threshold) {
			continue
		}
		rec.Status = model.LiveUnknown
		rec.UpdatedAt = now
		body, err := json.Marshal(rec)
		if err != nil {
			return changed, err
		}
		if err := s.kv.Set(ctx, key, string(body)); err != nil {
			return changed, fmt.Errorf("write %s: %w", key, err)
		}
		changed++
	}
	return changed, nil
}
