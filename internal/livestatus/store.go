// Package livestatus keeps the per-venue open/busy indicator in the cache
// and reconciles records whose owners stopped refreshing them.
package livestatus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/quickreserve/internal/kvstore"
	"github.com/iliyamo/quickreserve/internal/model"
)

// KeyPrefix namespaces live-status records in the cache.
const KeyPrefix = "live:status:"

// Record is the JSON payload stored under KeyPrefix+<external id>.
type Record struct {
	Status    model.LiveStatus `json:"status"`
	City      string           `json:"city"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Key returns the cache key for a venue's external id.
func Key(externalID string) string { return KeyPrefix + externalID }

// Store reads and writes live-status records.
type Store struct {
	kv  kvstore.Store
	now func() time.Time
}

// NewStore binds a Store to a cache.
func NewStore(kv kvstore.Store) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SetStatus overwrites the venue's record with a fresh timestamp.  No TTL is
// applied.
func (s *Store) SetStatus(ctx context.Context, externalID string, status model.LiveStatus, city string) error {
	body, err := json.Marshal(Record{Status: status, City: city, UpdatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, Key(externalID), string(body)); err != nil {
		return fmt.Errorf("set live status %s: %w", externalID, err)
	}
	return nil
}

// GetStatuses reads the statuses of ids in one batch.  Every requested id is
// present in the result; missing or malformed records map to offline.  Cache
// errors are logged and also yield offline.
func (s *Store) GetStatuses(ctx context.Context, ids []string) map[string]model.LiveStatus {
	out := make(map[string]model.LiveStatus, len(ids))
	if len(ids) == 0 {
		return out
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
		out[id] = model.LiveOffline
	}
	raw, err := s.kv.MGet(ctx, keys...)
	if err != nil {
		log.Printf("livestatus: batch read failed: %v", err)
		return out
	}
	for i, id := range ids {
		payload, ok := raw[keys[i]]
		if !ok {
			continue
		}
		rec, err := decode(payload)
		if err != nil {
			log.Printf("livestatus: malformed record %s: %v", keys[i], err)
			continue
		}
		out[id] = rec.Status
	}
	return out
}

// decode parses a stored payload.  A record without a status field reads as
// unknown; an unrecognized status is an error.
func decode(payload string) (Record, error) {
	var raw struct {
		Status    string    `json:"status"`
		City      string    `json:"city"`
		UpdatedAt time.Time `json:"updated_at"`
	}
	if err := json.NewDecoder(strings.NewReader(payload)).Decode(&raw); err != nil {
		return Record{}, err
	}
	rec := Record{Status: model.LiveUnknown, City: raw.City, UpdatedAt: raw.UpdatedAt}
	if raw.Status != "" {
		st, err := model.ParseLiveStatus(raw.Status)
		if err != nil {
			return Record{}, err
		}
		rec.Status = st
	}
	return rec, nil
}
