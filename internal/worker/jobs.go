package worker

import (
	"context"
	"time"

	"github.com/iliyamo/quickreserve/internal/livestatus"
	"github.com/iliyamo/quickreserve/internal/service"
)

const (
	ReleaseExpiredPending = "release-expired-pending"
	ResetStaleLiveStatus  = "reset-stale-live-status"
)

// DefaultJobs returns the two maintenance sweeps with their standard
// intervals.
func DefaultJobs(reservations *service.ReservationService, statuses *livestatus.Store) []Job {
	return []Job{
		{
			Name:  ReleaseExpiredPending,
			Every: 10 * time.Minute,
			Run:   reservations.ReleaseExpired,
		},
		{
			Name:  ResetStaleLiveStatus,
			Every: 2 * time.Hour,
			Run: func(ctx context.Context) (int64, error) {
				n, err := statuses.ResetStale(ctx)
				return int64(n), err
			},
		},
	}
}
