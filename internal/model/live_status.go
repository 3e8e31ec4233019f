package model

import "fmt"

// LiveStatus is the ephemeral open/busy indicator of a venue kept in the
// cache.  A venue without a record is Offline.
type LiveStatus string

const (
	LiveFree    LiveStatus = "free"
	LiveBusy    LiveStatus = "busy"
	LiveUnknown LiveStatus = "unknown"
	LiveOffline LiveStatus = "offline"
)

// ParseLiveStatus accepts any of the four statuses.
func ParseLiveStatus(s string) (LiveStatus, error) {
	switch LiveStatus(s) {
	case LiveFree, LiveBusy, LiveUnknown, LiveOffline:
		return LiveStatus(s), nil
	}
	return "", fmt.Errorf("unknown live status %q", s)
}

// ParseOwnerStatus accepts only the statuses an owner may set explicitly.
// offline is implied by the absence of a record and cannot be written.
func ParseOwnerStatus(s string) (LiveStatus, error) {
	st, err := ParseLiveStatus(s)
	if err != nil {
		return "", err
	}
	switch st {
	case LiveFree, LiveBusy, LiveUnknown:
		return st, nil
	case LiveOffline:
	}
	return "", fmt.Errorf("status %q cannot be set explicitly", s)
}
