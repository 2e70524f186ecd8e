// Package editlock keeps the advisory "someone is editing captions" marker of
// a video. The lock never blocks writes; clients consult it to warn editors.
package editlock

import (
	"context"
	"encoding/json"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/kvstore"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

const (
	// FreshnessWindow is how long a heartbeat keeps the lock held.
	FreshnessWindow = 60 * time.Second
	// HeartbeatInterval is how often an open editor refreshes its lock.
	HeartbeatInterval = 30 * time.Second
)

// Lock is the stored lock record. Changed is an RFC 3339 timestamp or empty.
type Lock struct {
	Locked  bool   `json:"locked"`
	Changed string `json:"changed"`
}

// ChangedAt parses Changed, reporting false when it is empty or malformed.
func (l Lock) ChangedAt() (time.Time, bool) {
	if l.Changed == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, l.Changed)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsHeldByOther reports whether an editor elsewhere refreshed the lock within
// the freshness window.
func IsHeldByOther(lock Lock, now time.Time) bool {
	if !lock.Locked {
		return false
	}
	changed, ok := lock.ChangedAt()
	if !ok {
		return false
	}
	return now.Sub(changed) < FreshnessWindow
}

func Key(videoID string) string {
	return "subtitle-lock-" + videoID
}

type Manager struct {
	store kvstore.Store
	now   func() time.Time
}

func NewManager(store kvstore.Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now}
}

// Get returns the stored lock, or the unlocked zero record.
func (m *Manager) Get(ctx context.Context, videoID string) (Lock, error) {
	raw, found, err := m.store.Get(ctx, Key(videoID))
	if err != nil {
		return Lock{}, apperr.Wrap(err, apperr.ErrStorage, "failed to read lock").WithContext("video", videoID)
	}
	if !found {
		return Lock{}, nil
	}

	var lock Lock
	if err := json.Unmarshal(raw, &lock); err != nil {
		log.Warn("Ignoring unreadable lock of video %s: %v", videoID, err)
		return Lock{}, nil
	}
	return lock, nil
}

// Heartbeat overwrites the lock with {locked, now}. Last writer wins.
func (m *Manager) Heartbeat(ctx context.Context, videoID string, locked bool) (Lock, error) {
	lock := Lock{
		Locked:  locked,
		Changed: m.now().UTC().Format(time.RFC3339Nano),
	}
	if err := kvstore.SetJSON(ctx, m.store, Key(videoID), lock); err != nil {
		return Lock{}, apperr.Wrap(err, apperr.ErrStorage, "failed to write lock").WithContext("video", videoID)
	}
	return lock, nil
}

// ParseLocked reads the "locked" field of a PUT body. Only a literal JSON
// true locks; any other value, or an unreadable body, unlocks.
func ParseLocked(body []byte) bool {
	var payload struct {
		Locked json.RawMessage `json:"locked"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}
	return string(payload.Locked) == "true"
}
