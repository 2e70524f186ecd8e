package translation

import (
	"time"
)

type Status string

const (
	StatusNone    Status = "none"
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusAborted Status = "aborted"
)

// Record is the persisted translation job state of one video. An absent
// record means StatusNone.
type Record struct {
	Status         Status     `json:"status"`
	TargetLanguage string     `json:"targetLanguage,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	SRT            string     `json:"srt,omitempty"`
}

// Key is the store key of a video's translation record.
func Key(videoID string) string {
	return "subtitle-translation-" + videoID
}

// Evaluate computes the effective status of rec at now. When reset is true the
// stored record is stale and has to be removed, so the next evaluation yields
// StatusNone.
func Evaluate(rec *Record, now time.Time, timeout time.Duration) (status Status, reset bool) {
	if rec == nil {
		return StatusNone, false
	}

	switch rec.Status {
	case StatusDone:
		return StatusDone, false
	case StatusAborted:
		return StatusAborted, true
	case StatusPending:
		if rec.Date == nil {
			return StatusNone, true
		}
		if now.Sub(*rec.Date) > timeout {
			return StatusAborted, true
		}
		return StatusPending, false
	default:
		return StatusNone, false
	}
}

// Creatable reports whether a new job may start from status.
func Creatable(status Status) bool {
	return status == StatusNone || status == StatusAborted
}
