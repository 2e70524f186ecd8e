package notify

import (
	"context"
	"sync"
	"time"
)

// Event types published on translation lifecycle transitions.
const (
	EventTranslationRequested = "translation.requested"
	EventTranslationDone      = "translation.done"
	EventTranslationFailed    = "translation.failed"
	EventTranslationDiscarded = "translation.discarded"
	EventTranslationAborted   = "translation.aborted"
)

type Event struct {
	Type           string    `json:"type"`
	VideoID        string    `json:"videoId"`
	TargetLanguage string    `json:"targetLanguage,omitempty"`
	Error          string    `json:"error,omitempty"`
	At             time.Time `json:"at"`
}

// Publisher delivers lifecycle events. Failures are reported to the caller,
// which treats them as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	events := r.Events()
	ret := make([]string, 0, len(events))
	for _, e := range events {
		ret = append(ret, e.Type)
	}
	return ret
}
