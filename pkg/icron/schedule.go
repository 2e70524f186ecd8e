package icron

import (
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/subtitle-editor/pkg/log"
	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs at fixed intervals. A job that is still running
// when its next tick fires is skipped, and panics are recovered.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			// Recover must be innermost: a panic escaping SkipIfStillRunning
			// would keep the entry marked as running forever.
			cron.WithChain(cron.SkipIfStillRunning(logger), cron.Recover(logger)),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Every registers fn under name, replacing a previous job of that name.
// Intervals are rounded down to whole seconds.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval < time.Second {
		return fmt.Errorf("interval %s for %q is below one second", interval, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
	}
	s.entries[name] = s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))
	return nil
}

// Remove stops scheduling name. Unknown names are ignored.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[name]; ok {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
}

// Next reports when name fires next. It is zero until the scheduler started.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug("cron: %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error("cron: %s: %v %v", msg, err, keysAndValues)
}
