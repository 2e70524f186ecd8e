// Package editor runs one caption editing session: it loads captions from
// the host, keeps the edit lock alive and polls the translation job.
package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/subtitle"
	"github.com/MimeLyc/subtitle-editor/internal/timeline"
	"github.com/MimeLyc/subtitle-editor/internal/translation"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

const (
	PollInterval = 15 * time.Second

	// PendingLanguageID marks the placeholder caption shown while a
	// translation is in flight.
	PendingLanguageID = "11"
	PendingLabel      = "Translation pending"

	pollJob      = "poll"
	heartbeatJob = "heartbeat"
)

// Session is the single owner of the editor state for one video. All methods
// serialize on one mutex so timer callbacks and user actions never interleave.
type Session struct {
	mu sync.Mutex

	videoID   string
	plugin    PluginAPI
	host      Host
	view      View
	notifier  Notifier
	scheduler Scheduler
	audio     AudioSource
	onRoute   func() bool
	now       func() time.Time

	timeline         *timeline.Timeline
	languages        map[string]string
	pairs            []translation.LanguagePair
	peaks            []float32
	waiting          bool
	translateEnabled bool
	mounted          bool
	closed           bool

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Session)

// WithLocation sets the check for "still on the editor route". Timers stop
// once it reports false.
func WithLocation(onRoute func() bool) Option {
	return func(s *Session) { s.onRoute = onRoute }
}

func WithScheduler(scheduler Scheduler) Option {
	return func(s *Session) { s.scheduler = scheduler }
}

func WithAudio(audio AudioSource) Option {
	return func(s *Session) { s.audio = audio }
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func NewSession(videoID string, plugin PluginAPI, host Host, view View, notifier Notifier, opts ...Option) *Session {
	s := &Session{
		videoID:          videoID,
		plugin:           plugin,
		host:             host,
		view:             view,
		notifier:         notifier,
		onRoute:          func() bool { return true },
		now:              time.Now,
		timeline:         timeline.New(),
		languages:        map[string]string{},
		translateEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mount loads the editor: lock check, captions, languages and pairs. It then
// starts the heartbeat and poll timers and runs the first of each.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return apperr.New(apperr.ErrConflict, "session already mounted")
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	lock, err := s.plugin.GetLock(ctx, s.videoID)
	if err != nil {
		return fmt.Errorf("failed to read edit lock: %w", err)
	}
	if editlock.IsHeldByOther(lock, s.now()) {
		s.view.Warn("Someone might be editing!",
			"If this is not you, make sure to coordinate with the other person or risk losing data.")
	}
	s.heartbeatLocked(ctx)

	pairs, err := s.plugin.AvailablePairs(ctx)
	if err != nil {
		s.view.Warn("Error", "The subtitle translator API cannot be reached. Please check the API URL in the plugin settings.")
		return fmt.Errorf("failed to load language pairs: %w", err)
	}
	s.pairs = pairs

	languages, err := s.host.Languages(ctx)
	if err != nil {
		return fmt.Errorf("failed to load languages: %w", err)
	}
	s.languages = languages

	captions, err := s.loadCaptions(ctx)
	if err != nil {
		return err
	}
	for _, c := range captions {
		s.timeline.AddCaption(c)
	}
	if len(captions) > 0 {
		s.timeline.Select(captions[0].LanguageID)
	}
	s.render()

	if s.audio != nil {
		peaks, err := s.audio.Peaks(ctx, timeline.DefaultPeakInterval)
		if err != nil {
			log.Warn("Audio peaks unavailable for video %s: %v", s.videoID, err)
		} else {
			s.peaks = peaks
		}
	}

	s.mounted = true
	if s.scheduler != nil {
		if err := s.scheduler.Every(heartbeatJob, editlock.HeartbeatInterval, s.onHeartbeat); err != nil {
			return err
		}
		if err := s.scheduler.Every(pollJob, PollInterval, s.onPoll); err != nil {
			return err
		}
		s.scheduler.Start()
	}

	if err := s.tickLocked(ctx); err != nil {
		log.Warn("Initial translation check for video %s failed: %v", s.videoID, err)
	}
	log.Info("Editor mounted for video %s with %d captions", s.videoID, len(captions))
	return nil
}

func (s *Session) onPoll() {
	if err := s.Tick(s.ctx); err != nil {
		log.Warn("Translation poll for video %s failed: %v", s.videoID, err)
	}
}

func (s *Session) onHeartbeat() {
	s.Heartbeat(s.ctx)
}

// Tick runs one poll: the empty-state checks, then the job status
// reconciliation, strictly in that order.
func (s *Session) Tick(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickLocked(ctx)
}

func (s *Session) tickLocked(ctx context.Context) error {
	if s.closed {
		return nil
	}
	if !s.onRoute() {
		s.stopTimer(pollJob)
		return nil
	}

	if s.waiting {
		captions, err := s.host.ListCaptions(ctx, s.videoID)
		if err != nil {
			return fmt.Errorf("failed to list captions: %w", err)
		}
		if len(captions) > 0 {
			s.waiting = false
			s.view.Reload()
			return nil
		}
	}

	if len(s.timeline.Captions()) == 0 {
		s.view.ShowEmptyState()
		s.waiting = true
	}

	status, err := s.plugin.CheckStatus(ctx, s.videoID)
	if err != nil {
		return fmt.Errorf("failed to check translation: %w", err)
	}

	switch status.Status {
	case translation.StatusNone:
	case translation.StatusPending:
		if s.timeline.Caption(PendingLanguageID) == nil {
			s.addPlaceholder()
			s.render()
		}
	case translation.StatusDone:
		return s.applyTranslation(ctx, status)
	case translation.StatusAborted:
		s.notifier.Error("Error", "Translation aborted")
		s.setTranslateEnabled(true)
		s.timeline.RemoveCaption(PendingLanguageID)
		s.render()
	default:
		log.Warn("Unknown translation status %q for video %s", status.Status, s.videoID)
	}
	return nil
}

// applyTranslation stores a finished translation as a new caption on the host
// and swaps the placeholder for it.
func (s *Session) applyTranslation(ctx context.Context, status translation.StatusResult) error {
	if status.SRT == "" {
		return nil
	}
	lang := status.TargetLanguage
	label := s.label(lang)

	if err := s.host.UploadCaption(ctx, s.videoID, lang, lang+".srt", status.SRT); err != nil {
		s.notifier.Error("Error", "Could not save the translation to "+label)
		return fmt.Errorf("failed to upload translation: %w", err)
	}

	s.notifier.Success("Translation ready", "Your translation to "+label+" is ready.")
	s.setTranslateEnabled(true)
	s.timeline.RemoveCaption(PendingLanguageID)

	caption := &timeline.Caption{LanguageID: lang, Label: label}
	if file, err := subtitle.ReadSRT(status.SRT); err == nil {
		caption.Cues = timeline.CuesFromFile(file)
	} else {
		log.Warn("Translated captions for video %s could not be parsed: %v", s.videoID, err)
	}
	s.timeline.PrependCaption(caption)
	if s.timeline.Current() == nil {
		s.timeline.Select(lang)
	}
	s.render()

	if _, err := s.plugin.Consume(ctx, s.videoID); err != nil {
		log.Warn("Failed to consume translation of video %s: %v", s.videoID, err)
	}
	return nil
}

// Heartbeat refreshes the edit lock while the editor route is shown.
func (s *Session) Heartbeat(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if !s.onRoute() {
		s.stopTimer(heartbeatJob)
		return
	}
	s.heartbeatLocked(ctx)
}

func (s *Session) heartbeatLocked(ctx context.Context) {
	if _, err := s.plugin.PutLock(ctx, s.videoID, true); err != nil {
		log.Warn("Lock heartbeat for video %s failed: %v", s.videoID, err)
	}
}

// RequestTranslation asks the server to translate the current caption into
// target. It only proceeds while no job exists for the video.
func (s *Session) RequestTranslation(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, err := s.plugin.CheckStatus(ctx, s.videoID)
	if err != nil {
		return fmt.Errorf("failed to check translation: %w", err)
	}
	if status.Status != translation.StatusNone {
		return apperr.New(apperr.ErrConflict, "a translation is already in progress").
			WithContext("status", status.Status)
	}

	current := s.timeline.Current()
	if current == nil || current.LanguageID == PendingLanguageID {
		return apperr.New(apperr.ErrValidation, "select a caption to translate")
	}
	if current.LanguageID == target {
		return apperr.New(apperr.ErrValidation, "can't translate to the same language")
	}

	captions, err := s.host.ListCaptions(ctx, s.videoID)
	if err != nil {
		return fmt.Errorf("failed to list captions: %w", err)
	}
	path := ""
	for _, c := range captions {
		if c.LanguageID == current.LanguageID {
			path = c.CaptionPath
		}
	}
	if path == "" {
		return apperr.New(apperr.ErrValidation, "no captions in the original language found").
			WithContext("language", current.LanguageID)
	}

	source, err := s.host.FetchCaption(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to fetch source captions: %w", err)
	}
	result, err := s.plugin.RequestTranslation(ctx, s.videoID, current.LanguageID, target, source)
	if err != nil {
		return fmt.Errorf("failed to request translation: %w", err)
	}
	log.Info("Translation of video %s from %s to %s: %s", s.videoID, current.LanguageID, target, result)

	if s.timeline.Caption(PendingLanguageID) == nil {
		s.addPlaceholder()
	} else {
		s.setTranslateEnabled(false)
	}
	s.render()
	return nil
}

// Save uploads the current caption as WebVTT.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.timeline.Current()
	if current == nil || current.LanguageID == PendingLanguageID {
		return nil
	}
	body := timeline.Serialize(current.Cues)
	if err := s.host.UploadCaption(ctx, s.videoID, current.LanguageID, current.LanguageID+".vtt", body); err != nil {
		return fmt.Errorf("failed to save caption %s: %w", current.LanguageID, err)
	}
	s.timeline.MarkSaved(current.LanguageID)
	s.render()
	return nil
}

// DeleteCurrent removes the current caption from the host and selects the
// next one.
func (s *Session) DeleteCurrent(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.timeline.Current()
	if current == nil {
		return nil
	}
	if current.LanguageID != PendingLanguageID {
		if err := s.host.DeleteCaption(ctx, s.videoID, current.LanguageID); err != nil {
			return fmt.Errorf("failed to delete caption %s: %w", current.LanguageID, err)
		}
	}
	s.timeline.RemoveCaption(current.LanguageID)
	s.render()
	return nil
}

// Edit runs fn against the timeline under the session lock. User gestures go
// through here.
func (s *Session) Edit(fn func(t *timeline.Timeline)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.timeline)
}

// Select switches the current caption.
func (s *Session) Select(languageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if languageID == PendingLanguageID || !s.timeline.Select(languageID) {
		return false
	}
	s.render()
	return true
}

// TranslationTargets lists the languages the current caption can be
// translated into.
func (s *Session) TranslationTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.timeline.Current()
	if current == nil {
		return nil
	}
	return translation.TargetsFor(s.pairs, current.LanguageID)
}

// UnsavedWarning is the prompt to show before leaving, empty when all
// captions are saved.
func (s *Session) UnsavedWarning() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.timeline.UnsavedCaption(); c != nil {
		return fmt.Sprintf("Unsaved changes in %s, leave now?", c.Label)
	}
	return ""
}

func (s *Session) Peaks() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peaks
}

func (s *Session) TranslateEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.translateEnabled
}

// Close stops the timers. The session cannot be mounted again.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	scheduler := s.scheduler
	s.mu.Unlock()

	// Stop waits for running callbacks, which need the lock to see closed.
	if scheduler != nil {
		scheduler.Remove(pollJob)
		scheduler.Remove(heartbeatJob)
		scheduler.Stop()
	}
	log.Debug("Editor session for video %s closed", s.videoID)
}

func (s *Session) loadCaptions(ctx context.Context) ([]*timeline.Caption, error) {
	infos, err := s.host.ListCaptions(ctx, s.videoID)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "can't find video").WithContext("video_id", s.videoID)
	}
	captions := make([]*timeline.Caption, 0, len(infos))
	for _, info := range infos {
		vtt, err := s.host.FetchCaption(ctx, info.CaptionPath)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch caption %s: %w", info.LanguageID, err)
		}
		caption, err := timeline.LoadCaption(info.LanguageID, info.Label, vtt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse caption %s: %w", info.LanguageID, err)
		}
		captions = append(captions, caption)
	}
	return captions, nil
}

func (s *Session) addPlaceholder() {
	s.timeline.PrependCaption(&timeline.Caption{LanguageID: PendingLanguageID, Label: PendingLabel})
	s.setTranslateEnabled(false)
}

func (s *Session) setTranslateEnabled(enabled bool) {
	s.translateEnabled = enabled
	s.view.SetTranslateEnabled(enabled)
}

func (s *Session) render() {
	current := ""
	if c := s.timeline.Current(); c != nil {
		current = c.LanguageID
	}
	s.view.RenderLanguages(s.timeline.Captions(), current)
}

func (s *Session) label(lang string) string {
	if label, ok := s.languages[lang]; ok {
		return label
	}
	return translation.LanguageLabel(lang)
}

func (s *Session) stopTimer(name string) {
	if s.scheduler != nil {
		s.scheduler.Remove(name)
	}
}
