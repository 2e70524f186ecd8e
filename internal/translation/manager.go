package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/jobs"
	"github.com/MimeLyc/subtitle-editor/internal/kvstore"
	"github.com/MimeLyc/subtitle-editor/internal/notify"
	"github.com/MimeLyc/subtitle-editor/internal/subtitle"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

// RequestResult is the outcome of a translation request.
type RequestResult string

const (
	ResultPending        RequestResult = "Translation pending"
	ResultAlreadyPending RequestResult = "Translation already pending"
)

// StatusResult is the poller facing view of a record.
type StatusResult struct {
	Status         Status `json:"status"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	SRT            string `json:"srt,omitempty"`
}

// PairsTimeout bounds one language pair lookup against the service.
const PairsTimeout = 30 * time.Second

type SettingsSource interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
}

// Manager owns the translation record of every video. All mutations of one
// video's record are serialized and written with compare-and-swap, so another
// process sharing the store cannot be clobbered either.
type Manager struct {
	store     kvstore.Store
	client    ServiceClient
	queue     *jobs.Queue
	settings  SettingsSource
	publisher notify.Publisher
	now       func() time.Time

	locks keyedMutex
	pairs singleflight.Group
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithPublisher(p notify.Publisher) Option {
	return func(m *Manager) {
		if p != nil {
			m.publisher = p
		}
	}
}

func NewManager(store kvstore.Store, client ServiceClient, queue *jobs.Queue, settings SettingsSource, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		client:    client,
		queue:     queue,
		settings:  settings,
		publisher: notify.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the background translation workers.
func (m *Manager) Start() {
	m.queue.Start(m.execute)
}

// Stop cancels in-flight translation calls. Their records are left pending and
// abort through the timeout, or complete when another process picks them up.
func (m *Manager) Stop() {
	m.queue.Stop()
}

// RequestTranslation starts a job unless one is pending or an unconsumed
// result exists. The external call runs in the background; the returned result
// only reports whether a job was started.
func (m *Manager) RequestTranslation(ctx context.Context, videoID, originalLanguage, targetLanguage, captions string) (RequestResult, error) {
	unlock := m.locks.Lock(videoID)
	defer unlock()

	settings, err := m.settings.GetRuntimeSettings()
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrConfig, "failed to read settings")
	}

	raw, rec, err := m.load(ctx, videoID)
	if err != nil {
		return "", err
	}
	status, raw, err := m.evaluate(ctx, videoID, raw, rec, settings.Timeout())
	if err != nil {
		return "", err
	}
	if !Creatable(status) {
		return ResultAlreadyPending, nil
	}

	file, err := subtitle.Parse(captions)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrValidation, "invalid caption source").WithContext("video", videoID)
	}
	if len(file.Lines) == 0 {
		return "", apperr.New(apperr.ErrValidation, "caption source has no cues").WithContext("video", videoID)
	}
	source, target, err := resolveLanguages(file, originalLanguage, targetLanguage, settings.AllowedLanguages())
	if err != nil {
		return "", err
	}

	now := m.now().UTC().Truncate(time.Millisecond)
	next, err := json.Marshal(Record{Status: StatusPending, TargetLanguage: target, Date: &now})
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	swapped, err := m.store.CompareAndSwap(ctx, Key(videoID), raw, next)
	if err != nil {
		return "", apperr.Wrap(err, apperr.ErrStorage, "failed to write translation record").WithContext("video", videoID)
	}
	if !swapped {
		return ResultAlreadyPending, nil
	}

	job, _ := m.queue.Enqueue(jobs.EnqueueRequest{
		Source:    "request",
		DedupeKey: videoID + "@" + now.Format(time.RFC3339Nano),
		Payload: jobs.Payload{
			VideoID:        videoID,
			SourceLanguage: source,
			TargetLanguage: target,
			SRT:            subtitle.FormatSRT(file.Lines),
			RequestedAt:    now,
		},
	})
	log.Info("Translation %s -> %s requested for video %s (%s)", source, target, videoID, job.ID)
	m.publish(ctx, notify.EventTranslationRequested, videoID, target, "")

	return ResultPending, nil
}

// CheckStatus reports the effective status. Stale records are reset as a side
// effect, so an aborted status is reported once.
func (m *Manager) CheckStatus(ctx context.Context, videoID string) (StatusResult, error) {
	unlock := m.locks.Lock(videoID)
	defer unlock()

	settings, err := m.settings.GetRuntimeSettings()
	if err != nil {
		return StatusResult{}, apperr.Wrap(err, apperr.ErrConfig, "failed to read settings")
	}

	raw, rec, err := m.load(ctx, videoID)
	if err != nil {
		return StatusResult{}, err
	}
	status, _, err := m.evaluate(ctx, videoID, raw, rec, settings.Timeout())
	if err != nil {
		return StatusResult{}, err
	}

	result := StatusResult{Status: status}
	switch status {
	case StatusPending, StatusAborted:
		result.TargetLanguage = rec.TargetLanguage
	case StatusDone:
		result.TargetLanguage = rec.TargetLanguage
		result.SRT = rec.SRT
	}
	return result, nil
}

// Invalidate drops the record, e.g. after a caption was uploaded by other means.
// A job still running for the video discards its result.
func (m *Manager) Invalidate(ctx context.Context, videoID string) error {
	unlock := m.locks.Lock(videoID)
	defer unlock()

	if err := m.store.Delete(ctx, Key(videoID)); err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "failed to delete translation record").WithContext("video", videoID)
	}
	log.Debug("Translation record of video %s invalidated", videoID)
	return nil
}

// Consume acknowledges a delivered result. Only a done record is removed.
func (m *Manager) Consume(ctx context.Context, videoID string) (bool, error) {
	unlock := m.locks.Lock(videoID)
	defer unlock()

	raw, rec, err := m.load(ctx, videoID)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Status != StatusDone {
		return false, nil
	}
	swapped, err := m.store.CompareAndSwap(ctx, Key(videoID), raw, nil)
	if err != nil {
		return false, apperr.Wrap(err, apperr.ErrStorage, "failed to consume translation record").WithContext("video", videoID)
	}
	return swapped, nil
}

// AvailablePairs returns the service's language pairs filtered by the
// configured allow-list. Concurrent calls share one upstream request.
func (m *Manager) AvailablePairs(ctx context.Context) ([]LanguagePair, error) {
	settings, err := m.settings.GetRuntimeSettings()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfig, "failed to read settings")
	}

	// shared by every waiting caller, so it must not carry one caller's cancellation
	v, err, _ := m.pairs.Do(settings.TranslationAPIURL, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PairsTimeout)
		defer cancel()
		return m.client.LanguagePairs(callCtx, settings.TranslationAPIURL)
	})
	if err != nil {
		return nil, err
	}
	return FilterPairs(v.([]LanguagePair), settings.AllowedLanguages()), nil
}

// Jobs returns snapshots of the queued and recently finished translation calls.
func (m *Manager) Jobs() []*jobs.Job {
	return m.queue.List()
}

func (m *Manager) Job(id string) (*jobs.Job, bool) {
	return m.queue.Get(id)
}

// execute runs one queued translation and stores its outcome if the record
// still belongs to the job.
func (m *Manager) execute(ctx context.Context, job *jobs.Job) error {
	p := job.Payload
	settings, err := m.settings.GetRuntimeSettings()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, settings.Timeout())
	translated, callErr := m.client.TranslateSRT(callCtx, settings.TranslationAPIURL, p.SRT, p.SourceLanguage, p.TargetLanguage)
	cancel()
	if callErr != nil && errors.Is(callErr, context.Canceled) && ctx.Err() != nil {
		log.Warn("Translation of video %s interrupted by shutdown, record left pending", p.VideoID)
		return callErr
	}

	// a call that completed is recorded even when the queue is shutting down
	storeCtx := context.WithoutCancel(ctx)
	unlock := m.locks.Lock(p.VideoID)
	defer unlock()

	raw, rec, err := m.load(storeCtx, p.VideoID)
	if err != nil {
		return err
	}
	if !ownsRecord(rec, p.RequestedAt) {
		log.Info("Discarding translation result of video %s, record changed meanwhile", p.VideoID)
		m.publish(storeCtx, notify.EventTranslationDiscarded, p.VideoID, p.TargetLanguage, "")
		return nil
	}

	if callErr != nil {
		log.Error("Translation of video %s failed: %v", p.VideoID, callErr)
		if _, err := m.store.CompareAndSwap(storeCtx, Key(p.VideoID), raw, nil); err != nil {
			log.Error("Failed to reset translation record of video %s: %v", p.VideoID, err)
		}
		m.publish(storeCtx, notify.EventTranslationFailed, p.VideoID, p.TargetLanguage, callErr.Error())
		return callErr
	}

	now := m.now().UTC()
	next, err := json.Marshal(Record{Status: StatusDone, TargetLanguage: p.TargetLanguage, Date: &now, SRT: translated})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	swapped, err := m.store.CompareAndSwap(storeCtx, Key(p.VideoID), raw, next)
	if err != nil {
		return apperr.Wrap(err, apperr.ErrStorage, "failed to store translation result").WithContext("video", p.VideoID)
	}
	if !swapped {
		log.Info("Discarding translation result of video %s, record changed meanwhile", p.VideoID)
		m.publish(storeCtx, notify.EventTranslationDiscarded, p.VideoID, p.TargetLanguage, "")
		return nil
	}

	log.Info("Translation of video %s to %s done", p.VideoID, p.TargetLanguage)
	m.publish(storeCtx, notify.EventTranslationDone, p.VideoID, p.TargetLanguage, "")
	return nil
}

// evaluate applies Evaluate and performs the reset it asks for. It returns the
// raw value now expected in the store.
func (m *Manager) evaluate(ctx context.Context, videoID string, raw []byte, rec *Record, timeout time.Duration) (Status, []byte, error) {
	status, reset := Evaluate(rec, m.now(), timeout)
	if !reset {
		return status, raw, nil
	}

	swapped, err := m.store.CompareAndSwap(ctx, Key(videoID), raw, nil)
	if err != nil {
		return "", nil, apperr.Wrap(err, apperr.ErrStorage, "failed to reset translation record").WithContext("video", videoID)
	}
	if !swapped {
		return "", nil, apperr.New(apperr.ErrConflict, "translation record changed concurrently").WithContext("video", videoID)
	}
	if status == StatusAborted {
		log.Warn("Translation of video %s timed out after %s", videoID, timeout)
		m.publish(ctx, notify.EventTranslationAborted, videoID, rec.TargetLanguage, "timeout")
	}
	return status, nil, nil
}

func (m *Manager) load(ctx context.Context, videoID string) ([]byte, *Record, error) {
	raw, ok, err := m.store.Get(ctx, Key(videoID))
	if err != nil {
		return nil, nil, apperr.Wrap(err, apperr.ErrStorage, "failed to read translation record").WithContext("video", videoID)
	}
	if !ok {
		return nil, nil, nil
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// an unreadable record is treated as absent and overwritten by the next job
		log.Warn("Ignoring malformed translation record of video %s: %v", videoID, err)
		return raw, nil, nil
	}
	return raw, &rec, nil
}

func (m *Manager) publish(ctx context.Context, eventType, videoID, target, reason string) {
	event := notify.Event{
		Type:           eventType,
		VideoID:        videoID,
		TargetLanguage: target,
		Error:          reason,
		At:             m.now().UTC(),
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		log.Warn("Failed to publish %s for video %s: %v", eventType, videoID, err)
	}
}

func ownsRecord(rec *Record, requestedAt time.Time) bool {
	return rec != nil && rec.Status == StatusPending && rec.Date != nil && rec.Date.Equal(requestedAt)
}

// resolveLanguages validates the requested direction. An empty source is
// guessed from the caption text.
func resolveLanguages(file *subtitle.File, originalLanguage, targetLanguage string, allowed []string) (string, string, error) {
	target := strings.TrimSpace(targetLanguage)
	targetTag, err := language.Parse(target)
	if err != nil || target == "" {
		return "", "", apperr.Newf(apperr.ErrValidation, "invalid target language %q", targetLanguage)
	}

	source := strings.TrimSpace(originalLanguage)
	var sourceTag language.Tag
	if source == "" {
		sourceTag = subtitle.DetectLanguage(file.Lines)
		if sourceTag == language.Und {
			return "", "", apperr.New(apperr.ErrValidation, "could not detect the caption language")
		}
		source = sourceTag.String()
	} else if sourceTag, err = language.Parse(source); err != nil {
		return "", "", apperr.Newf(apperr.ErrValidation, "invalid original language %q", originalLanguage)
	}

	if sourceTag == targetTag {
		return "", "", apperr.New(apperr.ErrValidation, "original and target language are the same").
			WithContext("language", target)
	}
	if len(allowed) > 0 && !slices.ContainsFunc(allowed, func(code string) bool { return sameLanguage(code, target) }) {
		return "", "", apperr.Newf(apperr.ErrValidation, "target language %q is not enabled", target)
	}
	return source, target, nil
}
