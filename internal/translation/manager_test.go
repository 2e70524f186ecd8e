package translation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/jobs"
	"github.com/MimeLyc/subtitle-editor/internal/kvstore"
	"github.com/MimeLyc/subtitle-editor/internal/notify"
)

const (
	videoID = "0f3c2b1a-4d5e-4f60-8a7b-9c0d1e2f3a4b"
	vttDoc  = "WEBVTT\n\n1\n00:00:01.000 --> 00:00:02.500\nHello\n\n2\n00:00:03.000 --> 00:00:04.000\nWorld\n"
	srtDoc  = "1\n00:00:01,000 --> 00:00:02,500\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\nWorld\n\n"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeService struct {
	release chan struct{}
	err     error
	calls   atomic.Int32

	mu      sync.Mutex
	lastSRT string
	lastSrc string
	lastDst string
	pairs   []LanguagePair

	deadline time.Time
}

func newFakeService() *fakeService {
	return &fakeService{release: make(chan struct{})}
}

func (f *fakeService) TranslateSRT(ctx context.Context, _ string, srt, source, target string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastSRT, f.lastSrc, f.lastDst = srt, source, target
	f.deadline, _ = ctx.Deadline()
	f.mu.Unlock()

	select {
	case <-f.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return "translated:" + target, nil
}

func (f *fakeService) LanguagePairs(ctx context.Context, _ string) ([]LanguagePair, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.deadline, _ = ctx.Deadline()
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.pairs, nil
}

func (f *fakeService) lastDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

type fixture struct {
	manager  *Manager
	store    *kvstore.MemoryStore
	service  *fakeService
	clock    *fakeClock
	recorder *notify.Recorder
}

func newFixture(t *testing.T, languages string) *fixture {
	t.Helper()
	f := &fixture{
		store:    kvstore.NewMemoryStore(),
		service:  newFakeService(),
		clock:    &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
		recorder: &notify.Recorder{},
	}
	settings := config.StaticSettings{
		TranslationAPIURL: "http://translator.local",
		TimeoutMinutes:    10,
		Languages:         languages,
	}
	f.manager = NewManager(f.store, f.service, jobs.NewQueue(2), settings,
		WithClock(f.clock.Now), WithPublisher(f.recorder))
	f.manager.Start()
	t.Cleanup(f.manager.Stop)
	return f
}

func (f *fixture) status(t *testing.T) StatusResult {
	t.Helper()
	res, err := f.manager.CheckStatus(context.Background(), videoID)
	require.NoError(t, err)
	return res
}

func (f *fixture) waitForStatus(t *testing.T, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		res, err := f.manager.CheckStatus(context.Background(), videoID)
		return err == nil && res.Status == want
	}, 2*time.Second, 10*time.Millisecond)
}

func (f *fixture) waitForEvent(t *testing.T, eventType string) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, e := range f.recorder.Types() {
			if e == eventType {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestManager_RequestThenDone(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	assert.Equal(t, StatusResult{Status: StatusNone}, f.status(t))

	res, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)
	assert.Equal(t, StatusResult{Status: StatusPending, TargetLanguage: "fr"}, f.status(t))

	close(f.service.release)
	f.waitForStatus(t, StatusDone)

	f.service.mu.Lock()
	assert.Equal(t, srtDoc, f.service.lastSRT)
	assert.Equal(t, "en", f.service.lastSrc)
	assert.Equal(t, "fr", f.service.lastDst)
	f.service.mu.Unlock()

	// done is idempotent until consumed
	first := f.status(t)
	second := f.status(t)
	assert.Equal(t, StatusResult{Status: StatusDone, TargetLanguage: "fr", SRT: "translated:fr"}, first)
	assert.Equal(t, first, second)

	consumed, err := f.manager.Consume(ctx, videoID)
	require.NoError(t, err)
	assert.True(t, consumed)
	assert.Equal(t, StatusNone, f.status(t).Status)
	assert.Equal(t, StatusNone, f.status(t).Status)

	assert.Equal(t, []string{notify.EventTranslationRequested, notify.EventTranslationDone}, f.recorder.Types())
}

func TestManager_DoubleRequestRunsOneJob(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	res, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)

	res, err = f.manager.RequestTranslation(ctx, videoID, "en", "de", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyPending, res)

	close(f.service.release)
	f.waitForStatus(t, StatusDone)
	assert.Equal(t, int32(1), f.service.calls.Load())
	assert.Equal(t, "fr", f.status(t).TargetLanguage)

	// an unconsumed result also blocks a new job
	res, err = f.manager.RequestTranslation(ctx, videoID, "en", "de", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyPending, res)
}

func TestManager_ConcurrentRequestsSingleWinner(t *testing.T) {
	f := newFixture(t, "")

	var pending atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.manager.RequestTranslation(context.Background(), videoID, "en", "fr", vttDoc)
			assert.NoError(t, err)
			if res == ResultPending {
				pending.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), pending.Load())
	close(f.service.release)
	f.waitForStatus(t, StatusDone)
	assert.Equal(t, int32(1), f.service.calls.Load())
}

func TestManager_TimeoutAbortsOnceAndDiscardsLateResult(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.service.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.clock.Advance(11 * time.Minute)
	assert.Equal(t, StatusResult{Status: StatusAborted, TargetLanguage: "fr"}, f.status(t))
	assert.Equal(t, StatusNone, f.status(t).Status)

	close(f.service.release)
	f.waitForEvent(t, notify.EventTranslationDiscarded)
	assert.Equal(t, StatusNone, f.status(t).Status)

	_, found, err := f.store.Get(ctx, Key(videoID))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_AbortedAllowsNewJob(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	f.clock.Advance(11 * time.Minute)

	res, err := f.manager.RequestTranslation(ctx, videoID, "en", "de", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)
	assert.Equal(t, "de", f.status(t).TargetLanguage)
	assert.Contains(t, f.recorder.Types(), notify.EventTranslationAborted)

	close(f.service.release)
	f.waitForStatus(t, StatusDone)
	assert.Equal(t, "translated:de", f.status(t).SRT)
}

func TestManager_InvalidateDiscardsRunningJob(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	require.NoError(t, f.manager.Invalidate(ctx, videoID))
	assert.Equal(t, StatusNone, f.status(t).Status)

	close(f.service.release)
	f.waitForEvent(t, notify.EventTranslationDiscarded)
	assert.Equal(t, StatusNone, f.status(t).Status)
}

func TestManager_ServiceFailureResetsRecord(t *testing.T) {
	f := newFixture(t, "")
	f.service.err = apperr.New(apperr.ErrUpstream, "HTTP error! status: 502")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	close(f.service.release)

	f.waitForEvent(t, notify.EventTranslationFailed)
	assert.Equal(t, StatusNone, f.status(t).Status)

	res, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	assert.Equal(t, ResultPending, res)
}

func TestManager_PendingWithoutDateIsReset(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, Key(videoID), []byte(`{"status":"pending","targetLanguage":"fr"}`)))

	assert.Equal(t, StatusNone, f.status(t).Status)
	_, found, err := f.store.Get(ctx, Key(videoID))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_RequestValidation(t *testing.T) {
	f := newFixture(t, "en,fr")
	ctx := context.Background()

	tests := []struct {
		name     string
		orig     string
		target   string
		captions string
	}{
		{"invalid captions", "en", "fr", "garbage"},
		{"empty captions", "en", "fr", ""},
		{"blank captions", "en", "fr", "   \n"},
		{"header only", "en", "fr", "WEBVTT\n"},
		{"same language", "fr", "fr", vttDoc},
		{"bad target", "en", "", vttDoc},
		{"bad original", "en-!!", "fr", vttDoc},
		{"target not enabled", "en", "de", vttDoc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.RequestTranslation(ctx, videoID, tt.orig, tt.target, tt.captions)
			require.Error(t, err)
			assert.True(t, apperr.IsErrorType(err, apperr.ErrValidation))
		})
	}
	assert.Equal(t, StatusNone, f.status(t).Status)
	assert.Equal(t, int32(0), f.service.calls.Load())
}

func TestManager_DetectsMissingOriginalLanguage(t *testing.T) {
	f := newFixture(t, "")
	doc := "WEBVTT\n\n00:00:01.000 --> 00:00:04.000\nThe weather is lovely today and we are going for a long walk.\n\n" +
		"00:00:05.000 --> 00:00:08.000\nAfterwards everyone will have dinner together at the house.\n"

	_, err := f.manager.RequestTranslation(context.Background(), videoID, "", "fr", doc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.service.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.service.mu.Lock()
	defer f.service.mu.Unlock()
	assert.Equal(t, "en", f.service.lastSrc)
}

func TestManager_AvailablePairsFiltered(t *testing.T) {
	f := newFixture(t, "en,fr")
	f.service.pairs = []LanguagePair{{"en", "fr"}, {"en", "de"}, {"fr", "en"}}

	pairs, err := f.manager.AvailablePairs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []LanguagePair{{"en", "fr"}, {"fr", "en"}}, pairs)
}

func TestManager_ConsumeIgnoresPending(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)

	consumed, err := f.manager.Consume(ctx, videoID)
	require.NoError(t, err)
	assert.False(t, consumed)
	assert.Equal(t, StatusPending, f.status(t).Status)
}

func TestManager_AvailablePairsIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, "")
	f.service.pairs = []LanguagePair{{"en", "fr"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pairs, err := f.manager.AvailablePairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []LanguagePair{{"en", "fr"}}, pairs)

	deadline := f.service.lastDeadline()
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(PairsTimeout), deadline, 5*time.Second)
}

func TestManager_TranslationCallBoundedByJobTimeout(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.manager.RequestTranslation(context.Background(), videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return !f.service.lastDeadline().IsZero() }, time.Second, 5*time.Millisecond)

	assert.WithinDuration(t, time.Now().Add(10*time.Minute), f.service.lastDeadline(), 5*time.Second)
	close(f.service.release)
	f.waitForEvent(t, notify.EventTranslationDone)
}

func TestManager_StopLeavesRecordPending(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	_, err := f.manager.RequestTranslation(ctx, videoID, "en", "fr", vttDoc)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.service.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.manager.Stop()

	assert.Equal(t, StatusPending, f.status(t).Status)
	assert.NotContains(t, f.recorder.Types(), notify.EventTranslationFailed)

	f.clock.Advance(11 * time.Minute)
	assert.Equal(t, StatusAborted, f.status(t).Status)
}
