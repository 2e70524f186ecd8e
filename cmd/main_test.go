package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/config"
	"github.com/MimeLyc/subtitle-editor/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	started bool
	stopped bool
}

func (f *fakeWorker) Start() { f.started = true }
func (f *fakeWorker) Stop()  { f.stopped = true }

type fakeHTTP struct {
	listenCalled chan struct{}
	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	listenErr    error
}

func newFakeHTTP() *fakeHTTP {
	return &fakeHTTP{
		listenCalled: make(chan struct{}),
		shutdownCh:   make(chan struct{}),
	}
}

func (f *fakeHTTP) ListenAndServe(string) error {
	close(f.listenCalled)
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTP) Shutdown(context.Context) error {
	f.shutdownOnce.Do(func() { close(f.shutdownCh) })
	return nil
}

func TestRunWithComponents_StartsAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workers := &fakeWorker{}
	httpSrv := newFakeHTTP()

	doneCh := make(chan error, 1)
	go func() {
		doneCh <- runWithComponents(ctx, "127.0.0.1:0", workers, httpSrv)
	}()

	select {
	case <-httpSrv.listenCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("http server did not start")
	}

	cancel()

	select {
	case err := <-doneCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runWithComponents did not exit after cancellation")
	}

	assert.True(t, workers.started)
	assert.True(t, workers.stopped)
}

func TestRunWithComponents_ReturnsListenError(t *testing.T) {
	httpSrv := newFakeHTTP()
	httpSrv.listenErr = errors.New("address in use")
	workers := &fakeWorker{}

	err := runWithComponents(context.Background(), ":1", workers, httpSrv)
	require.EqualError(t, err, "address in use")
	assert.True(t, workers.stopped)
}

func TestBuild_WiresSQLiteStack(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("DB_DSN", "")
	t.Setenv("SETTINGS_FILE", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("AMQP_URL", "")

	cfg, err := config.NewFromEnv()
	require.NoError(t, err)
	cfg.Storage.DSN = dir + "/editor.db"
	cfg.System.SettingsFile = dir + "/settings.yaml"

	a, err := build(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.server.Handler())
	assert.FileExists(t, cfg.System.SettingsFile)
}

func TestIssueToken_RejectsUnknownRole(t *testing.T) {
	err := issueToken(&tokenCmd{UserID: 1, Role: "owner"})
	assert.Error(t, err)
}

func TestLogNotifierSettlesOnce(t *testing.T) {
	n := &logNotifier{settled: make(chan error, 1)}
	n.Error("Error", "Translation aborted")
	n.Success("Translation ready", "ignored")

	assert.EqualError(t, <-n.settled, "Translation aborted")
}

func TestLogViewReload(t *testing.T) {
	v := &logView{reloaded: make(chan struct{}, 1)}
	v.RenderLanguages([]*timeline.Caption{{LanguageID: "en"}}, "en")
	v.Reload()
	v.Reload()

	select {
	case <-v.reloaded:
	default:
		t.Fatal("reload not signalled")
	}
}
