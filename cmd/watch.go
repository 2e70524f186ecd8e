package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/MimeLyc/subtitle-editor/internal/editor"
	"github.com/MimeLyc/subtitle-editor/internal/media"
	"github.com/MimeLyc/subtitle-editor/internal/timeline"
	"github.com/MimeLyc/subtitle-editor/pkg/icron"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
)

type watchCmd struct {
	Video       string `arg:"--video,required" help:"video uuid"`
	Host        string `arg:"--host,required,env:HOST_URL" help:"video platform base URL"`
	Token       string `arg:"--token,env:EDITOR_TOKEN" help:"bearer token for the platform and the plugin"`
	TranslateTo string `arg:"--translate-to" help:"request a translation of the first caption into this language"`
	Media       string `arg:"--media" help:"media file or URL to sample audio peaks from"`
}

// logView reports session updates to the log instead of a page.
type logView struct {
	reloaded chan struct{}
}

func (v *logView) RenderLanguages(captions []*timeline.Caption, current string) {
	ids := make([]string, 0, len(captions))
	for _, c := range captions {
		ids = append(ids, c.LanguageID)
	}
	log.Info("Captions: [%s] current=%s", strings.Join(ids, ", "), current)
}

func (v *logView) ShowEmptyState() {
	log.Info("No captions yet, waiting for the first transcription")
}

func (v *logView) SetTranslateEnabled(enabled bool) {
	log.Debug("Translate control enabled=%t", enabled)
}

func (v *logView) Reload() {
	select {
	case v.reloaded <- struct{}{}:
	default:
	}
}

func (v *logView) Warn(title, message string) {
	log.Warn("%s %s", title, message)
}

// logNotifier ends the watch once a translation settles.
type logNotifier struct {
	settled chan error
}

func (n *logNotifier) Success(title, message string) {
	log.Info("%s: %s", title, message)
	n.settle(nil)
}

func (n *logNotifier) Error(title, message string) {
	log.Error("%s: %s", title, message)
	n.settle(fmt.Errorf("%s", message))
}

func (n *logNotifier) settle(err error) {
	select {
	case n.settled <- err:
	default:
	}
}

// watch runs an editor session without a page. It returns when a translation
// is stored or aborted, or when ctx ends.
func watch(ctx context.Context, cmd *watchCmd) error {
	base := strings.TrimRight(cmd.Host, "/")
	view := &logView{reloaded: make(chan struct{}, 1)}
	notifier := &logNotifier{settled: make(chan error, 1)}

	opts := []editor.Option{editor.WithScheduler(icron.NewScheduler())}
	if cmd.Media != "" {
		opts = append(opts, editor.WithAudio(media.NewOperator(cmd.Media)))
	}
	session := editor.NewSession(cmd.Video,
		editor.NewPluginClient(base+editor.DefaultPluginPath, cmd.Token),
		editor.NewHostClient(base, cmd.Token),
		view, notifier, opts...)
	defer session.Close()

	if err := session.Mount(ctx); err != nil {
		return err
	}
	if bars := session.Peaks(); len(bars) > 0 {
		log.Info("Sampled %d audio bars", len(bars))
	}
	if cmd.TranslateTo != "" {
		if err := session.RequestTranslation(ctx, cmd.TranslateTo); err != nil {
			return err
		}
	}

	select {
	case err := <-notifier.settled:
		return err
	case <-view.reloaded:
		log.Info("Captions became available for video %s", cmd.Video)
		return nil
	case <-ctx.Done():
		return nil
	}
}
