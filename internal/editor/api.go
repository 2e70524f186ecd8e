package editor

import (
	"context"
	"time"

	"github.com/MimeLyc/subtitle-editor/internal/editlock"
	"github.com/MimeLyc/subtitle-editor/internal/timeline"
	"github.com/MimeLyc/subtitle-editor/internal/translation"
)

// PluginAPI is the caption editor server.
type PluginAPI interface {
	GetLock(ctx context.Context, videoID string) (editlock.Lock, error)
	PutLock(ctx context.Context, videoID string, locked bool) (editlock.Lock, error)
	CheckStatus(ctx context.Context, videoID string) (translation.StatusResult, error)
	RequestTranslation(ctx context.Context, videoID, originalLanguage, targetLanguage, captions string) (string, error)
	Consume(ctx context.Context, videoID string) (bool, error)
	AvailablePairs(ctx context.Context) ([]translation.LanguagePair, error)
}

// CaptionInfo is one caption track listed by the host platform.
type CaptionInfo struct {
	LanguageID  string
	Label       string
	CaptionPath string
}

// Host is the video platform that stores caption files.
type Host interface {
	ListCaptions(ctx context.Context, videoID string) ([]CaptionInfo, error)
	FetchCaption(ctx context.Context, captionPath string) (string, error)
	UploadCaption(ctx context.Context, videoID, languageID, fileName, body string) error
	DeleteCaption(ctx context.Context, videoID, languageID string) error
	Languages(ctx context.Context) (map[string]string, error)
}

// View renders session state. Calls happen with the session lock held and
// must not call back into the session.
type View interface {
	RenderLanguages(captions []*timeline.Caption, current string)
	ShowEmptyState()
	SetTranslateEnabled(enabled bool)
	Reload()
	Warn(title, message string)
}

type Notifier interface {
	Success(title, message string)
	Error(title, message string)
}

// Scheduler runs named interval jobs; *icron.Scheduler implements it.
type Scheduler interface {
	Every(name string, interval time.Duration, fn func()) error
	Remove(name string)
	Start()
	Stop()
}

// AudioSource yields waveform bars for the timeline.
type AudioSource interface {
	Peaks(ctx context.Context, interval float64) ([]float32, error)
}
