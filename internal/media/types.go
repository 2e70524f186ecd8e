package media

import (
	"context"

	"golang.org/x/text/language"
)

// AudioStream is one audio track reported by ffprobe.
type AudioStream struct {
	Index      int
	Codec      string
	SampleRate int
	Channels   int
	Duration   float64 // seconds, 0 when unknown
	LangTag    language.Tag
}

// Operator reads the audio of a media file or URL for the timeline waveform.
type Operator interface {
	ReadAudioStreams(ctx context.Context) ([]AudioStream, error)
	DecodeAudio(ctx context.Context) ([]float32, error)
	Peaks(ctx context.Context, interval float64) ([]float32, error)
}

func NewOperator(mediaPath string) Operator {
	return NewFfmpeg(mediaPath)
}
