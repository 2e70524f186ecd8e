package media

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MimeLyc/subtitle-editor/internal/apperr"
	"github.com/MimeLyc/subtitle-editor/internal/timeline"
	"github.com/MimeLyc/subtitle-editor/pkg/log"
	"golang.org/x/text/language"
)

// DefaultSampleRate is the decode rate for peak sampling. Bars are 10ms wide
// so a low rate is plenty.
const DefaultSampleRate = 8000

type ffmpeg struct {
	ffmpegCmd  string
	ffprobeCmd string
	source     string
	sampleRate int
}

// NewFfmpeg accepts a local path or a URL ffmpeg can open.
func NewFfmpeg(source string) ffmpeg {
	if !strings.Contains(source, "://") {
		source = filepath.Clean(source)
	}
	return ffmpeg{
		ffmpegCmd:  "ffmpeg",
		ffprobeCmd: "ffprobe",
		source:     source,
		sampleRate: DefaultSampleRate,
	}
}

func (ff ffmpeg) ReadAudioStreams(ctx context.Context) ([]AudioStream, error) {
	cmdPath, err := exec.LookPath(ff.ffprobeCmd)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfig, "ffprobe not available")
	}
	output, runErr := exec.CommandContext(ctx, cmdPath, ff.readProbeArgs()...).Output()
	if runErr != nil && len(strings.TrimSpace(string(output))) == 0 {
		log.Error("Failed to run ffprobe on %s: %v", ff.source, runErr)
		return nil, apperr.Wrap(runErr, apperr.ErrUpstream, "ffprobe failed").WithContext("source", ff.source)
	}

	var probeResult struct {
		Streams []struct {
			Index      int    `json:"index"`
			CodecType  string `json:"codec_type"`
			CodecName  string `json:"codec_name"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
			Duration   string `json:"duration"`
			Tags       struct {
				Language string `json:"language"`
			} `json:"tags"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(output, &probeResult); err != nil {
		log.Error("Failed to parse ffprobe output: %v", err)
		return nil, apperr.Wrap(err, apperr.ErrParse, "invalid ffprobe output")
	}
	if runErr != nil && len(probeResult.Streams) == 0 {
		return nil, apperr.Wrap(runErr, apperr.ErrUpstream, "ffprobe failed").WithContext("source", ff.source)
	}

	streams := make([]AudioStream, 0, len(probeResult.Streams))
	for _, s := range probeResult.Streams {
		if s.CodecType != "audio" {
			continue
		}
		stream := AudioStream{
			Index:    s.Index,
			Codec:    s.CodecName,
			Channels: s.Channels,
			LangTag:  language.Und,
		}
		stream.SampleRate, _ = strconv.Atoi(s.SampleRate)
		stream.Duration, _ = strconv.ParseFloat(s.Duration, 64)
		if tag, err := language.Parse(s.Tags.Language); err == nil {
			stream.LangTag = tag
		}
		streams = append(streams, stream)
	}
	return streams, nil
}

// DecodeAudio returns the first audio track as mono float32 PCM at the
// decoder's sample rate.
func (ff ffmpeg) DecodeAudio(ctx context.Context) ([]float32, error) {
	cmdPath, err := exec.LookPath(ff.ffmpegCmd)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrConfig, "ffmpeg not available")
	}
	output, err := exec.CommandContext(ctx, cmdPath, ff.decodeArgs()...).Output()
	if err != nil {
		log.Error("Failed to decode audio of %s: %v", ff.source, err)
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "ffmpeg failed").WithContext("source", ff.source)
	}
	return decodeF32LE(output), nil
}

// Peaks decodes the audio and reduces it to normalised bars of interval seconds.
func (ff ffmpeg) Peaks(ctx context.Context, interval float64) ([]float32, error) {
	samples, err := ff.DecodeAudio(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("Decoded %d samples from %s", len(samples), ff.source)
	return timeline.SamplePeaks(samples, ff.sampleRate, interval), nil
}

func decodeF32LE(raw []byte) []float32 {
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples
}

func (ff ffmpeg) readProbeArgs() []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a",
		ff.source,
	}
}

func (ff ffmpeg) decodeArgs() []string {
	return []string{
		"-v", "quiet",
		"-i", ff.source,
		"-map", "0:a:0", // first audio track
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(ff.sampleRate),
		"-f", "f32le",
		"-",
	}
}
