package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

type TranscodeConfig struct {
	FFmpegPath string        // defaults to "ffmpeg" on PATH
	SampleRate int           // output rate, e.g. 16000
	Timeout    time.Duration // applied when ctx has no deadline
}

// Transcoder decodes non-WAV containers (mp3, ogg, m4a, ...) by piping them
// through ffmpeg to mono 16-bit little-endian PCM.
type Transcoder struct {
	cfg TranscodeConfig
}

func NewTranscoder(cfg TranscodeConfig) *Transcoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcoder{cfg: cfg}
}

// Available reports whether the ffmpeg binary can be found.
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.cfg.FFmpegPath)
	return err == nil
}

func (t *Transcoder) Decode(ctx context.Context, data []byte) (*Sample, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(
		ctx,
		t.cfg.FFmpegPath,
		"-v", "error",
		"-i", "pipe:0",
		"-ac", "1", // mono
		"-ar", strconv.Itoa(t.cfg.SampleRate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: ffmpeg: %v", ErrDecode, ctx.Err())
		}
		return nil, fmt.Errorf("%w: ffmpeg failed: %v (%s)", ErrDecode, err, bytes.TrimSpace(stderr.Bytes()))
	}

	samples, err := pcm16ToFloat64(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(samples) == 0 {
		return nil, ErrEmptySignal
	}

	return &Sample{Samples: samples, SampleRate: t.cfg.SampleRate}, nil
}

// pcm16ToFloat64 converts raw mono s16le bytes to floats in [-1, 1].
func pcm16ToFloat64(data []byte) ([]float64, error) {
	const scale = 1.0 / 32768.0

	n := len(data) / 2
	raw := make([]int16, n)
	if err := binary.Read(bytes.NewReader(data[:n*2]), binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("decoding PCM samples: %w", err)
	}
	out := make([]float64, n)
	for i, s := range raw {
		out[i] = float64(s) * scale
	}
	return out, nil
}

// Decoder decodes WAV natively and, when a Transcoder is set, falls back to
// ffmpeg for non-RIFF input and for WAV files whose encoding is not decoded
// natively.
type Decoder struct {
	Transcoder *Transcoder
}

func (d *Decoder) Decode(ctx context.Context, data []byte) (*Sample, error) {
	s, err := Decode(data)
	if err == nil {
		return s, nil
	}
	if d == nil || d.Transcoder == nil || !errors.Is(err, ErrDecode) {
		return nil, err
	}
	if IsRIFF(data) && !errors.Is(err, errUnsupportedEncoding) {
		return nil, err
	}
	return d.Transcoder.Decode(ctx, data)
}
