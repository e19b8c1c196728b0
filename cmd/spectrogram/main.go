package main

import (
	"flag"
	"fmt"
	"image"
	"image/draw"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/eligwz/spectrogram"

	"github.com/himanishpuri/VoiceDNA/pkg/logger"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/audio"
	"github.com/himanishpuri/VoiceDNA/pkg/voiceprint/features"
)

var (
	inputPath string
	outputDir string
	width     int
	height    int
)

func init() {
	flag.StringVar(&inputPath, "in", "samples", "WAV file or directory of WAV files")
	flag.StringVar(&outputDir, "out", "spectrograms", "Directory for PNG output")
	flag.IntVar(&width, "width", 2048, "Image width in pixels")
	flag.IntVar(&height, "height", 512, "Image height in pixels (frequency bins)")
}

// report is what render learned about one recording.
type report struct {
	Output     string
	Samples    int
	SampleRate int
	Summary    features.Summary
}

func main() {
	flag.Parse()
	log := logger.GetLogger().WithPrefix("spectrogram")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("Creating output dir: %v", err)
	}

	var failed int
	err := filepath.WalkDir(inputPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}

		rep, err := render(path, outputDir, width, height)
		if err != nil {
			log.Errorf("%s: %v", path, err)
			failed++
			return nil
		}
		log.Infof("%s: %d samples at %d Hz, pitch %s, rms %.4f -> %s",
			path, rep.Samples, rep.SampleRate, pitchString(rep.Summary.F0Mean), rep.Summary.RMS, rep.Output)
		return nil
	})
	if err != nil {
		log.Fatalf("Walking %s: %v", inputPath, err)
	}
	if failed > 0 {
		log.Fatalf("%d file(s) failed", failed)
	}
}

// render decodes a WAV file to mono and writes its spectrogram as PNG.
func render(path, outDir string, width, height int) (*report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sample, err := audio.Decode(data)
	if err != nil {
		return nil, err
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, width, height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	// Hamming window, FFT, linear magnitude
	spectrogram.Drawfft(
		img,
		sample.Samples,
		uint32(sample.SampleRate),
		uint32(height),
		false,
		false,
		true,
		false,
	)

	out := filepath.Join(outDir, filepath.Base(path)+".png")
	if err := spectrogram.SavePng(img, out); err != nil {
		return nil, fmt.Errorf("saving %s: %w", out, err)
	}

	sum, err := features.NewExtractor(features.DefaultConfig()).PitchEnergy(sample)
	if err != nil {
		// still a useful image; pitch is reported as unvoiced
		sum.F0Mean = math.NaN()
	}

	return &report{Output: out, Samples: sample.Len(), SampleRate: sample.SampleRate, Summary: sum}, nil
}

func pitchString(f0 float64) string {
	if math.IsNaN(f0) {
		return "unvoiced"
	}
	return fmt.Sprintf("%.1f Hz", f0)
}
