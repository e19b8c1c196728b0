package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
)

// rawWAV builds a canonical 44-byte-header WAV around pcm.
func rawWAV(format, numChans uint16, sampleRate uint32, bits uint16, pcm []byte) []byte {
	var b bytes.Buffer
	blockAlign := numChans * bits / 8
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(pcm)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, numChans)
	binary.Write(&b, binary.LittleEndian, sampleRate)
	binary.Write(&b, binary.LittleEndian, sampleRate*uint32(blockAlign))
	binary.Write(&b, binary.LittleEndian, blockAlign)
	binary.Write(&b, binary.LittleEndian, bits)
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

// extensibleWAV builds a WAVE_FORMAT_EXTENSIBLE file whose sub-format GUID
// carries subFormat.
func extensibleWAV(subFormat, numChans uint16, sampleRate uint32, bits uint16, pcm []byte) []byte {
	var b bytes.Buffer
	blockAlign := numChans * bits / 8
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(60+len(pcm)))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(40))
	binary.Write(&b, binary.LittleEndian, uint16(0xFFFE))
	binary.Write(&b, binary.LittleEndian, numChans)
	binary.Write(&b, binary.LittleEndian, sampleRate)
	binary.Write(&b, binary.LittleEndian, sampleRate*uint32(blockAlign))
	binary.Write(&b, binary.LittleEndian, blockAlign)
	binary.Write(&b, binary.LittleEndian, bits)
	binary.Write(&b, binary.LittleEndian, uint16(22)) // cbSize
	binary.Write(&b, binary.LittleEndian, bits)       // valid bits
	binary.Write(&b, binary.LittleEndian, uint32(0))  // channel mask
	binary.Write(&b, binary.LittleEndian, subFormat)
	b.Write(ksSubtypeTail[:])
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(pcm)))
	b.Write(pcm)
	return b.Bytes()
}

func float32PCM(samples []float64) []byte {
	out := make([]byte, 0, 4*len(samples))
	for _, v := range samples {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(float32(v)))
	}
	return out
}

func float64PCM(samples []float64) []byte {
	out := make([]byte, 0, 8*len(samples))
	for _, v := range samples {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

func sine(freq float64, sampleRate, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDecodeMono(t *testing.T) {
	in := sine(220, 16000, 1600, 0.5)
	data, err := EncodeWAV(in, 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", s.SampleRate)
	}
	if s.Len() != len(in) {
		t.Fatalf("Expected %d samples, got %d", len(in), s.Len())
	}
	for i := range in {
		if math.Abs(s.Samples[i]-in[i]) > 1e-3 {
			t.Fatalf("Sample %d: expected %.5f, got %.5f", i, in[i], s.Samples[i])
		}
	}
	if d := s.Duration().Seconds(); math.Abs(d-0.1) > 1e-9 {
		t.Errorf("Expected duration 0.1s, got %v", d)
	}
}

func TestDecodeStereoAveragesChannels(t *testing.T) {
	frames := 100
	interleaved := make([]float64, 0, frames*2)
	for i := 0; i < frames; i++ {
		interleaved = append(interleaved, 0.5, -0.25)
	}
	data, err := EncodeWAV(interleaved, 8000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if s.Len() != frames {
		t.Fatalf("Expected %d mono frames, got %d", frames, s.Len())
	}
	for i, v := range s.Samples {
		if math.Abs(v-0.125) > 1e-4 {
			t.Fatalf("Frame %d: expected 0.125, got %.6f", i, v)
		}
	}
}

func TestDecodeFourChannels(t *testing.T) {
	interleaved := []float64{0.4, 0.0, -0.4, 0.8, 0.2, 0.2, 0.2, 0.2}
	data, err := EncodeWAV(interleaved, 8000, 4)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	s, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0.2, 0.2}
	if s.Len() != len(want) {
		t.Fatalf("Expected %d frames, got %d", len(want), s.Len())
	}
	for i := range want {
		if math.Abs(s.Samples[i]-want[i]) > 1e-4 {
			t.Errorf("Frame %d: expected %.4f, got %.4f", i, want[i], s.Samples[i])
		}
	}
}

// Decoding the mono mix again must keep it mono and unchanged.
func TestDecodeMonoMixIsIdempotent(t *testing.T) {
	left := sine(300, 16000, 800, 0.3)
	right := sine(450, 16000, 800, 0.6)
	interleaved := make([]float64, 0, 1600)
	for i := range left {
		interleaved = append(interleaved, left[i], right[i])
	}
	data, err := EncodeWAV(interleaved, 16000, 2)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	first, err := Decode(data)
	if err != nil {
		t.Fatalf("first Decode failed: %v", err)
	}
	again, err := EncodeSample(first)
	if err != nil {
		t.Fatalf("EncodeSample failed: %v", err)
	}
	second, err := Decode(again)
	if err != nil {
		t.Fatalf("second Decode failed: %v", err)
	}

	if second.Len() != first.Len() {
		t.Fatalf("Frame count changed: %d -> %d", first.Len(), second.Len())
	}
	for i := range first.Samples {
		if math.Abs(first.Samples[i]-second.Samples[i]) > 1e-4 {
			t.Fatalf("Frame %d changed: %.5f -> %.5f", i, first.Samples[i], second.Samples[i])
		}
	}
}

func TestDecodeInvalidInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":    nil,
		"garbage":  []byte("INVALID HEADER DATA, definitely not a wav"),
		"float16":  rawWAV(3, 1, 16000, 16, make([]byte, 64)),
		"alaw":     rawWAV(6, 1, 8000, 8, make([]byte, 64)),
		"ext-alaw": extensibleWAV(6, 1, 8000, 8, make([]byte, 64)),
		"no data":  rawWAV(1, 1, 16000, 16, make([]byte, 64))[:36],
	}
	for name, data := range cases {
		if _, err := Decode(data); !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestDecodeFloat(t *testing.T) {
	in := sine(150, 16000, 1600, 0.5)
	cases := map[string][]byte{
		"float32":          rawWAV(3, 1, 16000, 32, float32PCM(in)),
		"float64":          rawWAV(3, 1, 16000, 64, float64PCM(in)),
		"extensible float": extensibleWAV(3, 1, 16000, 32, float32PCM(in)),
	}
	for name, data := range cases {
		s, err := Decode(data)
		if err != nil {
			t.Fatalf("%s: Decode failed: %v", name, err)
		}
		if s.SampleRate != 16000 || s.Len() != len(in) {
			t.Fatalf("%s: expected %d samples at 16000 Hz, got %d at %d", name, len(in), s.Len(), s.SampleRate)
		}
		for i := range in {
			if math.Abs(s.Samples[i]-in[i]) > 1e-6 {
				t.Fatalf("%s: sample %d: expected %.6f, got %.6f", name, i, in[i], s.Samples[i])
			}
		}
	}
}

func TestDecodeFloatStereoClipsAndAverages(t *testing.T) {
	pcm := float32PCM([]float64{1.5, 0, -0.25, -0.75})
	s, err := Decode(rawWAV(3, 2, 8000, 32, pcm))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0.5, -0.5}
	for i := range want {
		if math.Abs(s.Samples[i]-want[i]) > 1e-6 {
			t.Errorf("Frame %d: expected %v, got %v", i, want[i], s.Samples[i])
		}
	}

	nan := float32PCM([]float64{0.1, math.NaN()})
	if _, err := Decode(rawWAV(3, 1, 8000, 32, nan)); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode for NaN sample, got %v", err)
	}
}

func TestDecodeExtensiblePCM(t *testing.T) {
	pcm := make([]byte, 0, 8)
	for _, v := range []int16{0, 16384, -16384, 8192} {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}
	s, err := Decode(extensibleWAV(1, 1, 16000, 16, pcm))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0, 0.5, -0.5, 0.25}
	for i := range want {
		if math.Abs(s.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], s.Samples[i])
		}
	}
}

func TestDecodeEmptySignal(t *testing.T) {
	data := rawWAV(1, 1, 16000, 16, nil)
	if _, err := Decode(data); !errors.Is(err, ErrEmptySignal) {
		t.Errorf("Expected ErrEmptySignal, got %v", err)
	}
}

func TestDecodeRawPCM16(t *testing.T) {
	pcm := make([]byte, 0, 8)
	for _, v := range []int16{0, 16384, -16384, 32767} {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(v))
	}
	s, err := Decode(rawWAV(1, 1, 11025, 16, pcm))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0, 0.5, -0.5, 32767.0 / 32768.0}
	for i := range want {
		if math.Abs(s.Samples[i]-want[i]) > 1e-9 {
			t.Errorf("Sample %d: expected %v, got %v", i, want[i], s.Samples[i])
		}
	}
}

func TestDecoderWithoutTranscoder(t *testing.T) {
	var d Decoder
	if _, err := d.Decode(context.Background(), []byte("ID3 not really an mp3")); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDecoderTranscoderMissingBinary(t *testing.T) {
	d := Decoder{Transcoder: NewTranscoder(TranscodeConfig{FFmpegPath: "/nonexistent/ffmpeg"})}
	if d.Transcoder.Available() {
		t.Skip("unexpected ffmpeg at nonexistent path")
	}
	if _, err := d.Decode(context.Background(), []byte("OggS fake ogg payload")); !errors.Is(err, ErrDecode) {
		t.Errorf("Expected ErrDecode, got %v", err)
	}
}

func TestDecoderFallbackForUnsupportedWAVEncoding(t *testing.T) {
	d := Decoder{Transcoder: NewTranscoder(TranscodeConfig{FFmpegPath: "/nonexistent/ffmpeg"})}
	if d.Transcoder.Available() {
		t.Skip("unexpected ffmpeg at nonexistent path")
	}
	ctx := context.Background()

	_, err := d.Decode(ctx, rawWAV(6, 1, 8000, 8, make([]byte, 64)))
	if !errors.Is(err, ErrDecode) || !strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("Expected A-law WAV to be handed to ffmpeg, got %v", err)
	}

	truncated := rawWAV(1, 1, 16000, 16, make([]byte, 64))[:36]
	_, err = d.Decode(ctx, truncated)
	if !errors.Is(err, ErrDecode) || strings.Contains(err.Error(), "ffmpeg") {
		t.Errorf("Expected malformed WAV to fail natively, got %v", err)
	}
}

func TestTranscoderRoundTrip(t *testing.T) {
	tr := NewTranscoder(TranscodeConfig{SampleRate: 16000})
	if !tr.Available() {
		t.Skip("ffmpeg not installed")
	}

	data, err := EncodeWAV(sine(200, 16000, 16000, 0.5), 16000, 1)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	s, err := tr.Decode(context.Background(), data)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if s.SampleRate != 16000 || s.Len() == 0 {
		t.Errorf("Unexpected transcoded sample: rate=%d len=%d", s.SampleRate, s.Len())
	}
}

func TestResample(t *testing.T) {
	in := &Sample{Samples: sine(200, 44100, 44100, 0.5), SampleRate: 44100}

	same, err := Resample(in, 44100)
	if err != nil || same != in {
		t.Fatalf("Resample to same rate should be a no-op, got %v", err)
	}

	out, err := Resample(in, 16000)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if out.SampleRate != 16000 {
		t.Errorf("Expected rate 16000, got %d", out.SampleRate)
	}
	if out.Len() == 0 || out.Len() > 17600 {
		t.Errorf("Unexpected resampled length %d", out.Len())
	}
}

func TestPCM16ToFloat64(t *testing.T) {
	testData := []byte{0x00, 0x01, 0xFF, 0x7F, 0x01} // 256, 32767, trailing byte dropped
	out, err := pcm16ToFloat64(testData)
	if err != nil {
		t.Fatalf("pcm16ToFloat64 failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(out))
	}
	if out[0] != 256.0/32768.0 {
		t.Errorf("Expected %v, got %v", 256.0/32768.0, out[0])
	}
}
