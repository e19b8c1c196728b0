package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

var (
	// ErrDecode is returned when the input is not a parseable or supported audio file.
	ErrDecode = errors.New("audio decode failed")
	// ErrEmptySignal is returned when decoding succeeds but yields no frames.
	ErrEmptySignal = errors.New("decoded audio signal is empty")

	// errUnsupportedEncoding marks a well-formed WAV whose sample encoding is
	// not decoded natively (A-law, ADPCM, ...). The transcoder may still handle it.
	errUnsupportedEncoding = fmt.Errorf("%w: unsupported WAV encoding", ErrDecode)
)

const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE
)

// Tail shared by every KSDATAFORMAT_SUBTYPE GUID; the first two bytes carry
// the format tag.
var ksSubtypeTail = [14]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// Sample is a mono signal with amplitudes in [-1, 1].
type Sample struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of frames.
func (s *Sample) Len() int {
	return len(s.Samples)
}

// Duration returns the signal length as a time.Duration.
func (s *Sample) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / float64(s.SampleRate) * float64(time.Second))
}

// Decode parses a RIFF/WAVE byte buffer holding integer PCM (8, 16, 24 or 32
// bit) or IEEE float (32 or 64 bit), plain or WAVE_FORMAT_EXTENSIBLE, with any
// channel count, and returns a mono signal. Channels are collapsed by
// arithmetic mean.
func Decode(data []byte) (*Sample, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}
	if dec.NumChans == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrDecode)
	}
	if dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: zero sample rate", ErrDecode)
	}

	layout, err := scanWAV(data)
	if err != nil {
		return nil, err
	}

	switch layout.format {
	case wavFormatPCM:
		return decodePCM(dec)
	case wavFormatIEEEFloat:
		return decodeFloat(layout)
	default:
		return nil, fmt.Errorf("%w: format %#x", errUnsupportedEncoding, layout.format)
	}
}

func decodePCM(dec *wav.Decoder) (*Sample, error) {
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		if dec.PCMChunk != nil && dec.PCMSize == 0 {
			return nil, ErrEmptySignal
		}
		return nil, fmt.Errorf("%w: reading PCM data: %v", ErrDecode, err)
	}

	bitDepth := int(dec.BitDepth)
	if buf.SourceBitDepth > 0 {
		bitDepth = buf.SourceBitDepth
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrDecode, bitDepth)
	}

	numChans := int(dec.NumChans)
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		numChans = buf.Format.NumChannels
	}

	mono := downmix(buf, numChans, bitDepth)
	if len(mono) == 0 {
		return nil, ErrEmptySignal
	}

	return &Sample{Samples: mono, SampleRate: int(dec.SampleRate)}, nil
}

// wavLayout is the fmt chunk, with extensible files resolved to their
// sub-format, and the raw bytes of the data chunk.
type wavLayout struct {
	format     uint16
	numChans   int
	sampleRate int
	bitDepth   int
	pcm        []byte
}

// scanWAV walks the RIFF chunks up to the data chunk.
func scanWAV(data []byte) (*wavLayout, error) {
	r := bytes.NewReader(data)
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if p.Format != riff.WavFormatID {
		return nil, fmt.Errorf("%w: RIFF form %q is not WAVE", ErrDecode, p.Format[:])
	}

	var layout *wavLayout
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return nil, fmt.Errorf("%w: data chunk not found", ErrDecode)
		}

		switch ch.ID {
		case riff.FmtID:
			raw := make([]byte, ch.Size)
			if _, err := io.ReadFull(ch, raw); err != nil {
				return nil, fmt.Errorf("%w: truncated fmt chunk", ErrDecode)
			}
			if layout, err = parseFmt(raw); err != nil {
				return nil, err
			}
		case riff.DataFormatID:
			if layout == nil {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrDecode)
			}
			start := len(data) - r.Len()
			end := min(start+ch.Size, len(data))
			layout.pcm = data[start:end]
			return layout, nil
		default:
			ch.Drain()
		}
	}
}

func parseFmt(raw []byte) (*wavLayout, error) {
	if len(raw) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk is %d bytes", ErrDecode, len(raw))
	}
	le := binary.LittleEndian
	layout := &wavLayout{
		format:     le.Uint16(raw[0:2]),
		numChans:   int(le.Uint16(raw[2:4])),
		sampleRate: int(le.Uint32(raw[4:8])),
		bitDepth:   int(le.Uint16(raw[14:16])),
	}
	if layout.format != wavFormatExtensible {
		return layout, nil
	}

	// cbSize, valid bits, channel mask, then the 16-byte sub-format GUID
	if len(raw) < 40 {
		return nil, fmt.Errorf("%w: extensible fmt chunk is %d bytes", ErrDecode, len(raw))
	}
	guid := raw[24:40]
	if [14]byte(guid[2:]) != ksSubtypeTail {
		return nil, fmt.Errorf("%w: unknown extensible sub-format %x", errUnsupportedEncoding, guid)
	}
	layout.format = le.Uint16(guid[0:2])
	return layout, nil
}

// decodeFloat downmixes 32 or 64-bit IEEE float samples. Values are clipped to
// [-1, 1]; non-finite samples fail the decode.
func decodeFloat(layout *wavLayout) (*Sample, error) {
	var width int
	switch layout.bitDepth {
	case 32:
		width = 4
	case 64:
		width = 8
	default:
		return nil, fmt.Errorf("%w: unsupported float bit depth %d", ErrDecode, layout.bitDepth)
	}

	stride := width * layout.numChans
	frames := len(layout.pcm) / stride
	if frames == 0 {
		return nil, ErrEmptySignal
	}

	le := binary.LittleEndian
	inv := 1.0 / float64(layout.numChans)
	out := make([]float64, frames)
	for i := range out {
		frame := layout.pcm[i*stride : (i+1)*stride]
		var sum float64
		for c := 0; c < layout.numChans; c++ {
			b := frame[c*width : (c+1)*width]
			var v float64
			if width == 4 {
				v = float64(math.Float32frombits(le.Uint32(b)))
			} else {
				v = math.Float64frombits(le.Uint64(b))
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite sample at frame %d", ErrDecode, i)
			}
			sum += math.Max(-1, math.Min(1, v))
		}
		out[i] = sum * inv
	}

	return &Sample{Samples: out, SampleRate: layout.sampleRate}, nil
}

// downmix converts interleaved integer PCM to mono float64 in [-1, 1].
// A trailing partial frame is dropped.
func downmix(buf *goaudio.IntBuffer, numChans, bitDepth int) []float64 {
	frames := len(buf.Data) / numChans
	out := make([]float64, frames)

	offset := 0.0
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	if bitDepth == 8 {
		// 8-bit WAV is unsigned
		offset = 128
		scale = 1.0 / 128.0
	}

	inv := 1.0 / float64(numChans)
	for i := 0; i < frames; i++ {
		var sum float64
		base := i * numChans
		for c := 0; c < numChans; c++ {
			sum += (float64(buf.Data[base+c]) - offset) * scale
		}
		out[i] = sum * inv
	}
	return out
}

// IsRIFF reports whether data starts with a RIFF/WAVE header.
func IsRIFF(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
