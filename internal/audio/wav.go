package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"
)

// LoadWAV reads a PCM WAV file and returns 16-bit little-endian mono PCM at
// sampleRate Hz. Multi-channel audio is averaged to mono and other rates are
// resampled.
func LoadWAV(path string, sampleRate int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	pcm, err := DecodeWAV(f, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("audio: %s: %w", path, err)
	}
	return pcm, nil
}

// DecodeWAV is LoadWAV over an open stream.
func DecodeWAV(r io.ReadSeeker, sampleRate int) ([]byte, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV format %d (PCM only)", dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode WAV: %w", err)
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	mono := toMonoFloat(buf.Data, channels, int(dec.BitDepth))

	srcRate := buf.Format.SampleRate
	if srcRate != sampleRate && len(mono) > 0 {
		mono, err = resample(mono, srcRate, sampleRate)
		if err != nil {
			return nil, err
		}
	}
	return floatToPCM16(mono), nil
}

// toMonoFloat averages interleaved integer samples into mono floats in [-1, 1].
func toMonoFloat(data []int, channels, bitDepth int) []float64 {
	scale, offset := sampleScale(bitDepth)
	frames := len(data) / channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[f*channels+c]-offset) / scale
		}
		out[f] = sum / float64(channels)
	}
	return out
}

// sampleScale returns the full-scale value and the zero offset for a bit
// depth. 8-bit WAV samples are unsigned.
func sampleScale(bitDepth int) (scale float64, offset int) {
	switch bitDepth {
	case 8:
		return 128, 128
	case 24:
		return 1 << 23, 0
	case 32:
		return 1 << 31, 0
	default:
		return 1 << 15, 0
	}
}

func resample(in []float64, from, to int) ([]float64, error) {
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler %d->%d Hz: %w", from, to, err)
	}
	out, err := rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample %d->%d Hz: %w", from, to, err)
	}
	// The filter delay holds back the last samples until Flush.
	tail, err := rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler %d->%d Hz: %w", from, to, err)
	}
	return append(out, tail...), nil
}

func floatToPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(s*(1<<15)))))
		out[i*2] = byte(v)
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}
