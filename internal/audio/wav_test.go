package audio

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeWAV writes interleaved 16-bit samples to a PCM WAV file.
func writeWAV(t *testing.T, path string, sampleRate, channels int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode WAV: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close WAV encoder: %v", err)
	}
}

func pcmSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func TestLoadWAVMono16k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	writeWAV(t, path, 16000, 1, []int{0, 1000, -1000, 32767, -32768})

	pcm, err := LoadWAV(path, 16000)
	if err != nil {
		t.Fatalf("LoadWAV() error = %v", err)
	}
	got := pcmSamples(pcm)
	want := []int16{0, 1000, -1000, 32767, -32768}
	if len(got) != len(want) {
		t.Fatalf("LoadWAV() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestLoadWAVStereoDownmix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, path, 16000, 2, []int{1000, 3000, -2000, 0})

	pcm, err := LoadWAV(path, 16000)
	if err != nil {
		t.Fatalf("LoadWAV() error = %v", err)
	}
	got := pcmSamples(pcm)
	if len(got) != 2 || got[0] != 2000 || got[1] != -1000 {
		t.Errorf("LoadWAV() = %v, want [2000 -1000]", got)
	}
}

func TestLoadWAVResamples(t *testing.T) {
	tests := []struct {
		name    string
		srcRate int
		samples int
		want    int
		tol     int
	}{
		{"48k to 16k", 48000, 48000, 16000, 16},
		{"8k to 16k", 8000, 8000, 16000, 2},
		{"short 8k clip", 8000, 800, 1600, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := make([]int, tt.samples)
			for i := range samples {
				samples[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(tt.srcRate)))
			}
			path := filepath.Join(t.TempDir(), "tone.wav")
			writeWAV(t, path, tt.srcRate, 1, samples)

			pcm, err := LoadWAV(path, 16000)
			if err != nil {
				t.Fatalf("LoadWAV() error = %v", err)
			}
			n := len(pcm) / 2
			if n < tt.want-tt.tol || n > tt.want+tt.tol {
				t.Errorf("resampled length = %d samples, want %d ±%d", n, tt.want, tt.tol)
			}
		})
	}
}

func TestLoadWAVNotFound(t *testing.T) {
	if _, err := LoadWAV("/nonexistent/audio.wav", 16000); err == nil {
		t.Error("LoadWAV() should fail for a missing file")
	}
}

func TestLoadWAVInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF data"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWAV(path, 16000); err == nil {
		t.Error("LoadWAV() should fail for a non-WAV file")
	}
}

func TestSampleScale(t *testing.T) {
	tests := []struct {
		depth  int
		scale  float64
		offset int
	}{
		{8, 128, 128},
		{16, 32768, 0},
		{24, 8388608, 0},
		{32, 2147483648, 0},
	}
	for _, tt := range tests {
		scale, offset := sampleScale(tt.depth)
		if scale != tt.scale || offset != tt.offset {
			t.Errorf("sampleScale(%d) = %v, %d, want %v, %d", tt.depth, scale, offset, tt.scale, tt.offset)
		}
	}
}
