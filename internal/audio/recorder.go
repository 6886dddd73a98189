// Package audio captures microphone audio and loads WAV files as 16-bit
// little-endian mono PCM, the format recognizers consume.
package audio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// chunkQueue is the number of captured buffers held while the reader is busy.
const chunkQueue = 64

// ErrNotRecording is returned by Read when the recorder was never started.
var ErrNotRecording = errors.New("audio: not recording")

// Recorder captures 16-bit PCM from the default microphone. It implements
// io.Reader: Read returns captured audio until Stop, then io.EOF.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate uint32
	channels   uint32
	log        *slog.Logger

	mu        sync.Mutex
	chunks    chan []byte
	pending   []byte
	recording bool
	paused    bool
	dropped   int
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate, channels uint32, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("audio: initialize context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		log:        logger,
	}, nil
}

// Start begins capturing audio from the default microphone.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording {
		r.mu.Unlock()
		return errors.New("audio: already recording")
	}
	r.chunks = make(chan []byte, chunkQueue)
	r.pending = nil
	r.paused = false
	r.dropped = 0
	r.recording = true
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatS16
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, malgo.DeviceCallbacks{Data: r.onData})
	if err != nil {
		r.abort()
		return fmt.Errorf("audio: initialize capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort()
		return fmt.Errorf("audio: start capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
	return nil
}

// Stop ends the capture. Audio already captured can still be read; after
// that Read returns io.EOF.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	// onData checks recording under mu, so nothing is sent after this close.
	r.recording = false
	close(r.chunks)
	device := r.device
	r.device = nil
	dropped := r.dropped
	r.mu.Unlock()

	// Uninit waits for the callback thread, which takes mu.
	if device != nil {
		device.Uninit()
	}
	if dropped > 0 {
		r.log.Warn("audio buffers dropped, reader too slow", "count", dropped)
	}
}

// SetPaused drops captured audio while paused is true.
func (r *Recorder) SetPaused(paused bool) {
	r.mu.Lock()
	r.paused = paused
	r.mu.Unlock()
}

// Paused reports whether captured audio is being dropped.
func (r *Recorder) Paused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Read blocks until captured audio is available and copies it into p.
func (r *Recorder) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		r.mu.Lock()
		chunks := r.chunks
		r.mu.Unlock()
		if chunks == nil {
			return 0, ErrNotRecording
		}
		chunk, ok := <-chunks
		if !ok {
			return 0, io.EOF
		}
		r.pending = chunk
	}
	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	r.Stop()

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("audio: uninitialize context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}
	return nil
}

func (r *Recorder) abort() {
	r.mu.Lock()
	r.recording = false
	close(r.chunks)
	r.mu.Unlock()
}

// onData is the malgo callback invoked when audio data is available.
// pSample holds frameCount frames of interleaved 16-bit samples.
func (r *Recorder) onData(_, pSample []byte, frameCount uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording || r.paused {
		return
	}
	chunk := downmixS16(pSample, frameCount, r.channels)
	select {
	case r.chunks <- chunk:
	default:
		r.dropped++
	}
}

// downmixS16 copies frameCount frames out of interleaved 16-bit PCM, averaging
// channels into mono.
func downmixS16(data []byte, frameCount, channels uint32) []byte {
	if channels <= 1 {
		n := int(frameCount) * 2
		if n > len(data) {
			n = len(data) &^ 1
		}
		out := make([]byte, n)
		copy(out, data[:n])
		return out
	}

	frameBytes := int(channels) * 2
	frames := int(frameCount)
	if frames*frameBytes > len(data) {
		frames = len(data) / frameBytes
	}
	out := make([]byte, frames*2)
	for f := 0; f < frames; f++ {
		var sum int32
		for c := 0; c < int(channels); c++ {
			off := f*frameBytes + c*2
			sum += int32(int16(uint16(data[off]) | uint16(data[off+1])<<8))
		}
		avg := int16(sum / int32(channels))
		out[f*2] = byte(avg)
		out[f*2+1] = byte(uint16(avg) >> 8)
	}
	return out
}
