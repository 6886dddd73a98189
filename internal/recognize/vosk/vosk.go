// Package vosk implements recognize.Recognizer on the Vosk speech engine.
//
// The acoustic model is required. The speaker model is optional; when it is
// loaded every recognizer attaches a speaker embedding ("spk") to its results.
package vosk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"

	"github.com/chaz8081/gostt-spk/internal/recognize"
)

// SetLogLevel sets the engine's log verbosity: -1 silences it, 0 is the
// engine default, higher is more verbose.
func SetLogLevel(level int) {
	vosk.SetLogLevel(level)
}

// Model holds a loaded acoustic model and an optional speaker model.
type Model struct {
	mu    sync.Mutex
	model *vosk.VoskModel
	spk   *vosk.VoskSpkModel
}

// Load loads the acoustic model from modelPath and, when spkModelPath is not
// empty, the speaker model. Both load concurrently; Load returns once both
// finished. The caller must call Close.
func Load(ctx context.Context, modelPath, spkModelPath string) (*Model, error) {
	if err := checkDir(modelPath); err != nil {
		return nil, fmt.Errorf("vosk: model: %w", err)
	}
	if spkModelPath != "" {
		if err := checkDir(spkModelPath); err != nil {
			return nil, fmt.Errorf("vosk: speaker model: %w", err)
		}
	}

	var (
		wg               sync.WaitGroup
		model            *vosk.VoskModel
		spk              *vosk.VoskSpkModel
		modelErr, spkErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		model, modelErr = vosk.NewModel(modelPath)
	}()
	if spkModelPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			spk, spkErr = vosk.NewSpkModel(spkModelPath)
		}()
	}
	wg.Wait()

	m := &Model{model: model, spk: spk}
	if modelErr != nil {
		m.Close()
		return nil, fmt.Errorf("vosk: load model %q: %w", modelPath, modelErr)
	}
	if spkErr != nil {
		m.Close()
		return nil, fmt.Errorf("vosk: load speaker model %q: %w", spkModelPath, spkErr)
	}
	if err := ctx.Err(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

// HasSpeakerModel reports whether recognizers will produce speaker embeddings.
func (m *Model) HasSpeakerModel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spk != nil
}

// NewRecognizer creates a recognizer for audio at sampleRate Hz.
// The caller must call Close on it.
func (m *Model) NewRecognizer(sampleRate float64) (*Recognizer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil, errors.New("vosk: model is closed")
	}

	var (
		rec *vosk.VoskRecognizer
		err error
	)
	if m.spk != nil {
		rec, err = vosk.NewRecognizerSpk(m.model, sampleRate, m.spk)
	} else {
		rec, err = vosk.NewRecognizer(m.model, sampleRate)
	}
	if err != nil {
		return nil, fmt.Errorf("vosk: create recognizer: %w", err)
	}
	return &Recognizer{rec: rec}, nil
}

// Factory returns a recognize.Factory producing recognizers at sampleRate Hz.
func (m *Model) Factory(sampleRate float64) recognize.Factory {
	return func() (recognize.Recognizer, error) {
		return m.NewRecognizer(sampleRate)
	}
}

// Close frees both models. Recognizers created from the model must be closed first.
func (m *Model) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.spk != nil {
		m.spk.Free()
		m.spk = nil
	}
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
}

// Recognizer wraps a Vosk recognizer handle.
type Recognizer struct {
	rec *vosk.VoskRecognizer
}

// AcceptWaveform feeds 16-bit little-endian mono PCM.
func (r *Recognizer) AcceptWaveform(pcm []byte) (bool, error) {
	if r.rec == nil {
		return false, errors.New("vosk: recognizer is closed")
	}
	switch r.rec.AcceptWaveform(pcm) {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errors.New("vosk: engine rejected waveform")
	}
}

// Result returns the result of the utterance that just ended.
func (r *Recognizer) Result() (recognize.Result, error) {
	if r.rec == nil {
		return recognize.Result{}, errors.New("vosk: recognizer is closed")
	}
	return recognize.ParseResult(r.rec.Result())
}

// PartialResult returns the running result of the current utterance.
func (r *Recognizer) PartialResult() (recognize.Result, error) {
	if r.rec == nil {
		return recognize.Result{}, errors.New("vosk: recognizer is closed")
	}
	return recognize.ParseResult(r.rec.PartialResult())
}

// FinalResult flushes the engine and returns the last result.
func (r *Recognizer) FinalResult() (recognize.Result, error) {
	if r.rec == nil {
		return recognize.Result{}, errors.New("vosk: recognizer is closed")
	}
	return recognize.ParseResult(r.rec.FinalResult())
}

// Close frees the recognizer handle. It is safe to call more than once.
func (r *Recognizer) Close() error {
	if r.rec != nil {
		r.rec.Free()
		r.rec = nil
	}
	return nil
}

func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
