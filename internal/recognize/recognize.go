// Package recognize defines the speech recognizer capability used by the rest
// of gostt-spk and drives audio through it.
//
// A recognizer accepts 16-bit little-endian mono PCM and produces results
// carrying a transcript and, when the engine has a speaker model, a speaker
// embedding. Engines live in subpackages (see recognize/vosk).
package recognize

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

// Result is one recognizer result.
type Result struct {
	// Text is the transcript of a finished utterance.
	Text string `json:"text"`
	// Partial is the running transcript of an unfinished utterance.
	Partial string `json:"partial"`
	// Speaker is the speaker embedding, nil when the engine produced none.
	Speaker embedding.Vector `json:"spk"`
	// SpeakerFrames is the number of frames the embedding was computed over.
	SpeakerFrames int `json:"spk_frames"`
	// Raw is the engine output the result was decoded from.
	Raw string `json:"-"`
}

// HasSpeaker reports whether the result carries a speaker embedding.
func (r Result) HasSpeaker() bool {
	return len(r.Speaker) > 0
}

// Recognizer converts audio to results. Implementations are not safe for
// concurrent use.
type Recognizer interface {
	// AcceptWaveform feeds 16-bit little-endian mono PCM. It returns true when
	// an utterance ended and Result is ready.
	AcceptWaveform(pcm []byte) (bool, error)
	// Result returns the result of the utterance that just ended.
	Result() (Result, error)
	// PartialResult returns the running result of the current utterance.
	PartialResult() (Result, error)
	// FinalResult flushes the engine and returns the last result.
	FinalResult() (Result, error)
	// Close releases the engine handle.
	Close() error
}

// Factory creates a recognizer.
type Factory func() (Recognizer, error)

// ParseResult decodes an engine JSON result.
func ParseResult(raw string) (Result, error) {
	var r Result
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return Result{}, fmt.Errorf("recognize: parse result: %w", err)
	}
	r.Raw = raw
	return r, nil
}

// With creates a recognizer, passes it to fn and closes it on every exit
// path, including a panic in fn.
func With(newRec Factory, fn func(Recognizer) error) (err error) {
	rec, err := newRec()
	if err != nil {
		return fmt.Errorf("recognize: create recognizer: %w", err)
	}
	defer func() {
		if cerr := rec.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("recognize: close recognizer: %w", cerr))
		}
	}()
	return fn(rec)
}
