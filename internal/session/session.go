// Package session runs recognition passes over files and live audio and ties
// their speaker embeddings to the signature store.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chaz8081/gostt-spk/internal/audio"
	"github.com/chaz8081/gostt-spk/internal/recognize"
	"github.com/chaz8081/gostt-spk/internal/signature"
)

// Options configures a Session.
type Options struct {
	// Factory creates one recognizer per pass. Required.
	Factory recognize.Factory
	// Matcher identifies and enrolls speakers. Nil disables speaker handling.
	Matcher *signature.Matcher
	// Out receives user-facing lines. Defaults to io.Discard.
	Out    io.Writer
	Logger *slog.Logger
	// SampleRate of the PCM fed to recognizers, 16000 if zero.
	SampleRate int
	// ChunkBytes per AcceptWaveform call, recognize.DefaultChunkBytes if zero.
	ChunkBytes int
	// ShowPartial prints running partial transcripts.
	ShowPartial bool
}

// Outcome summarizes one recognition pass.
type Outcome struct {
	// Transcript holds the non-empty utterance texts in order.
	Transcript []string
	// Identified holds the best match of every identified utterance.
	Identified []signature.Match
	// Decision is set when the final result was checked against the store.
	Decision *signature.Decision
}

// Text joins the transcript into one line.
func (o Outcome) Text() string {
	return strings.Join(o.Transcript, " ")
}

// Session owns the labels waiting for enrollment. Passes run one at a time.
type Session struct {
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	pending []string
}

// New creates a Session.
func New(opts Options) (*Session, error) {
	if opts.Factory == nil {
		return nil, errors.New("session: recognizer factory is required")
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = recognize.DefaultChunkBytes
	}
	return &Session{opts: opts, log: opts.Logger}, nil
}

// Enqueue adds a label that the next final result with a speaker embedding
// is enrolled under. The most recently enqueued label is used first.
func (s *Session) Enqueue(label string) {
	s.mu.Lock()
	s.pending = append(s.pending, label)
	s.mu.Unlock()
}

// Pending returns the number of labels waiting for enrollment.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Session) pop() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return "", false
	}
	label := s.pending[len(s.pending)-1]
	s.pending = s.pending[:len(s.pending)-1]
	return label, true
}

// truncate drops labels a failed pass left unconsumed.
func (s *Session) truncate(n int) {
	s.mu.Lock()
	if len(s.pending) > n {
		s.pending = s.pending[:n]
	}
	s.mu.Unlock()
}

// LabelFromPath returns the file base name without its extension.
func LabelFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RecognizeFile transcribes a WAV file and enrolls its speaker under label,
// or under the file name when label is empty.
func (s *Session) RecognizeFile(ctx context.Context, path, label string) (Outcome, error) {
	pcm, err := audio.LoadWAV(path, s.opts.SampleRate)
	if err != nil {
		return Outcome{}, fmt.Errorf("session: %w", err)
	}
	if label == "" {
		label = LabelFromPath(path)
	}
	s.log.Info("recognizing file", "path", path, "label", label, "bytes", len(pcm))

	defer s.truncate(s.Pending())
	s.Enqueue(label)
	return s.run(ctx, bytes.NewReader(pcm))
}

// Listen transcribes src until it is exhausted or ctx is cancelled,
// identifying the speaker of each utterance. A non-empty enrollLabel enrolls
// the speaker of the final result. Cancellation is a normal end of listening.
func (s *Session) Listen(ctx context.Context, src io.Reader, enrollLabel string) (Outcome, error) {
	if enrollLabel != "" {
		defer s.truncate(s.Pending())
		s.Enqueue(enrollLabel)
	}
	s.log.Info("listening", "enroll", enrollLabel)

	out, err := s.run(ctx, src)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	return out, err
}

func (s *Session) run(ctx context.Context, src io.Reader) (Outcome, error) {
	h := &handler{s: s, ctx: ctx}
	err := recognize.With(s.opts.Factory, func(rec recognize.Recognizer) error {
		return recognize.Stream(ctx, rec, src, s.opts.ChunkBytes, h)
	})
	if err != nil {
		return h.out, fmt.Errorf("session: %w", err)
	}
	return h.out, nil
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.opts.Out, format+"\n", args...)
}

// handler turns recognizer results into output lines and store operations
// for a single pass.
type handler struct {
	s   *Session
	ctx context.Context
	out Outcome
}

func (h *handler) OnPartialResult(r recognize.Result) {
	if r.Partial == "" {
		return
	}
	h.s.log.Debug("partial result", "text", r.Partial)
	if h.s.opts.ShowPartial {
		h.s.printf("... %s", r.Partial)
	}
}

func (h *handler) OnResult(r recognize.Result) {
	h.transcript(r.Text)
	if r.HasSpeaker() && h.s.opts.Matcher != nil {
		h.identify(r)
	}
}

func (h *handler) OnFinalResult(r recognize.Result) {
	h.transcript(r.Text)

	label, ok := h.s.pop()
	if !ok || h.s.opts.Matcher == nil {
		return
	}
	if !r.HasSpeaker() {
		h.s.printf("no speaker embedding in final result, %q not enrolled", label)
		return
	}

	// The final result also arrives after cancellation; enrollment still runs.
	d, err := h.s.opts.Matcher.Check(context.WithoutCancel(h.ctx), r.Speaker, label)
	h.loadErrors(d.Errors)
	if err != nil {
		h.s.log.Error("speaker check failed", "label", label, "err", err)
		h.s.printf("error: %v", err)
		return
	}
	h.out.Decision = &d
	if d.Matched {
		h.s.printf("speaker already enrolled as %s (similarity=%.4f)", d.Best.Label, d.Best.Similarity)
		return
	}
	h.s.printf("enrolled new speaker %s", d.Enrolled)
}

func (h *handler) transcript(text string) {
	if text == "" {
		return
	}
	h.out.Transcript = append(h.out.Transcript, text)
	h.s.printf("%s", text)
}

func (h *handler) identify(r recognize.Result) {
	id, err := h.s.opts.Matcher.Identify(h.ctx, r.Speaker)
	h.loadErrors(id.Errors)
	if err != nil {
		h.s.log.Error("speaker identification failed", "err", err)
		h.s.printf("error: %v", err)
		return
	}
	switch {
	case id.Empty:
		h.s.printf("no registered speakers")
	case len(id.Matches) == 0:
		h.s.printf("unknown speaker")
	default:
		for _, m := range id.Matches {
			h.s.printf("speaker is %s (similarity=%.4f)", m.Label, m.Similarity)
		}
		h.out.Identified = append(h.out.Identified, id.Matches[0])
	}
}

func (h *handler) loadErrors(errs []error) {
	for _, err := range errs {
		h.s.printf("error: %v", err)
	}
}
