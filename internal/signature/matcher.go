package signature

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

// DefaultThreshold is the similarity a stored signature must exceed to count
// as the same speaker.
const DefaultThreshold = 0.27

// Match is a stored signature compared against a query vector.
type Match struct {
	Label      string
	Similarity float64
}

// Decision is the outcome of Matcher.Check.
type Decision struct {
	// Matched is true when at least one stored signature exceeded the threshold.
	Matched bool
	// Best is the highest-scoring signature above the threshold. Zero unless Matched.
	Best Match
	// Enrolled is the label written for the query vector. Empty when Matched.
	Enrolled string
	// Errors holds signatures that could not be loaded. They do not stop the check.
	Errors []error
}

// Identification is the outcome of Matcher.Identify.
type Identification struct {
	// Matches are the signatures above the threshold, best first.
	Matches []Match
	// Empty is true when the store held no signatures at all.
	Empty bool
	// Errors holds signatures that could not be loaded.
	Errors []error
}

// Matcher compares embeddings against a Store.
type Matcher struct {
	store     Store
	threshold float64
	log       *slog.Logger
}

// NewMatcher creates a Matcher that uses threshold as given. A nil logger
// selects slog.Default().
func NewMatcher(store Store, threshold float64, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{store: store, threshold: threshold, log: logger}
}

// Threshold returns the similarity threshold in use.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Check decides whether vec belongs to an enrolled speaker. If any stored
// signature scores above the threshold, the best one is reported and nothing
// is written. Otherwise exactly one new signature is saved under label, or
// under a generated label when label is empty.
//
// Signatures that fail to load are collected in Decision.Errors. The returned
// error is non-nil only when the new signature could not be written or the
// store could not be listed at all.
func (m *Matcher) Check(ctx context.Context, vec embedding.Vector, label string) (Decision, error) {
	if len(vec) == 0 {
		return Decision{}, fmt.Errorf("signature: check: %w: empty vector", embedding.ErrMalformed)
	}
	if label == "" {
		label = NewLabel()
	}
	if err := ValidateLabel(label); err != nil {
		return Decision{}, err
	}

	var d Decision
	for sig, err := range m.store.All(ctx) {
		if err != nil {
			var le *LoadError
			if !errors.As(err, &le) {
				return d, err
			}
			m.log.Warn("skipping unreadable signature", "label", le.Label, "err", le.Err)
			d.Errors = append(d.Errors, err)
			continue
		}
		sim := embedding.CosineSimilarity(sig.Vector, vec)
		m.log.Debug("compared signature", "label", sig.Label, "similarity", sim)
		if sim > m.threshold && (!d.Matched || sim > d.Best.Similarity) {
			d.Matched = true
			d.Best = Match{Label: sig.Label, Similarity: sim}
		}
	}

	if d.Matched {
		m.log.Info("speaker already enrolled", "label", d.Best.Label, "similarity", d.Best.Similarity)
		return d, nil
	}

	if err := m.store.Save(ctx, Signature{Label: label, Vector: vec}); err != nil {
		return d, fmt.Errorf("signature: enroll %q: %w", label, err)
	}
	d.Enrolled = label
	m.log.Info("enrolled new speaker", "label", label, "dim", len(vec))
	return d, nil
}

// Identify reports every stored signature that scores above the threshold
// against vec. It never writes.
func (m *Matcher) Identify(ctx context.Context, vec embedding.Vector) (Identification, error) {
	if len(vec) == 0 {
		return Identification{}, fmt.Errorf("signature: identify: %w: empty vector", embedding.ErrMalformed)
	}
	id := Identification{Empty: true}
	for sig, err := range m.store.All(ctx) {
		if err != nil {
			var le *LoadError
			if !errors.As(err, &le) {
				return id, err
			}
			id.Empty = false
			id.Errors = append(id.Errors, err)
			continue
		}
		id.Empty = false
		sim := embedding.CosineSimilarity(sig.Vector, vec)
		if sim > m.threshold {
			id.Matches = append(id.Matches, Match{Label: sig.Label, Similarity: sim})
		}
	}
	sort.SliceStable(id.Matches, func(i, j int) bool {
		return id.Matches[i].Similarity > id.Matches[j].Similarity
	})
	return id, nil
}

// List returns every loadable signature and the load errors of the rest.
func (m *Matcher) List(ctx context.Context) ([]Signature, []error, error) {
	var sigs []Signature
	var loadErrs []error
	for sig, err := range m.store.All(ctx) {
		if err != nil {
			var le *LoadError
			if !errors.As(err, &le) {
				return sigs, loadErrs, err
			}
			loadErrs = append(loadErrs, err)
			continue
		}
		sigs = append(sigs, sig)
	}
	return sigs, loadErrs, nil
}

// NewLabel generates a label for a speaker enrolled without a name.
func NewLabel() string {
	return "speaker-" + uuid.NewString()[:8]
}
