// Package signature stores enrolled speaker embeddings and matches new
// embeddings against them.
//
// The default store is a flat directory with one "<label>.txt" file per
// enrolled speaker; the first line of each file holds the vector in the
// bracketed form produced by embedding.Format.
package signature

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

// ErrInvalidLabel is returned for labels that cannot name a signature.
var ErrInvalidLabel = errors.New("signature: invalid label")

// Signature is an enrolled speaker embedding.
type Signature struct {
	Label  string
	Vector embedding.Vector
}

// Store persists signatures.
type Store interface {
	// All iterates over every stored signature. A signature that cannot be
	// read or parsed is yielded as a *LoadError and iteration continues.
	All(ctx context.Context) iter.Seq2[Signature, error]

	// Save writes sig, replacing any signature with the same label.
	Save(ctx context.Context, sig Signature) error

	// Close releases store resources.
	Close() error
}

// LoadError reports a signature that could not be loaded.
type LoadError struct {
	Label string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("signature: load %q: %v", e.Label, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ValidateLabel rejects labels that are empty or would escape the store.
func ValidateLabel(label string) error {
	switch {
	case label == "":
		return fmt.Errorf("%w: empty", ErrInvalidLabel)
	case label == "." || label == "..":
		return fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	case strings.ContainsAny(label, `/\`+"\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidLabel, label)
	}
	return nil
}
