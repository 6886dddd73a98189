// Package embedding handles speaker embedding vectors: similarity scoring and
// the bracketed text form used by recognizer results and signature files.
package embedding

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

var (
	// ErrNoVector is returned when the input has no bracketed list.
	ErrNoVector = errors.New("embedding: no bracketed vector")
	// ErrMalformed is returned when the bracketed list is empty or has a non-numeric entry.
	ErrMalformed = errors.New("embedding: malformed vector")
)

// Vector is a fixed-length speaker embedding. The dimension is set by the
// recognizer that produced it.
type Vector []float64

// CosineSimilarity returns dot(a, b) / (|a| * |b|).
//
// It returns exactly -1 when either vector is nil or the lengths differ. That
// value means "incomparable" and must be treated as no match. A zero-norm
// vector yields 0.
func CosineSimilarity(a, b Vector) float64 {
	if a == nil || b == nil || len(a) != len(b) {
		return -1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Format serializes v as "[v1, v2, ..., vn]" using the shortest
// representation that parses back to the same float64.
func Format(v Vector) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// Parse extracts the vector between the first '[' and the last ']' of s.
// Whitespace anywhere in s is ignored.
func Parse(s string) (Vector, error) {
	s = stripSpace(s)
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end < start {
		return nil, ErrNoVector
	}
	return parseList(s[start+1 : end])
}

// FromResult extracts the speaker vector that follows the "spk" key in a
// recognizer result. ok is false when the result carries no speaker vector.
func FromResult(result string) (v Vector, ok bool, err error) {
	result = stripSpace(result)
	idx := strings.Index(result, `"spk"`)
	if idx < 0 {
		return nil, false, nil
	}
	rest := result[idx:]
	start := strings.IndexByte(rest, '[')
	if start < 0 {
		return nil, true, fmt.Errorf("embedding: spk key: %w", ErrNoVector)
	}
	end := strings.IndexByte(rest[start:], ']')
	if end < 0 {
		return nil, true, fmt.Errorf("embedding: spk key: %w", ErrNoVector)
	}
	v, err = parseList(rest[start+1 : start+end])
	if err != nil {
		return nil, true, err
	}
	return v, true, nil
}

func parseList(list string) (Vector, error) {
	if list == "" {
		return nil, fmt.Errorf("%w: empty list", ErrMalformed)
	}
	fields := strings.Split(list, ",")
	v := make(Vector, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d %q", ErrMalformed, i, f)
		}
		v[i] = x
	}
	return v, nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
