package signature

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

var query = embedding.Vector{1, 0}

// atSimilarity returns a unit vector whose cosine similarity with query is sim.
func atSimilarity(sim float64) embedding.Vector {
	return embedding.Vector{sim, math.Sqrt(1 - sim*sim)}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSignatureFile(t *testing.T, dir, label, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, label+".txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCheckMissingDirWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "signatures")
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "alice")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched {
		t.Error("Check() Matched = true, want false")
	}
	if d.Enrolled != "alice" {
		t.Errorf("Check() Enrolled = %q, want %q", d.Enrolled, "alice")
	}

	data, err := os.ReadFile(filepath.Join(dir, "alice.txt"))
	if err != nil {
		t.Fatalf("reading signature: %v", err)
	}
	if string(data) != "[1, 0]" {
		t.Errorf("signature content = %q, want %q", data, "[1, 0]")
	}
}

func TestCheckEmptyDirWrites(t *testing.T) {
	dir := t.TempDir()
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "bob")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched {
		t.Error("Check() Matched = true, want false")
	}
	if got := listFiles(t, dir); len(got) != 1 || got[0] != "bob.txt" {
		t.Errorf("store files = %v, want [bob.txt]", got)
	}
}

func TestCheckSimilarSignatureMatches(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "alice", embedding.Format(atSimilarity(0.9)))
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "newcomer")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Matched {
		t.Fatal("Check() Matched = false, want true")
	}
	if d.Best.Label != "alice" {
		t.Errorf("Check() Best.Label = %q, want %q", d.Best.Label, "alice")
	}
	if math.Abs(d.Best.Similarity-0.9) > 1e-9 {
		t.Errorf("Check() Best.Similarity = %f, want 0.9", d.Best.Similarity)
	}
	if d.Enrolled != "" {
		t.Errorf("Check() Enrolled = %q, want empty", d.Enrolled)
	}
	if got := listFiles(t, dir); len(got) != 1 {
		t.Errorf("store files = %v, want only alice.txt", got)
	}
}

func TestCheckDissimilarSignatureWrites(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "alice", embedding.Format(atSimilarity(0.1)))
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "bob")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched {
		t.Error("Check() Matched = true, want false")
	}
	if d.Enrolled != "bob" {
		t.Errorf("Check() Enrolled = %q, want %q", d.Enrolled, "bob")
	}
	if _, err := os.Stat(filepath.Join(dir, "bob.txt")); err != nil {
		t.Errorf("bob.txt not written: %v", err)
	}
}

func TestCheckWritesOnceForManyMisses(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "a", embedding.Format(atSimilarity(0.1)))
	writeSignatureFile(t, dir, "b", embedding.Format(atSimilarity(0.2)))
	writeSignatureFile(t, dir, "c", embedding.Format(atSimilarity(-0.5)))

	var saves int
	store := &countingStore{Store: NewDirStore(dir), saves: &saves}
	m := NewMatcher(store, DefaultThreshold, quietLogger())

	if _, err := m.Check(context.Background(), query, "d"); err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if saves != 1 {
		t.Errorf("Save() called %d times, want 1", saves)
	}
	if got := listFiles(t, dir); len(got) != 4 {
		t.Errorf("store files = %v, want 4 files", got)
	}
}

func TestCheckPicksBestMatch(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "a", embedding.Format(atSimilarity(0.5)))
	writeSignatureFile(t, dir, "b", embedding.Format(atSimilarity(0.95)))
	writeSignatureFile(t, dir, "c", embedding.Format(atSimilarity(0.1)))
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "x")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Matched || d.Best.Label != "b" {
		t.Errorf("Check() = %+v, want match on b", d)
	}
}

func TestCheckThresholdIsExclusive(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "edge", "[1, 0]")
	m := NewMatcher(NewDirStore(dir), 1, quietLogger())

	d, err := m.Check(context.Background(), query, "again")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched {
		t.Error("similarity equal to the threshold should not match")
	}
}

func TestCheckDimensionMismatchIsNoMatch(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "wide", "[1, 0, 0]")
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "narrow")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched {
		t.Error("vectors of different length should never match")
	}
	if d.Enrolled != "narrow" {
		t.Errorf("Check() Enrolled = %q, want %q", d.Enrolled, "narrow")
	}
}

func TestCheckContinuesPastBadFiles(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "a-broken", "[1, nope]")
	writeSignatureFile(t, dir, "b-nobrackets", "hello")
	writeSignatureFile(t, dir, "c-good", embedding.Format(atSimilarity(0.9)))
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "x")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Matched || d.Best.Label != "c-good" {
		t.Errorf("Check() = %+v, want match on c-good", d)
	}
	if len(d.Errors) != 2 {
		t.Fatalf("Check() Errors = %v, want 2", d.Errors)
	}
	if !strings.Contains(d.Errors[0].Error(), "a-broken") {
		t.Errorf("first error = %v, want it to name a-broken", d.Errors[0])
	}
}

func TestCheckStripsWhitespace(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "spaced", "  [ 0.9 ,  0.1 ]  \nsecond line ignored\n")
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "x")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Matched {
		t.Error("Check() Matched = false, want true")
	}
}

func TestCheckGeneratesLabel(t *testing.T) {
	dir := t.TempDir()
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	d, err := m.Check(context.Background(), query, "")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !strings.HasPrefix(d.Enrolled, "speaker-") || len(d.Enrolled) != len("speaker-")+8 {
		t.Errorf("Check() Enrolled = %q, want speaker-XXXXXXXX", d.Enrolled)
	}
}

func TestCheckRejectsBadLabel(t *testing.T) {
	m := NewMatcher(NewDirStore(t.TempDir()), DefaultThreshold, quietLogger())
	for _, label := range []string{"../escape", `a\b`, ".."} {
		if _, err := m.Check(context.Background(), query, label); err == nil {
			t.Errorf("Check(label=%q) should fail", label)
		}
	}
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "low", embedding.Format(atSimilarity(0.1)))
	writeSignatureFile(t, dir, "mid", embedding.Format(atSimilarity(0.6)))
	writeSignatureFile(t, dir, "high", embedding.Format(atSimilarity(0.99)))
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	id, err := m.Identify(context.Background(), query)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if id.Empty {
		t.Error("Identify() Empty = true, want false")
	}
	if len(id.Matches) != 2 {
		t.Fatalf("Identify() Matches = %v, want 2", id.Matches)
	}
	if id.Matches[0].Label != "high" || id.Matches[1].Label != "mid" {
		t.Errorf("Identify() order = %v, want [high mid]", id.Matches)
	}
	if got := listFiles(t, dir); len(got) != 3 {
		t.Errorf("Identify() must not write, store files = %v", got)
	}
}

func TestIdentifyEmptyStore(t *testing.T) {
	m := NewMatcher(NewDirStore(filepath.Join(t.TempDir(), "none")), DefaultThreshold, quietLogger())

	id, err := m.Identify(context.Background(), query)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if !id.Empty {
		t.Error("Identify() Empty = false, want true")
	}
}

func TestCheckCancelled(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "a", "[1, 0]")
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Check(ctx, query, "b"); err == nil {
		t.Error("Check() with cancelled context should fail")
	}
	if _, err := os.Stat(filepath.Join(dir, "b.txt")); err == nil {
		t.Error("Check() with cancelled context should not write")
	}
}

func TestMatcherZeroThreshold(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "alice", "[1, 0]")
	m := NewMatcher(NewDirStore(dir), 0, quietLogger())
	if got := m.Threshold(); got != 0 {
		t.Fatalf("Threshold() = %v, want 0", got)
	}

	// similarity 0.0995 is above a zero threshold
	d, err := m.Check(context.Background(), embedding.Vector{0.1, 1}, "carol")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !d.Matched || d.Best.Label != "alice" {
		t.Errorf("Check() = %+v, want match on alice", d)
	}
	if got := listFiles(t, dir); len(got) != 1 {
		t.Errorf("Check() must not write on a match, store files = %v", got)
	}

	// orthogonal vectors score exactly 0, which is not above it
	d, err = m.Check(context.Background(), embedding.Vector{0, 1}, "bob")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if d.Matched || d.Enrolled != "bob" {
		t.Errorf("Check() = %+v, want bob enrolled", d)
	}
}

func TestMatcherRejectsEmptyVector(t *testing.T) {
	dir := t.TempDir()
	writeSignatureFile(t, dir, "alice", "[1, 0]")
	m := NewMatcher(NewDirStore(dir), DefaultThreshold, quietLogger())

	for _, vec := range []embedding.Vector{nil, {}} {
		if _, err := m.Check(context.Background(), vec, "empty"); !errors.Is(err, embedding.ErrMalformed) {
			t.Errorf("Check(%v) error = %v, want ErrMalformed", vec, err)
		}
		if _, err := m.Identify(context.Background(), vec); !errors.Is(err, embedding.ErrMalformed) {
			t.Errorf("Identify(%v) error = %v, want ErrMalformed", vec, err)
		}
	}
	if got := listFiles(t, dir); len(got) != 1 {
		t.Errorf("an empty vector must not be written, store files = %v", got)
	}

	sigs, loadErrs, err := m.List(context.Background())
	if err != nil || len(loadErrs) != 0 || len(sigs) != 1 {
		t.Errorf("List() = %v, %v, %v; want alice only", sigs, loadErrs, err)
	}
}

// countingStore counts Save calls on the wrapped store.
type countingStore struct {
	Store
	saves *int
}

func (s *countingStore) Save(ctx context.Context, sig Signature) error {
	*s.saves++
	return s.Store.Save(ctx, sig)
}
