package signature

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

// fileExt is appended to a label to form its signature file name.
const fileExt = ".txt"

// maxLineBytes bounds the first line of a signature file.
const maxLineBytes = 1 << 20

// DirStore keeps one text file per signature in a flat directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a store rooted at dir. The directory is created on the
// first write, not here.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the store directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// All yields the signatures in file name order. A missing store directory, or
// a path that is not a directory, yields nothing.
func (s *DirStore) All(ctx context.Context) iter.Seq2[Signature, error] {
	return func(yield func(Signature, error) bool) {
		info, err := os.Stat(s.dir)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
			return
		}
		if err != nil {
			yield(Signature{}, fmt.Errorf("signature: stat %s: %w", s.dir, err))
			return
		}

		entries, err := os.ReadDir(s.dir)
		if err != nil {
			yield(Signature{}, fmt.Errorf("signature: list %s: %w", s.dir, err))
			return
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, e := range entries {
			if ctx.Err() != nil {
				yield(Signature{}, ctx.Err())
				return
			}
			if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			label := strings.TrimSuffix(e.Name(), fileExt)
			vec, err := readFirstLine(filepath.Join(s.dir, e.Name()))
			if err != nil {
				if !yield(Signature{}, &LoadError{Label: label, Err: err}) {
					return
				}
				continue
			}
			if !yield(Signature{Label: label, Vector: vec}, nil) {
				return
			}
		}
	}
}

// Save writes sig to "<label>.txt", overwriting an existing file.
func (s *DirStore) Save(_ context.Context, sig Signature) error {
	if err := ValidateLabel(sig.Label); err != nil {
		return err
	}
	return s.WriteSignature(sig.Label, embedding.Format(sig.Vector))
}

// WriteSignature makes sure the store directory exists and writes serialized
// as the only content of "<label>.txt".
func (s *DirStore) WriteSignature(label, serialized string) error {
	if err := ValidateLabel(label); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("signature: create store dir: %w", err)
	}
	path := s.Path(label)
	if err := os.WriteFile(path, []byte(serialized), 0644); err != nil {
		return fmt.Errorf("signature: write %s: %w", path, err)
	}
	return nil
}

// Path returns the file that holds the signature for label.
func (s *DirStore) Path(label string) string {
	return filepath.Join(s.dir, label+fileExt)
}

// Close is a no-op.
func (s *DirStore) Close() error {
	return nil
}

func readFirstLine(path string) (embedding.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty file: %w", embedding.ErrNoVector)
	}
	return embedding.Parse(sc.Text())
}
