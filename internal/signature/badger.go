package signature

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/chaz8081/gostt-spk/internal/embedding"
)

// keyPrefix namespaces signature keys in the database.
const keyPrefix = "signature:"

// BadgerStore keeps signatures in a BadgerDB database. Values use the same
// bracketed text as signature files.
type BadgerStore struct {
	db *badger.DB
}

// BadgerOptions configures a BadgerStore.
type BadgerOptions struct {
	// Dir holds the database files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory. Used by tests.
	InMemory bool

	// Logger receives badger warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// OpenBadger opens (or creates) a BadgerStore.
func OpenBadger(opts BadgerOptions) (*BadgerStore, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("signature: badger dir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{logger})
	if opts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("signature: open badger %s: %w", opts.Dir, err)
	}
	return &BadgerStore{db: db}, nil
}

// All yields the signatures in key order.
func (s *BadgerStore) All(ctx context.Context) iter.Seq2[Signature, error] {
	return func(yield func(Signature, error) bool) {
		prefix := []byte(keyPrefix)
		stopped := false
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true, PrefetchSize: 16})
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				item := it.Item()
				label := string(item.Key()[len(prefix):])

				var sig Signature
				var loadErr error
				val, err := item.ValueCopy(nil)
				if err == nil {
					sig.Vector, err = embedding.Parse(string(val))
				}
				if err != nil {
					loadErr = &LoadError{Label: label, Err: err}
				} else {
					sig.Label = label
				}
				if !yield(sig, loadErr) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Signature{}, fmt.Errorf("signature: iterate badger: %w", err))
		}
	}
}

// Save stores sig under its label, replacing any previous value.
func (s *BadgerStore) Save(_ context.Context, sig Signature) error {
	if err := ValidateLabel(sig.Label); err != nil {
		return err
	}
	key := []byte(keyPrefix + sig.Label)
	val := []byte(embedding.Format(sig.Vector))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return fmt.Errorf("signature: save %q: %w", sig.Label, err)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger output to slog, dropping its info and debug chatter.
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(f, v...), "component", "badger")
}

func (l badgerLogger) Warningf(f string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(f, v...), "component", "badger")
}

func (badgerLogger) Infof(string, ...interface{})  {}
func (badgerLogger) Debugf(string, ...interface{}) {}
