package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chaz8081/gostt-spk/internal/config"
	"github.com/chaz8081/gostt-spk/internal/embedding"
	"github.com/chaz8081/gostt-spk/internal/recognize/vosk"
	"github.com/chaz8081/gostt-spk/internal/session"
	"github.com/chaz8081/gostt-spk/internal/signature"
)

// openStore opens the configured signature store. The caller must Close it.
func openStore(cfg *config.Config) (signature.Store, error) {
	switch cfg.Signatures.Backend {
	case "badger":
		store, err := signature.OpenBadger(signature.BadgerOptions{
			Dir:    cfg.Signatures.Dir,
			Logger: slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return signature.NewDirStore(cfg.Signatures.Dir), nil
	}
}

func newMatcher(store signature.Store, cfg *config.Config) *signature.Matcher {
	return signature.NewMatcher(store, cfg.Signatures.Threshold, slog.Default())
}

// loadModel loads the Vosk models named in cfg.
func loadModel(ctx context.Context, cfg *config.Config) (*vosk.Model, error) {
	vosk.SetLogLevel(cfg.Models.EngineLog)

	slog.Info("loading models", "model", cfg.Models.ModelPath, "speaker", cfg.Models.SpeakerModel)
	start := time.Now()
	model, err := vosk.Load(ctx, cfg.Models.ModelPath, cfg.Models.SpeakerModel)
	if err != nil {
		return nil, fmt.Errorf("%w\n\nDownload models with 'gostt-spk models download small-en-us' and 'gostt-spk models download spk'", err)
	}
	slog.Info("models loaded", "elapsed", time.Since(start).Round(time.Millisecond), "speaker", model.HasSpeakerModel())
	return model, nil
}

// engine bundles what a recognition command holds open.
type engine struct {
	model   *vosk.Model
	store   signature.Store
	session *session.Session
}

func openEngine(ctx context.Context, cfg *config.Config, out io.Writer, showPartial bool) (*engine, error) {
	model, err := loadModel(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var matcher *signature.Matcher
	var store signature.Store
	if model.HasSpeakerModel() {
		store, err = openStore(cfg)
		if err != nil {
			model.Close()
			return nil, err
		}
		matcher = newMatcher(store, cfg)
	} else {
		slog.Warn("no speaker model configured, speaker identification disabled")
	}

	s, err := session.New(session.Options{
		Factory:     model.Factory(float64(cfg.Audio.SampleRate)),
		Matcher:     matcher,
		Out:         out,
		Logger:      slog.Default(),
		SampleRate:  int(cfg.Audio.SampleRate),
		ChunkBytes:  cfg.Audio.ChunkBytes(),
		ShowPartial: showPartial,
	})
	if err != nil {
		model.Close()
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return &engine{model: model, store: store, session: s}, nil
}

func (e *engine) Close() error {
	e.model.Close()
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// readVector reads an embedding from a signature file (first line "[...]")
// or from a saved recognizer result holding an "spk" field.
func readVector(path string) (embedding.Vector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	if strings.Contains(text, `"spk"`) {
		v, ok, err := embedding.FromResult(text)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if ok {
			return v, nil
		}
	}
	line, _, _ := strings.Cut(text, "\n")
	v, err := embedding.Parse(line)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
