// Package cmd implements the gostt-spk command line.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaz8081/gostt-spk/internal/config"
)

var (
	cfgFile string
	verbose bool

	// cfg is loaded by the root PersistentPreRunE before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gostt-spk",
	Short: "Offline speech recognition with speaker identification",
	Long: `gostt-spk transcribes speech with Vosk and recognizes who is speaking.

Each enrolled speaker is a signature: the speaker embedding Vosk computes for
an utterance. New audio is compared against every signature by cosine
similarity; a score above the threshold (default 0.27) is the same speaker.

Examples:
  gostt-spk models download small-en-us
  gostt-spk models download spk
  gostt-spk recognize alice.wav bob.wav   # enroll alice and bob
  gostt-spk listen                        # who is talking?`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: ~/.config/gostt-spk/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func setup(cmd *cobra.Command, _ []string) error {
	logOut := cmd.ErrOrStderr()

	loaded, err := loadConfig(cfgFile, logOut)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	cfg = loaded

	level := config.ParseLogLevel(cfg.LogLevel)
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string, logOut io.Writer) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		loaded, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		return loaded, nil
	}

	if verbose {
		fmt.Fprintln(logOut, "No config file found, using defaults")
	}
	return config.Default(), nil
}
