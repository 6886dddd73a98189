package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const appName = "gostt-spk"

// Config holds all application configuration.
type Config struct {
	Models     ModelsConfig     `yaml:"models"`
	Signatures SignaturesConfig `yaml:"signatures"`
	Audio      AudioConfig      `yaml:"audio"`
	LogLevel   string           `yaml:"log_level"`
}

// ModelsConfig holds recognizer model locations.
type ModelsConfig struct {
	Dir          string `yaml:"dir"`           // download and install target
	ModelPath    string `yaml:"model_path"`    // acoustic model directory
	SpeakerModel string `yaml:"speaker_model"` // speaker model directory, empty disables speaker ID
	EngineLog    int    `yaml:"engine_log"`    // vosk log level, -1 silences it
}

// SignaturesConfig holds speaker signature store settings.
type SignaturesConfig struct {
	Backend   string  `yaml:"backend"` // "dir" or "badger"
	Dir       string  `yaml:"dir"`
	Threshold float64 `yaml:"threshold"`
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate uint32 `yaml:"sample_rate"`
	Channels   uint32 `yaml:"channels"`
	ChunkMS    int    `yaml:"chunk_ms"`
}

// ChunkBytes returns the size of one recognizer input chunk in bytes of
// 16-bit mono PCM.
func (a AudioConfig) ChunkBytes() int {
	return int(a.SampleRate) * a.ChunkMS / 1000 * 2
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultDataDir returns the directory for models and signatures.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultModelsDir returns the default models directory.
func DefaultModelsDir() string {
	return filepath.Join(DefaultDataDir(), "models")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	modelsDir := DefaultModelsDir()
	return &Config{
		Models: ModelsConfig{
			Dir:          modelsDir,
			ModelPath:    filepath.Join(modelsDir, "vosk-model-small-en-us-0.15"),
			SpeakerModel: filepath.Join(modelsDir, "vosk-model-spk-0.4"),
			EngineLog:    -1,
		},
		Signatures: SignaturesConfig{
			Backend:   "dir",
			Dir:       filepath.Join(DefaultDataDir(), "signatures"),
			Threshold: 0.27,
		},
		Audio: AudioConfig{
			SampleRate: 16000,
			Channels:   1,
			ChunkMS:    200,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. A leading ~ in paths is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Models.Dir = expandTilde(cfg.Models.Dir)
	cfg.Models.ModelPath = expandTilde(cfg.Models.ModelPath)
	cfg.Models.SpeakerModel = expandTilde(cfg.Models.SpeakerModel)
	cfg.Signatures.Dir = expandTilde(cfg.Signatures.Dir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Models.ModelPath == "" {
		return fmt.Errorf("models.model_path must not be empty")
	}

	switch c.Signatures.Backend {
	case "dir", "badger":
	default:
		return fmt.Errorf("signatures.backend must be \"dir\" or \"badger\", got %q", c.Signatures.Backend)
	}

	if c.Signatures.Dir == "" {
		return fmt.Errorf("signatures.dir must not be empty")
	}

	if c.Signatures.Threshold <= -1 || c.Signatures.Threshold >= 1 {
		return fmt.Errorf("signatures.threshold must be in (-1, 1), got %v", c.Signatures.Threshold)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.ChunkMS <= 0 {
		return fmt.Errorf("audio.chunk_ms must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a log_level value to a slog.Level. Unknown values map to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = `# gostt-spk configuration
#
# models.model_path      Vosk acoustic model directory
# models.speaker_model   Vosk speaker model directory (empty disables speaker identification)
# signatures.backend     "dir" (one <label>.txt per speaker) or "badger"
# signatures.threshold   cosine similarity a signature must exceed to match
`

// WriteDefault writes the default config to DefaultConfigPath. If the file
// already exists it is left alone and WriteDefault returns ("", nil).
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader+"\n"), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
