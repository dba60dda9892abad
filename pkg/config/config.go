package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/imdario/mergo"
	"github.com/matrix-org/tessera/pkg/layout"
	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/telemetry"
	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Layout engine configuration.
type Config struct {
	// Layout (grid and pagination) configuration.
	Layout layout.Config `yaml:"layout"`
	// Matrix configuration, used to announce the layout to the focus. Optional.
	Matrix signaling.Config `yaml:"matrix"`
	// Tracing configuration. Optional.
	Telemetry telemetry.Config `yaml:"telemetry"`
	// WebRTC configuration of the connections that carry the media of the tiles.
	WebRTC webrtc_ext.Config `yaml:"webrtc"`
	// Starting from which level to log stuff.
	LogLevel string `yaml:"log"`
}

func DefaultConfig() Config {
	return Config{
		Layout:   layout.DefaultConfig(),
		LogLevel: "info",
	}
}

// Tries to load a config from the `CONFIG` environment variable.
// If the environment variable is not set, tries to load a config from the
// provided path to the config file (YAML). Returns an error if the config could
// not be loaded.
func LoadConfig(path string) (*Config, error) {
	config, err := LoadConfigFromEnv()
	if err != nil {
		if !errors.Is(err, ErrNoConfigEnvVar) {
			return nil, err
		}

		return LoadConfigFromPath(path)
	}

	return config, nil
}

// ErrNoConfigEnvVar is returned when the CONFIG environment variable is not set.
var ErrNoConfigEnvVar = errors.New("environment variable not set or invalid")

// ErrInvalidConfig is returned when the loaded values can't be used.
var ErrInvalidConfig = errors.New("invalid config values")

// Tries to load the config from environment variable (`CONFIG`).
func LoadConfigFromEnv() (*Config, error) {
	configEnv := os.Getenv("CONFIG")
	if configEnv == "" {
		return nil, ErrNoConfigEnvVar
	}

	return LoadConfigFromString(configEnv)
}

// Tries to load a config from the provided path.
func LoadConfigFromPath(path string) (*Config, error) {
	logrus.WithField("path", path).Info("loading config")

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return LoadConfigFromString(string(file))
}

// Load config from the provided string. Values that are not set are taken from `DefaultConfig`.
// Returns an error if the string is not a valid YAML or if the values are invalid.
func LoadConfigFromString(configString string) (*Config, error) {
	logrus.Info("loading config from string")

	var config Config
	if err := yaml.Unmarshal([]byte(configString), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML file: %w", err)
	}

	if err := mergo.Merge(&config, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Matrix.Enabled() && (c.Matrix.UserID == "" || c.Matrix.Focus.UserID == "" || c.Matrix.ConferenceID == "") {
		return fmt.Errorf("%w: matrix needs a user, a focus and a conference", ErrInvalidConfig)
	}

	return nil
}
