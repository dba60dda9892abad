package layout

import (
	"errors"
	"fmt"
	"time"

	"github.com/matrix-org/tessera/pkg/layout/grid"
	"github.com/matrix-org/tessera/pkg/tile"
)

var ErrInvalidConfig = errors.New("invalid layout config")

// Configuration of the layout engine.
type Config struct {
	EventType   tile.EventType   `yaml:"eventType"`
	DisplayMode tile.DisplayMode `yaml:"displayMode"`
	// Stream-less tiles follow the videos instead of being mixed with them by loudness.
	VideoOptimized    bool `yaml:"videoOptimized"`
	SortAudioLoudness bool `yaml:"sortAudioLoudness"`
	// Tiles per page.
	ItemPageLimit int `yaml:"itemPageLimit"`
	// Tiles per page while a screen is shared.
	ScreenPageLimit int `yaml:"screenPageLimit"`
	// Below this amount of tiles the grid is a single strip.
	FixedPageLimit int  `yaml:"fixedPageLimit"`
	WideScreen     bool `yaml:"wideScreen"`
	// Interval of the automatic refresh in milliseconds, 0 disables it.
	RefreshInterval int `yaml:"refreshInterval"`
	// Amount of operations that may wait for the engine.
	QueueSize int `yaml:"queueSize"`
	// Amount of loudness samples averaged per participant.
	LoudnessWindow int            `yaml:"loudnessWindow"`
	Container      grid.Container `yaml:"container"`
	// Resolution of the published videos.
	FullWidth  int `yaml:"fullWidth"`
	FullHeight int `yaml:"fullHeight"`
}

func DefaultConfig() Config {
	return Config{
		EventType:       tile.EventConference,
		DisplayMode:     tile.DisplayMedia,
		ItemPageLimit:   4,
		ScreenPageLimit: 4,
		FixedPageLimit:  4,
		RefreshInterval: 1000,
		QueueSize:       16,
		LoudnessWindow:  5,
		Container: grid.Container{
			Width:               1280,
			Height:              720,
			PaginationDirection: grid.PaginationHorizontal,
			PaginationThickness: 40,
		},
		FullWidth:  1280,
		FullHeight: 720,
	}
}

func (c Config) Validate() error {
	switch {
	case !c.EventType.Valid():
		return fmt.Errorf("%w: event type %q", ErrInvalidConfig, c.EventType)
	case !c.DisplayMode.Valid():
		return fmt.Errorf("%w: display mode %q", ErrInvalidConfig, c.DisplayMode)
	case c.ItemPageLimit < 1, c.ScreenPageLimit < 1, c.FixedPageLimit < 1:
		return fmt.Errorf("%w: page limits must be positive", ErrInvalidConfig)
	case c.RefreshInterval < 0, c.QueueSize < 1:
		return fmt.Errorf("%w: refresh interval and queue size", ErrInvalidConfig)
	case c.Container.Width < 0, c.Container.Height < 0:
		return fmt.Errorf("%w: container size", ErrInvalidConfig)
	}

	return nil
}

func (c Config) refreshInterval() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Millisecond
}
