package roster

import (
	"errors"
	"fmt"

	"github.com/pion/rtp"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var ErrNoAudioLevel = errors.New("packet carries no audio level extension")

// Keeps a rolling average of the last `window` loudness samples of each participant.
// Not safe for concurrent use, the tracker guards it.
type LoudnessMeter struct {
	window  int
	samples map[string][]float64
}

func NewLoudnessMeter(window int) *LoudnessMeter {
	if window <= 0 {
		window = 1
	}

	return &LoudnessMeter{
		window:  window,
		samples: make(map[string][]float64),
	}
}

// Records a loudness sample in dBov (as reported by an audio level observer).
func (m *LoudnessMeter) Observe(name string, dBov float64) {
	if dBov < MinLoudness {
		dBov = MinLoudness
	} else if dBov > 0 {
		dBov = 0
	}

	samples := append(m.samples[name], dBov)
	if len(samples) > m.window {
		samples = samples[len(samples)-m.window:]
	}

	m.samples[name] = samples
}

// Records the audio level carried by the RFC 6464 header extension of an RTP packet.
func (m *LoudnessMeter) ObserveRTP(name string, packet *rtp.Packet, extensionID uint8) error {
	raw := packet.GetExtension(extensionID)
	if raw == nil {
		return ErrNoAudioLevel
	}

	var level rtp.AudioLevelExtension
	if err := level.Unmarshal(raw); err != nil {
		return fmt.Errorf("failed to parse audio level: %w", err)
	}

	// The extension carries the level as -dBov.
	m.Observe(name, -float64(level.Level))
	return nil
}

// Drops the samples of a participant.
func (m *LoudnessMeter) Forget(name string) {
	delete(m.samples, name)
}

// Average loudness of every participant that has samples, sorted by name.
func (m *LoudnessMeter) Levels() []AudioLevel {
	names := maps.Keys(m.samples)
	slices.Sort(names)

	levels := make([]AudioLevel, 0, len(names))
	for _, name := range names {
		samples := m.samples[name]
		if len(samples) == 0 {
			continue
		}

		var sum float64
		for _, sample := range samples {
			sum += sample
		}

		levels = append(levels, AudioLevel{Name: name, AverageLoudness: sum / float64(len(samples))})
	}

	return levels
}
