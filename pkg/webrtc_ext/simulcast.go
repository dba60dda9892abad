package webrtc_ext

import (
	"github.com/thoas/go-funk"
)

type SimulcastLayer int

const (
	SimulcastLayerNone SimulcastLayer = iota
	SimulcastLayerLow
	SimulcastLayerMedium
	SimulcastLayerHigh
)

func RIDToSimulcastLayer(rid string) SimulcastLayer {
	switch rid {
	case "q": // quarter
		return SimulcastLayerLow
	case "h": // half
		return SimulcastLayerMedium
	case "f": // full
		return SimulcastLayerHigh
	default:
		return SimulcastLayerNone
	}
}

func (s SimulcastLayer) RID() string {
	switch s {
	case SimulcastLayerLow:
		return "q"
	case SimulcastLayerMedium:
		return "h"
	case SimulcastLayerHigh:
		return "f"
	default:
		return ""
	}
}

func (s SimulcastLayer) String() string {
	switch s {
	case SimulcastLayerLow:
		return "low"
	case SimulcastLayerMedium:
		return "medium"
	case SimulcastLayerHigh:
		return "high"
	default:
		return "none"
	}
}

// Picks the layer to consume for a tile of the given size out of the layers that a producer publishes.
// An empty list (or one containing `SimulcastLayerNone`) means the producer does not use simulcast.
func DesiredLayer(available []SimulcastLayer, fullWidth, fullHeight, tileWidth, tileHeight int) SimulcastLayer {
	if len(available) == 0 || funk.Contains(available, SimulcastLayerNone) {
		return SimulcastLayerNone
	}

	desired := layerForSize(fullWidth, fullHeight, tileWidth, tileHeight)
	if funk.Contains(available, desired) {
		return desired
	}

	// Closest available layer, preferring medium.
	for _, fallback := range []SimulcastLayer{SimulcastLayerMedium, SimulcastLayerLow, SimulcastLayerHigh} {
		if funk.Contains(available, fallback) {
			return fallback
		}
	}

	return SimulcastLayerLow
}

// A medium layer is a quarter of the full resolution, the low layer is a quarter of the medium one.
// We compare the sum of width and height, so the ratios are 2 and 4.
func layerForSize(fullWidth, fullHeight, tileWidth, tileHeight int) SimulcastLayer {
	fullSize := fullWidth + fullHeight
	tileSize := tileWidth + tileHeight

	if fullSize == 0 || tileSize == 0 {
		return SimulcastLayerLow
	}

	if ratio := float32(fullSize) / float32(tileSize); ratio <= 1 {
		return SimulcastLayerHigh
	} else if ratio <= 2 {
		return SimulcastLayerMedium
	}

	return SimulcastLayerLow
}
