package capacity

import "github.com/matrix-org/tessera/pkg/tile"

// The layout budget is split in twelfths between the main area and the secondary list area.
const Units = 12

// The split of the layout budget.
type Split struct {
	Main      int
	Secondary int
}

// The percentage of the screen given to the main area, as announced to the server.
func (s Split) MainPercent() int {
	return 100 - (s.Secondary*100)/Units
}

// Secondary area share by amount of active tiles (lower bound inclusive).
// A discrete policy table rather than a function, the breakpoints are part of the wire contract.
var breakpoints = []struct {
	from      int
	secondary int
}{
	{50, 10},
	{20, 8},
	{12, 8},
	{4, 6},
	{1, 4},
	{0, 1},
}

// Decides the split between the main and the secondary area for `n` active tiles.
func AutoAdjust(n int, eventType tile.EventType, shareActive bool) Split {
	switch {
	case eventType == tile.EventBroadcast:
		return fromMain(0)
	case eventType == tile.EventChat, eventType == tile.EventConference && !shareActive:
		return fromSecondary(Units)
	case shareActive:
		return fromSecondary(10)
	}

	for _, bp := range breakpoints {
		if n >= bp.from {
			return fromSecondary(bp.secondary)
		}
	}

	return fromSecondary(1)
}

func fromSecondary(secondary int) Split {
	return Split{Main: Units - secondary, Secondary: secondary}
}

func fromMain(main int) Split {
	return Split{Main: main, Secondary: Units - main}
}
