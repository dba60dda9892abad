package grid

import (
	"math"

	"github.com/matrix-org/tessera/pkg/tile"
	"golang.org/x/exp/constraints"
)

// Describes how a number of tiles maps onto a near-square grid. The primary grid
// holds `NumRows` full rows of `NumCols` tiles, the remaining tiles (the last row)
// go to the alt grid unless the grid is a perfect fit.
type Spec struct {
	RemoveAltGrid   bool
	NumToAdd        int
	NumRows         int
	NumCols         int
	RemainingVideos int
	ActualRows      int
	LastRowCols     int
}

// Picks a near-square layout that has at least `n` cells. The smaller dimension
// grows first, so the aspect stays as square as possible.
// For `n <= 0` the grid is a single cell, rendering zero tiles is up to the caller.
func CalculateRowsAndColumns(n int) (rows, cols int) {
	if n <= 0 {
		return 1, 1
	}

	cols = int(math.Floor(math.Sqrt(float64(n))))
	rows = ceilDiv(n, cols)

	for rows*cols < n {
		if cols < rows {
			cols++
		} else {
			rows++
		}
	}

	return rows, cols
}

// Splits `actives` tiles between the primary and the alt grid for a `rows` x `cols` layout.
func CheckGrid(rows, cols, actives int) Spec {
	if rows <= 0 || cols <= 0 || actives <= 0 {
		return Spec{RemoveAltGrid: true}
	}

	if rows*cols == actives {
		return Spec{
			RemoveAltGrid: true,
			NumToAdd:      actives,
			NumRows:       rows,
			NumCols:       cols,
			ActualRows:    rows,
			LastRowCols:   cols,
		}
	}

	// The grid is too small, the overflow can't be arranged, so it goes to the alt grid as is.
	if rows*cols < actives {
		return Spec{
			NumToAdd:        rows * cols,
			NumRows:         rows,
			NumCols:         cols,
			RemainingVideos: actives - rows*cols,
			ActualRows:      rows,
			LastRowCols:     actives - rows*cols,
		}
	}

	lastRow := rows
	lastRowCols := actives - (rows-1)*cols

	// A last row that is less than half full is merged into the one above it.
	if 2*lastRowCols < cols && rows > 1 {
		lastRow = rows - 1
		lastRowCols += cols
	}

	fullRows := lastRow - 1
	return Spec{
		RemoveAltGrid:   false,
		NumToAdd:        fullRows * cols,
		NumRows:         fullRows,
		NumCols:         cols,
		RemainingVideos: lastRowCols,
		ActualRows:      fullRows,
		LastRowCols:     lastRowCols,
	}
}

// Options for the grid estimate.
type EstimateOptions struct {
	// Below this amount of tiles the grid is a single strip.
	FixedPageLimit int
	// Page limit while a screen is shared.
	ScreenPageLimit int
	ShareActive     bool
	// Wide and medium screens lay the strip out horizontally.
	WideScreen bool
	EventType  tile.EventType
}

// Estimates the grid for `n` tiles, returns the amount of cells and the grid dimensions.
// Small amounts of tiles are laid out as a single row or column.
func GetEstimate(n int, opts EstimateOptions) (estimate, rows, cols int) {
	if n > 0 && (n < opts.FixedPageLimit || (opts.ShareActive && n < opts.ScreenPageLimit+1)) {
		singleFocus := opts.EventType == tile.EventChat || (opts.EventType == tile.EventConference && !opts.ShareActive)
		if singleFocus == opts.WideScreen {
			return n, 1, n
		}

		return n, n, 1
	}

	rows, cols = CalculateRowsAndColumns(n)
	return rows * cols, rows, cols
}

func ceilDiv[T constraints.Integer](a, b T) T {
	return (a + b - 1) / b
}
