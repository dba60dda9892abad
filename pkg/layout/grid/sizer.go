package grid

import "github.com/matrix-org/tessera/pkg/tile"

// Direction of the pagination bar.
type PaginationDirection string

const (
	PaginationHorizontal PaginationDirection = "horizontal"
	PaginationVertical   PaginationDirection = "vertical"
)

// The pixel box that hosts the grids.
type Container struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Orientation of the pagination bar: a horizontal bar takes height, a vertical one takes width.
	PaginationDirection PaginationDirection `yaml:"paginationDirection"`
	// Thickness of the pagination bar in pixels.
	PaginationThickness int `yaml:"paginationThickness"`
	// Whether the pagination bar is shown.
	Paginate bool `yaml:"-"`
}

// Width and height left for the tiles once the pagination bar is subtracted.
func (c Container) Available() (width, height int) {
	width, height = c.Width, c.Height
	if !c.Paginate {
		return width, height
	}

	if c.PaginationDirection == PaginationVertical {
		width -= c.PaginationThickness
	} else {
		height -= c.PaginationThickness
	}

	return max0(width), max0(height)
}

// Dimensions of a grid and of each of its tiles.
type Dimensions struct {
	Rows   int
	Cols   int
	Width  int
	Height int
}

// Which grid the dimensions are computed for.
type Slot int

const (
	SlotPrimary Slot = iota
	SlotAlt
)

const (
	defaultSpacing = 3
	chatSpacing    = 0
)

// Computes tile sizes for the primary grid and the overflow (alt) grid.
// Both slots are kept separately so that the alt grid may use different tile sizes.
type Sizer struct {
	Primary Dimensions
	Alt     Dimensions
}

// Recomputes the dimensions of a slot and returns them.
func (s *Sizer) Update(rows, cols, actualRows int, slot Slot, container Container, eventType tile.EventType) Dimensions {
	width, height := container.Available()
	tileWidth, tileHeight := TileSize(width, height, cols, actualRows, spacingFor(eventType))

	dimensions := Dimensions{Rows: rows, Cols: cols, Width: tileWidth, Height: tileHeight}
	if slot == SlotAlt {
		s.Alt = dimensions
	} else {
		s.Primary = dimensions
	}

	return dimensions
}

// Resets the alt grid when there is no overflow.
func (s *Sizer) ClearAlt() {
	s.Alt = Dimensions{}
}

// Size of a single tile in a grid with `cols` columns and `rows` rows separated by `spacing`.
func TileSize(width, height, cols, rows, spacing int) (int, int) {
	if cols <= 0 || rows <= 0 {
		return 0, 0
	}

	tileWidth := (width - (cols-1)*spacing) / cols
	tileHeight := (height - (rows-1)*spacing) / rows

	return max0(tileWidth), max0(tileHeight)
}

func spacingFor(eventType tile.EventType) int {
	if eventType == tile.EventChat {
		return chatSpacing
	}

	return defaultSpacing
}

func max0(v int) int {
	if v < 0 {
		return 0
	}

	return v
}
