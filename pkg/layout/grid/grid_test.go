package grid_test

import (
	"testing"

	"github.com/matrix-org/tessera/pkg/layout/grid"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/stretchr/testify/assert"
)

func TestCalculateRowsAndColumns(t *testing.T) {
	cases := []struct {
		n, rows, cols int
	}{
		{0, 1, 1},
		{1, 1, 1},
		{2, 2, 1},
		{3, 3, 1},
		{4, 2, 2},
		{5, 3, 2},
		{6, 3, 2},
		{7, 4, 2},
		{9, 3, 3},
		{10, 4, 3},
		{12, 4, 3},
		{13, 5, 3},
		{50, 8, 7},
	}

	for _, c := range cases {
		rows, cols := grid.CalculateRowsAndColumns(c.n)
		assert.Equal(t, c.rows, rows, "rows for %d", c.n)
		assert.Equal(t, c.cols, cols, "cols for %d", c.n)
	}
}

func TestCalculateRowsAndColumnsCoversAndIsMinimal(t *testing.T) {
	abs := func(v int) int {
		if v < 0 {
			return -v
		}
		return v
	}

	for n := 1; n <= 200; n++ {
		rows, cols := grid.CalculateRowsAndColumns(n)
		assert.GreaterOrEqual(t, rows*cols, n)

		// No smaller grid of comparable aspect covers `n`.
		for r := 1; r <= n; r++ {
			for c := 1; c <= n; c++ {
				if r*c >= n && r*c < rows*cols {
					assert.Greater(t, abs(r-c), abs(rows-cols)+1, "n=%d: %dx%d beats %dx%d", n, r, c, rows, cols)
				}
			}
		}
	}
}

func TestCheckGridPerfectFit(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {2, 2}, {3, 2}, {4, 3}, {1, 5}} {
		spec := grid.CheckGrid(dims[0], dims[1], dims[0]*dims[1])
		assert.True(t, spec.RemoveAltGrid)
		assert.Equal(t, dims[0]*dims[1], spec.NumToAdd)
		assert.Equal(t, 0, spec.RemainingVideos)
	}
}

func TestCheckGridOverflow(t *testing.T) {
	cases := []struct {
		rows, cols, actives int
		expected            grid.Spec
	}{
		// Last row exactly half full stays a row of its own.
		{3, 2, 5, grid.Spec{NumToAdd: 4, NumRows: 2, NumCols: 2, RemainingVideos: 1, ActualRows: 2, LastRowCols: 1}},
		// Last row with 1 of 3 tiles is merged with the row above.
		{4, 3, 10, grid.Spec{NumToAdd: 6, NumRows: 2, NumCols: 3, RemainingVideos: 4, ActualRows: 2, LastRowCols: 4}},
		// Last row with 2 of 3 tiles is kept.
		{3, 3, 8, grid.Spec{NumToAdd: 6, NumRows: 2, NumCols: 3, RemainingVideos: 2, ActualRows: 2, LastRowCols: 2}},
		// A single row can't be merged with anything.
		{1, 4, 1, grid.Spec{NumToAdd: 0, NumRows: 0, NumCols: 4, RemainingVideos: 1, ActualRows: 0, LastRowCols: 1}},
	}

	for _, c := range cases {
		spec := grid.CheckGrid(c.rows, c.cols, c.actives)
		assert.Equal(t, c.expected, spec, "%dx%d with %d", c.rows, c.cols, c.actives)
		assert.Equal(t, c.actives, spec.NumToAdd+spec.RemainingVideos)
	}
}

func TestCheckGridConservesTiles(t *testing.T) {
	for n := 1; n <= 100; n++ {
		rows, cols := grid.CalculateRowsAndColumns(n)
		spec := grid.CheckGrid(rows, cols, n)
		assert.Equal(t, n, spec.NumToAdd+spec.RemainingVideos, "n=%d", n)
		assert.Equal(t, spec.NumRows*spec.NumCols, spec.NumToAdd, "n=%d", n)
	}
}

func TestGetEstimate(t *testing.T) {
	opts := grid.EstimateOptions{FixedPageLimit: 4, ScreenPageLimit: 2, WideScreen: true, EventType: tile.EventWebinar}

	estimate, rows, cols := grid.GetEstimate(3, opts)
	assert.Equal(t, []int{3, 3, 1}, []int{estimate, rows, cols})

	opts.EventType = tile.EventConference
	estimate, rows, cols = grid.GetEstimate(3, opts)
	assert.Equal(t, []int{3, 1, 3}, []int{estimate, rows, cols})

	opts.WideScreen = false
	estimate, rows, cols = grid.GetEstimate(3, opts)
	assert.Equal(t, []int{3, 3, 1}, []int{estimate, rows, cols})

	estimate, rows, cols = grid.GetEstimate(5, opts)
	assert.Equal(t, []int{6, 3, 2}, []int{estimate, rows, cols})

	// While sharing the strip extends up to the screen page limit.
	opts.ShareActive = true
	opts.FixedPageLimit = 0
	estimate, rows, cols = grid.GetEstimate(2, opts)
	assert.Equal(t, []int{2, 1, 2}, []int{estimate, rows, cols})

	estimate, rows, cols = grid.GetEstimate(3, opts)
	assert.Equal(t, []int{3, 3, 1}, []int{estimate, rows, cols})
}

func TestSizer(t *testing.T) {
	container := grid.Container{Width: 1000, Height: 600, PaginationDirection: grid.PaginationHorizontal, PaginationThickness: 40}

	var sizer grid.Sizer
	primary := sizer.Update(2, 3, 2, grid.SlotPrimary, container, tile.EventConference)
	assert.Equal(t, grid.Dimensions{Rows: 2, Cols: 3, Width: 331, Height: 298}, primary)

	container.Paginate = true
	alt := sizer.Update(1, 2, 3, grid.SlotAlt, container, tile.EventChat)
	assert.Equal(t, grid.Dimensions{Rows: 1, Cols: 2, Width: 500, Height: 186}, alt)

	// Slots are independent.
	assert.Equal(t, primary, sizer.Primary)
	assert.Equal(t, alt, sizer.Alt)

	sizer.ClearAlt()
	assert.Equal(t, grid.Dimensions{}, sizer.Alt)
}

func TestSizerDegenerate(t *testing.T) {
	var sizer grid.Sizer
	container := grid.Container{Width: 800, Height: 600}

	dims := sizer.Update(0, 0, 3, grid.SlotPrimary, container, tile.EventWebinar)
	assert.Equal(t, 0, dims.Width)
	assert.Equal(t, 0, dims.Height)

	dims = sizer.Update(3, 3, 0, grid.SlotPrimary, container, tile.EventWebinar)
	assert.Equal(t, 0, dims.Width)
	assert.Equal(t, 0, dims.Height)
}

func TestContainerVerticalPagination(t *testing.T) {
	container := grid.Container{Width: 500, Height: 400, PaginationDirection: grid.PaginationVertical, PaginationThickness: 50, Paginate: true}
	width, height := container.Available()
	assert.Equal(t, 450, width)
	assert.Equal(t, 400, height)
}
