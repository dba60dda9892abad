package render

import (
	"context"

	"github.com/matrix-org/tessera/pkg/layout/activity"
	"github.com/matrix-org/tessera/pkg/layout/classifier"
	"github.com/matrix-org/tessera/pkg/layout/grid"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/transport"
	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Starts and stops the consumption of the media of a tile.
type MediaTransport interface {
	Resume(ctx context.Context, ref transport.TileRef) error
	Pause(ctx context.Context, ref transport.TileRef) error
}

// Produces whatever the UI needs to show a tile. `main` is set for the tiles of the primary grid.
type TileRenderer[U any] interface {
	RenderTile(participant roster.Participant, stream tile.Stream, main bool, size grid.Dimensions) U
}

// The single-occupant main screen.
type MainView interface {
	Repopulate(view activity.View)
}

// Options of the screen the page is rendered on.
type Options struct {
	EventType       tile.EventType
	DisplayMode     tile.DisplayMode
	FixedPageLimit  int
	ScreenPageLimit int
	ShareActive     bool
	WideScreen      bool
	Container       grid.Container
	// Resolution of the published videos, used to pick the simulcast layers.
	FullWidth  int
	FullHeight int
}

type Request struct {
	Options
	Batch []tile.Stream
	Page  int
	// Automatic refresh, not initiated by the user.
	Auto bool
	// Forces a layout broadcast.
	Restart bool
	// The pagination bar is shown.
	Paginate     bool
	Member       string
	Participants []roster.Participant
	// Participant the chat is focused on, if any.
	ChatTarget string
	MainScreen tile.Source
	MainFilled bool
	// The main screen must be rendered again, e.g. after a page change.
	RepopulateMain bool
	// Simulcast layers published for each video producer.
	Layers map[string][]webrtc_ext.SimulcastLayer
}

// A rendered page.
type Page[U any] struct {
	Index          int
	Primary        []U
	Alt            []U
	PrimaryStreams []tile.Stream
	AltStreams     []tile.Stream
	Grid           grid.Spec
	PrimarySize    grid.Dimensions
	AltSize        grid.Dimensions
	// Displayed participants that qualify for the layout broadcast.
	ActiveNames []string
	// Every participant displayed on the page.
	DispActiveNames []string
	// The page was not laid out again because the displayed participants did not change.
	Unchanged bool
}

// Lays pages out. Not safe for concurrent use, the engine serializes the calls.
type Renderer[U any] struct {
	transport  MediaTransport
	tiles      TileRenderer[U]
	main       MainView
	comparator *activity.Comparator
	logger     *logrus.Entry

	sizer           grid.Sizer
	dispActiveNames []string
	visible         map[string]transport.TileRef
	last            Page[U]
	rendered        bool
}

// Creates a renderer, `main` may be nil if there is no main screen.
func NewRenderer[U any](
	media MediaTransport,
	tiles TileRenderer[U],
	main MainView,
	comparator *activity.Comparator,
	logger *logrus.Entry,
) *Renderer[U] {
	return &Renderer[U]{
		transport:  media,
		tiles:      tiles,
		main:       main,
		comparator: comparator,
		logger:     logger,
		visible:    make(map[string]transport.TileRef),
	}
}

// Renders a batch of tiles. An automatic refresh of a page whose displayed participants
// did not change only refreshes the main screen (and the broadcast for the first page).
func (r *Renderer[U]) Display(ctx context.Context, request Request) (Page[U], error) {
	if err := ctx.Err(); err != nil {
		return Page[U]{}, err
	}

	logger := r.logger.WithFields(logrus.Fields{"page": request.Page, "auto": request.Auto})

	host, hasHost := roster.FindHost(request.Participants)
	view := activity.View{
		EventType:   request.EventType,
		ShareActive: request.ShareActive,
		Member:      request.Member,
		Host:        host.Name,
		MainScreen:  request.MainScreen,
		MainFilled:  request.MainFilled,
	}

	batch := slices.Clone(request.Batch)
	if request.EventType == tile.EventChat && request.ChatTarget == "" {
		batch = reorderChat(batch, request.Member, host, hasHost)
	}

	dispActiveNames := displayedNames(batch, request.Participants, request.DisplayMode)
	activeNames := qualifyingNames(dispActiveNames, batch, request.Participants)

	unchanged := !activity.Names{Current: dispActiveNames, Previous: r.dispActiveNames}.Changed()
	if request.Auto && r.rendered && unchanged {
		if request.MainFilled && r.main != nil {
			r.main.Repopulate(view)
		}

		if request.Page == 0 {
			r.comparator.Compare(ctx, activeNames, request.Restart, view)
		}

		logger.Debug("displayed participants did not change")

		page := r.last
		page.Unchanged = true
		return page, nil
	}

	page := Page[U]{
		Index:           request.Page,
		ActiveNames:     activeNames,
		DispActiveNames: dispActiveNames,
	}

	container := request.Container
	container.Paginate = request.Paginate

	totalRows := 0
	if request.EventType == tile.EventBroadcast {
		rows, cols := grid.CalculateRowsAndColumns(len(batch))
		page.Grid = grid.Spec{
			RemoveAltGrid: true,
			NumToAdd:      len(batch),
			NumRows:       rows,
			NumCols:       cols,
			ActualRows:    rows,
			LastRowCols:   len(batch) - (rows-1)*cols,
		}
		page.PrimaryStreams = batch
		totalRows = rows
	} else {
		_, rows, cols := grid.GetEstimate(len(batch), grid.EstimateOptions{
			FixedPageLimit:  request.FixedPageLimit,
			ScreenPageLimit: request.ScreenPageLimit,
			ShareActive:     request.ShareActive,
			WideScreen:      request.WideScreen,
			EventType:       request.EventType,
		})

		page.Grid = grid.CheckGrid(rows, cols, len(batch))
		if page.Grid.RemoveAltGrid {
			page.PrimaryStreams = batch
			totalRows = page.Grid.ActualRows
		} else {
			page.PrimaryStreams = batch[:page.Grid.NumToAdd]
			page.AltStreams = batch[page.Grid.NumToAdd:]
			totalRows = page.Grid.NumRows + 1
		}
	}

	page.PrimarySize = r.sizer.Update(page.Grid.NumRows, page.Grid.NumCols, totalRows, grid.SlotPrimary, container, request.EventType)
	if len(page.AltStreams) > 0 {
		page.AltSize = r.sizer.Update(1, len(page.AltStreams), totalRows, grid.SlotAlt, container, request.EventType)
	} else {
		r.sizer.ClearAlt()
	}

	wanted := make(map[string]transport.TileRef, len(batch))
	r.collectRefs(wanted, page.PrimaryStreams, page.PrimarySize, request, host.Name)
	r.collectRefs(wanted, page.AltStreams, page.AltSize, request, host.Name)
	r.visible = r.updateVisibility(ctx, wanted)

	page.Primary = r.renderTiles(page.PrimaryStreams, true, page.PrimarySize, request, host.Name)
	page.Alt = r.renderTiles(page.AltStreams, false, page.AltSize, request, host.Name)

	if request.RepopulateMain && request.MainFilled && r.main != nil {
		r.main.Repopulate(view)
	}

	r.comparator.Compare(ctx, activeNames, request.Restart, view)

	r.dispActiveNames = dispActiveNames
	r.last = page
	r.rendered = true

	logger.WithFields(logrus.Fields{
		"primary": len(page.Primary),
		"alt":     len(page.Alt),
		"rows":    page.Grid.NumRows,
		"cols":    page.Grid.NumCols,
	}).Debug("page rendered")

	return page, nil
}

// Current tile dimensions of both grids.
func (r *Renderer[U]) Sizes() grid.Sizer {
	return r.sizer
}

// Pauses every visible tile and forgets the rendered state.
func (r *Renderer[U]) Reset(ctx context.Context) {
	r.visible = r.updateVisibility(ctx, map[string]transport.TileRef{})
	r.dispActiveNames = nil
	r.last = Page[U]{}
	r.rendered = false
}

func (r *Renderer[U]) collectRefs(
	refs map[string]transport.TileRef,
	streams []tile.Stream,
	size grid.Dimensions,
	request Request,
	host string,
) {
	for _, stream := range streams {
		if stream.IsSelf() || !stream.HasMedia() {
			continue
		}

		ref := transport.TileRef{
			ProducerID: stream.ProducerID,
			AudioID:    stream.AudioID,
			Name:       classifier.Owner(stream, request.Member, host),
		}

		if stream.HasVideo() {
			ref.Layer = webrtc_ext.DesiredLayer(
				request.Layers[stream.ProducerID],
				request.FullWidth, request.FullHeight,
				size.Width, size.Height,
			)
		}

		refs[stream.Key()] = ref
	}
}

func (r *Renderer[U]) renderTiles(streams []tile.Stream, main bool, size grid.Dimensions, request Request, host string) []U {
	units := make([]U, 0, len(streams))
	for _, stream := range streams {
		name := classifier.Owner(stream, request.Member, host)
		participant, found := roster.FindByName(request.Participants, name)
		if !found {
			participant = roster.Participant{Name: name}
		}

		units = append(units, r.tiles.RenderTile(participant, stream, main, size))
	}

	return units
}

// Moves the host to the front of a chat (or adds them) and the local tiles to the end.
func reorderChat(batch []tile.Stream, member string, host roster.Participant, hasHost bool) []tile.Stream {
	if hasHost && host.Name != member {
		index := slices.IndexFunc(batch, func(stream tile.Stream) bool {
			return !stream.IsSelf() && stream.Name == host.Name
		})

		if index != -1 {
			hostTile := batch[index]
			batch = slices.Delete(batch, index, index+1)
			batch = slices.Insert(batch, 0, hostTile)
		} else {
			hostTile := tile.NewRemote(host.Name, host.VideoID, host.AudioID)
			hostTile.Muted = host.Muted
			batch = append(batch, hostTile)
		}
	}

	ordered := make([]tile.Stream, 0, len(batch))
	var local []tile.Stream
	for _, stream := range batch {
		if stream.IsSelf() {
			local = append(local, stream)
		} else {
			ordered = append(ordered, stream)
		}
	}

	return append(ordered, local...)
}
