package layout

import (
	"context"
	"errors"
	"fmt"

	"github.com/matrix-org/tessera/pkg/channel"
	"github.com/matrix-org/tessera/pkg/layout/activity"
	"github.com/matrix-org/tessera/pkg/layout/classifier"
	"github.com/matrix-org/tessera/pkg/layout/render"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/telemetry"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/matrix-org/tessera/pkg/worker"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNotClassified   = errors.New("no streams have been classified yet")
	ErrPageOutOfRange  = errors.New("page does not exist")
	ErrPassPanicked    = errors.New("layout pass panicked")
	ErrEngineSaturated = errors.New("layout engine is busy")
)

// Amount of streams kept in the last-known-good cache.
const lastKnownCapacity = 64

// What changed on the screen, passed with every stream change.
type Input struct {
	// The local camera tiles and the live video producers of the room.
	Streams     []tile.Stream
	ShareActive bool
	Breakout    classifier.Breakout
	MainScreen  tile.Source
	MainFilled  bool
	ChatTarget  string
	// Simulcast layers published for each video producer.
	Layers map[string][]webrtc_ext.SimulcastLayer
	// Overrides the configured display mode if set.
	DisplayMode tile.DisplayMode
}

// Outcome of an engine operation.
type Result[U any] struct {
	Classification classifier.Classification
	Page           render.Page[U]
	// Index of the batch that was rendered.
	BatchIndex int
}

// Owns the state of the layout. Every operation runs on a single worker, so passes never
// overlap. A failed pass is logged and leaves the previous state in place.
type Engine[U any] struct {
	config   Config
	member   string
	roster   roster.Provider
	renderer *render.Renderer[U]
	worker   *worker.Worker[operation[U]]
	logger   *logrus.Entry

	// Only accessed by the worker.
	state state
}

type state struct {
	classification classifier.Classification
	classified     bool
	input          Input
	lastKnown      []tile.Stream
	currentPage    int
	breakRoom      int
	inBreakRoom    bool
	// The main screen must be rendered again on the next pass.
	updateMainWindow bool
}

// Operations handled by the worker.
type (
	changeVids struct {
		input Input
	}
	generatePage struct {
		page        int
		breakRoom   int
		inBreakRoom bool
	}
	restart struct{}
	refresh struct{}
)

type operation[U any] struct {
	ctx     context.Context //nolint:containedctx
	content any
	reply   chan<- outcome[U]
}

type outcome[U any] struct {
	result Result[U]
	err    error
}

// Creates and starts the engine for the local participant `member`.
func NewEngine[U any](
	config Config,
	member string,
	provider roster.Provider,
	media render.MediaTransport,
	tiles render.TileRenderer[U],
	main render.MainView,
	emitter activity.Emitter,
	logger *logrus.Entry,
) (*Engine[U], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if member == "" {
		return nil, classifier.ErrNoMember
	}

	logger = logger.WithField("member", member)
	comparator := activity.NewComparator(activity.NewBroadcaster(emitter, logger.WithField("component", "broadcaster")))

	engine := &Engine[U]{
		config:   config,
		member:   member,
		roster:   provider,
		renderer: render.NewRenderer(media, tiles, main, comparator, logger.WithField("component", "renderer")),
		logger:   logger,
		state:    state{breakRoom: classifier.NoRoom},
	}

	workerConfig := worker.Config[operation[U]]{
		ChannelSize: config.QueueSize,
		Timeout:     config.refreshInterval(),
		OnTimeout:   engine.autoRefresh,
		OnTask:      engine.handle,
	}
	engine.worker = worker.StartWorker(workerConfig)

	return engine, nil
}

// Classifies the streams and renders the current page.
func (e *Engine[U]) ChangeVids(ctx context.Context, input Input) (Result[U], error) {
	return e.do(ctx, changeVids{input: input})
}

// Renders the given page. If `inBreakRoom` is set, the batch of the breakout room `breakRoom` is rendered instead.
func (e *Engine[U]) GeneratePageContent(ctx context.Context, page, breakRoom int, inBreakRoom bool) (render.Page[U], error) {
	result, err := e.do(ctx, generatePage{page: page, breakRoom: breakRoom, inBreakRoom: inBreakRoom})
	return result.Page, err
}

// Renders the current page again and forces a layout broadcast.
func (e *Engine[U]) Restart(ctx context.Context) (Result[U], error) {
	return e.do(ctx, restart{})
}

// Automatic refresh of the current page: nothing is laid out if the displayed participants are the same.
func (e *Engine[U]) Refresh(ctx context.Context) (Result[U], error) {
	return e.do(ctx, refresh{})
}

// Reclassifies the streams whenever the roster changes, until `ctx` is done or `changes` is closed.
// A burst of changes results in a single pass.
func (e *Engine[U]) Follow(ctx context.Context, changes <-chan channel.Message[string, roster.Change], input func() Input) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-changes:
			if !ok {
				return
			}

			drained := 1
		drain:
			for {
				select {
				case _, ok := <-changes:
					if !ok {
						break drain
					}
					drained++
				default:
					break drain
				}
			}

			logger := e.logger.WithFields(logrus.Fields{"sender": msg.Sender, "changes": drained})
			if _, err := e.ChangeVids(ctx, input()); err != nil {
				logger.WithError(err).Warn("failed to apply roster changes")
			} else {
				logger.Debug("roster changes applied")
			}
		}
	}
}

// Stops the engine and pauses every visible tile. Queued operations are still executed.
func (e *Engine[U]) Stop() {
	e.worker.Stop()
	<-e.worker.Done()
	e.renderer.Reset(context.Background())
}

func (e *Engine[U]) do(ctx context.Context, content any) (Result[U], error) {
	reply := make(chan outcome[U], 1)

	if err := e.worker.Send(operation[U]{ctx: ctx, content: content, reply: reply}); err != nil {
		if errors.Is(err, worker.ErrWorkerTooBusy) {
			return Result[U]{}, fmt.Errorf("%w: %v", ErrEngineSaturated, err)
		}

		return Result[U]{}, err
	}

	select {
	case out := <-reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result[U]{}, ctx.Err()
	}
}

func (e *Engine[U]) handle(op operation[U]) {
	result, err := e.run(op.ctx, op.content)
	op.reply <- outcome[U]{result: result, err: err}
}

func (e *Engine[U]) autoRefresh() {
	if !e.state.classified {
		return
	}

	if _, err := e.run(context.Background(), refresh{}); err != nil {
		e.logger.WithError(err).Warn("automatic refresh failed")
	}
}

// Runs a single pass inside of a span. Panics are turned into errors.
func (e *Engine[U]) run(ctx context.Context, content any) (result Result[U], err error) {
	name := operationName(content)
	span := telemetry.NewTelemetry(ctx, name, telemetry.MemberKey.String(e.member))
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("%w: %v", ErrPassPanicked, recovered)
		}

		if err != nil {
			e.logger.WithError(err).WithField("operation", name).Error("layout pass failed, keeping the previous layout")
		}

		span.End(err)
	}()

	ctx = span.Context()

	switch op := content.(type) {
	case changeVids:
		return e.changeVids(ctx, span, op.input)
	case generatePage:
		return e.generatePage(ctx, op)
	case restart:
		return e.redisplay(ctx, false, true)
	case refresh:
		return e.redisplay(ctx, true, false)
	default:
		return Result[U]{}, fmt.Errorf("unknown operation %T", content)
	}
}

func operationName(content any) string {
	switch content.(type) {
	case changeVids:
		return "changeVids"
	case generatePage:
		return "generatePageContent"
	case restart:
		return "restart"
	case refresh:
		return "refresh"
	default:
		return "unknown"
	}
}

func (e *Engine[U]) changeVids(ctx context.Context, span *telemetry.Telemetry, input Input) (Result[U], error) {
	options := classifier.Options{
		EventType:         e.config.EventType,
		DisplayMode:       e.config.DisplayMode,
		VideoOptimized:    e.config.VideoOptimized,
		SortAudioLoudness: e.config.SortAudioLoudness,
		ItemPageLimit:     e.config.ItemPageLimit,
		ScreenPageLimit:   e.config.ScreenPageLimit,
	}
	if input.DisplayMode != "" {
		options.DisplayMode = input.DisplayMode
	}

	// Classification and rendering see the same participants.
	participants := e.roster.Participants()

	snapshot := classifier.Snapshot{
		Options:      options,
		Member:       e.member,
		Streams:      input.Streams,
		Participants: participants,
		AudioLevels:  e.roster.AudioLevels(),
		Breakout:     input.Breakout,
		ShareActive:  input.ShareActive,
		LastKnown:    e.state.lastKnown,
	}

	classify := span.CreateChild("classify", telemetry.StreamsKey.Int(len(input.Streams)))
	classification, err := classifier.Classify(snapshot)
	classify.End(err)
	if err != nil {
		return Result[U]{}, fmt.Errorf("failed to classify streams: %w", err)
	}

	span.SetAttributes(
		telemetry.BatchesKey.Int(len(classification.Batches)),
		telemetry.RoomKey.Int(classification.MemberRoom),
	)
	span.AddEvent("classified", attribute.Int("live", len(classification.Streams)), attribute.Bool("share", classification.ShareOverride))

	page := e.state.currentPage
	if e.state.inBreakRoom {
		if index := batchOfRoom(classification, e.state.breakRoom); index != -1 {
			page = index
		}
	}

	if page >= len(classification.Batches) {
		page = len(classification.Batches) - 1
	}

	result, err := e.display(ctx, classification, input, participants, page, false, false)
	if err != nil {
		return Result[U]{}, err
	}

	e.state.classification = classification
	e.state.classified = true
	e.state.input = input
	e.state.currentPage = page
	e.state.lastKnown = remember(e.state.lastKnown, classification.Streams)

	return result, nil
}

func (e *Engine[U]) generatePage(ctx context.Context, op generatePage) (Result[U], error) {
	if !e.state.classified {
		return Result[U]{}, ErrNotClassified
	}

	index := op.page
	if op.inBreakRoom && op.breakRoom != classifier.NoRoom {
		index = batchOfRoom(e.state.classification, op.breakRoom)
	}

	if index < 0 || index >= len(e.state.classification.Batches) {
		return Result[U]{}, fmt.Errorf("%w: page %d, break room %d", ErrPageOutOfRange, op.page, op.breakRoom)
	}

	e.state.updateMainWindow = true

	result, err := e.display(ctx, e.state.classification, e.state.input, e.roster.Participants(), index, false, false)
	if err != nil {
		return Result[U]{}, err
	}

	e.state.currentPage = index
	e.state.breakRoom = op.breakRoom
	e.state.inBreakRoom = op.inBreakRoom

	return result, nil
}

func (e *Engine[U]) redisplay(ctx context.Context, auto, restart bool) (Result[U], error) {
	if !e.state.classified {
		return Result[U]{}, ErrNotClassified
	}

	return e.display(ctx, e.state.classification, e.state.input, e.roster.Participants(), e.state.currentPage, auto, restart)
}

func (e *Engine[U]) display(
	ctx context.Context,
	classification classifier.Classification,
	input Input,
	participants []roster.Participant,
	index int,
	auto, restart bool,
) (Result[U], error) {
	request := render.Request{
		Options: render.Options{
			EventType:       e.config.EventType,
			DisplayMode:     e.config.DisplayMode,
			FixedPageLimit:  e.config.FixedPageLimit,
			ScreenPageLimit: e.config.ScreenPageLimit,
			ShareActive:     input.ShareActive,
			WideScreen:      e.config.WideScreen,
			Container:       e.config.Container,
			FullWidth:       e.config.FullWidth,
			FullHeight:      e.config.FullHeight,
		},
		Batch:          classification.Batches[index],
		Page:           index,
		Auto:           auto,
		Restart:        restart,
		Paginate:       classification.DoPaginate,
		Member:         e.member,
		Participants:   participants,
		ChatTarget:     input.ChatTarget,
		MainScreen:     input.MainScreen,
		MainFilled:     input.MainFilled,
		RepopulateMain: e.state.updateMainWindow,
		Layers:         input.Layers,
	}
	if input.DisplayMode != "" {
		request.DisplayMode = input.DisplayMode
	}

	span := telemetry.NewTelemetry(ctx, "render", telemetry.PageKey.Int(index), telemetry.AutoKey.Bool(auto))
	page, err := e.renderer.Display(span.Context(), request)
	span.End(err)
	if err != nil {
		return Result[U]{}, fmt.Errorf("failed to render page %d: %w", index, err)
	}

	e.state.updateMainWindow = false

	return Result[U]{Classification: classification, Page: page, BatchIndex: index}, nil
}

// Index of the batch of a breakout room, -1 if the room has none.
func batchOfRoom(classification classifier.Classification, room int) int {
	for i, batchRoom := range classification.BatchRooms {
		if batchRoom == room {
			return i
		}
	}

	return -1
}

// Adds the live remote streams to the cache, newest last.
func remember(cache, streams []tile.Stream) []tile.Stream {
	for _, stream := range streams {
		if stream.IsSelf() || !stream.HasVideo() {
			continue
		}

		for i, known := range cache {
			if known.ProducerID == stream.ProducerID {
				cache = append(cache[:i], cache[i+1:]...)
				break
			}
		}

		cache = append(cache, stream)
	}

	if len(cache) > lastKnownCapacity {
		cache = cache[len(cache)-lastKnownCapacity:]
	}

	return cache
}
