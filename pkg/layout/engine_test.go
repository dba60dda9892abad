package layout_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matrix-org/tessera/pkg/channel"
	"github.com/matrix-org/tessera/pkg/layout"
	"github.com/matrix-org/tessera/pkg/layout/activity"
	"github.com/matrix-org/tessera/pkg/layout/classifier"
	"github.com/matrix-org/tessera/pkg/layout/grid"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/transport"
	"github.com/matrix-org/tessera/pkg/worker"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type staticRoster struct {
	mutex        sync.Mutex
	participants []roster.Participant
	reads        atomic.Int32
}

func (s *staticRoster) set(participants ...roster.Participant) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.participants = participants
}

func (s *staticRoster) Participants() []roster.Participant {
	s.reads.Add(1)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]roster.Participant(nil), s.participants...)
}

func (s *staticRoster) BreakoutRooms() [][]roster.BreakoutParticipant { return nil }
func (s *staticRoster) AudioLevels() []roster.AudioLevel               { return nil }

type media struct {
	mutex   sync.Mutex
	visible map[string]bool
}

func (m *media) Resume(_ context.Context, ref transport.TileRef) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.visible[ref.Name] = true
	return nil
}

func (m *media) Pause(_ context.Context, ref transport.TileRef) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.visible, ref.Name)
	return nil
}

func (m *media) names() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	names := make([]string, 0, len(m.visible))
	for name := range m.visible {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

type tiles struct {
	panicking atomic.Bool
}

func (t *tiles) RenderTile(participant roster.Participant, _ tile.Stream, _ bool, _ grid.Dimensions) string {
	if t.panicking.Load() {
		panic("broken tile")
	}

	return participant.Name
}

type mainView struct {
	repopulated atomic.Int32
}

func (m *mainView) Repopulate(activity.View) {
	m.repopulated.Add(1)
}

type emitter struct {
	mutex   sync.Mutex
	updates []signaling.LayoutUpdate
}

func (e *emitter) EmitLayout(_ context.Context, update signaling.LayoutUpdate) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.updates = append(e.updates, update)
	return nil
}

func (e *emitter) emitted() []signaling.LayoutUpdate {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return append([]signaling.LayoutUpdate(nil), e.updates...)
}

type fixture struct {
	engine  *layout.Engine[string]
	roster  *staticRoster
	media   *media
	tiles   *tiles
	main    *mainView
	emitter *emitter
}

func participant(name string, level roster.Level) roster.Participant {
	return roster.Participant{
		Name:    name,
		Level:   level,
		VideoOn: true,
		VideoID: "v-" + name,
		AudioID: "a-" + name,
	}
}

func streams(names ...string) []tile.Stream {
	result := []tile.Stream{{Source: tile.Self{}}}
	for _, name := range names {
		result = append(result, tile.NewRemote(name, "v-"+name, "a-"+name))
	}

	return result
}

func newFixture(t *testing.T, configure func(*layout.Config)) *fixture {
	t.Helper()

	config := layout.DefaultConfig()
	config.DisplayMode = tile.DisplayVideo
	config.VideoOptimized = true
	config.ItemPageLimit = 2
	config.RefreshInterval = 0
	if configure != nil {
		configure(&config)
	}

	f := &fixture{
		roster: &staticRoster{},
		media:  &media{visible: make(map[string]bool)},
		tiles:   &tiles{},
		main:    &mainView{},
		emitter: &emitter{},
	}
	f.roster.set(
		participant("me", roster.LevelHost),
		participant("alice", roster.LevelParticipant),
		participant("bob", roster.LevelParticipant),
		participant("carol", roster.LevelParticipant),
	)

	engine, err := layout.NewEngine[string](config, "me", f.roster, f.media, f.tiles, f.main, f.emitter, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	t.Cleanup(engine.Stop)

	f.engine = engine
	return f
}

func allTiles(page []string, alt []string) []string {
	return append(append([]string(nil), page...), alt...)
}

func TestChangeVidsRendersFirstPage(t *testing.T) {
	f := newFixture(t, nil)

	result, err := f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice", "bob", "carol")})
	require.NoError(t, err)

	assert.Len(t, result.Classification.Batches, 2)
	assert.True(t, result.Classification.DoPaginate)
	assert.Equal(t, 0, result.BatchIndex)
	assert.Equal(t, []string{"me", "alice"}, allTiles(result.Page.Primary, result.Page.Alt))
	assert.Equal(t, []string{"alice"}, f.media.names())
}

func TestGeneratePageContent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.GeneratePageContent(ctx, 0, classifier.NoRoom, false)
	assert.ErrorIs(t, err, layout.ErrNotClassified)

	_, err = f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice", "bob", "carol"), MainFilled: true})
	require.NoError(t, err)

	page, err := f.engine.GeneratePageContent(ctx, 1, classifier.NoRoom, false)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Index)
	assert.Equal(t, []string{"bob", "carol"}, allTiles(page.Primary, page.Alt))
	assert.Equal(t, []string{"bob", "carol"}, f.media.names())
	assert.Equal(t, int32(1), f.main.repopulated.Load())

	_, err = f.engine.GeneratePageContent(ctx, 2, classifier.NoRoom, false)
	assert.ErrorIs(t, err, layout.ErrPageOutOfRange)
}

func TestCurrentPageIsClamped(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice", "bob", "carol")})
	require.NoError(t, err)
	_, err = f.engine.GeneratePageContent(ctx, 1, classifier.NoRoom, false)
	require.NoError(t, err)

	// Bob and carol leave, so the second page disappears.
	f.roster.set(participant("me", roster.LevelHost), participant("alice", roster.LevelParticipant))
	result, err := f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice", "bob", "carol")})
	require.NoError(t, err)

	assert.Len(t, result.Classification.Batches, 1)
	assert.Equal(t, 0, result.BatchIndex)
	assert.Equal(t, []string{"alice"}, f.media.names())
}

func TestBreakoutRoomPage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	breakout := classifier.Breakout{
		Active: true,
		Rooms: [][]roster.BreakoutParticipant{
			{{Name: "alice", BreakRoom: 0}},
			{{Name: "bob", BreakRoom: 1}},
		},
	}

	result, err := f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice", "bob", "carol"), Breakout: breakout})
	require.NoError(t, err)
	assert.Equal(t, []int{classifier.NoRoom, 0, 1}, result.Classification.BatchRooms)

	page, err := f.engine.GeneratePageContent(ctx, 0, 1, true)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Index)
	assert.Equal(t, []string{"bob"}, allTiles(page.Primary, page.Alt))

	_, err = f.engine.GeneratePageContent(ctx, 0, 7, true)
	assert.ErrorIs(t, err, layout.ErrPageOutOfRange)
}

func TestIdenticalPassesBroadcastOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	input := layout.Input{Streams: streams("alice", "bob", "carol"), MainFilled: true}

	_, err := f.engine.ChangeVids(ctx, input)
	require.NoError(t, err)

	// Past the one second throttle window.
	time.Sleep(1100 * time.Millisecond)

	_, err = f.engine.ChangeVids(ctx, input)
	require.NoError(t, err)

	updates := f.emitter.emitted()
	require.Len(t, updates, 1)
	assert.Equal(t, "me", updates[0].MainScreenPerson)
}

func TestChangeVidsReadsParticipantsOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.roster.reads.Store(0)

	_, err := f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice", "bob")})
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.roster.reads.Load())
}

func TestPanicKeepsPreviousState(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice", "bob", "carol")})
	require.NoError(t, err)

	f.tiles.panicking.Store(true)
	_, err = f.engine.GeneratePageContent(ctx, 1, classifier.NoRoom, false)
	assert.ErrorIs(t, err, layout.ErrPassPanicked)

	f.tiles.panicking.Store(false)
	result, err := f.engine.Restart(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.BatchIndex)
}

func TestRefreshWithoutChanges(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.Refresh(ctx)
	assert.ErrorIs(t, err, layout.ErrNotClassified)

	_, err = f.engine.ChangeVids(ctx, layout.Input{Streams: streams("alice"), MainFilled: true})
	require.NoError(t, err)

	result, err := f.engine.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, result.Page.Unchanged)
	assert.Equal(t, int32(1), f.main.repopulated.Load())
}

func TestAutomaticRefresh(t *testing.T) {
	f := newFixture(t, func(config *layout.Config) {
		config.RefreshInterval = 10
	})

	_, err := f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice"), MainFilled: true})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return f.main.repopulated.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}

func TestStopPausesEverything(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice")})
	require.NoError(t, err)
	require.NotEmpty(t, f.media.names())

	f.engine.Stop()
	assert.Empty(t, f.media.names())

	_, err = f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice")})
	assert.ErrorIs(t, err, worker.ErrWorkerClosed)
}

func TestInvalidEngine(t *testing.T) {
	logger := logrus.NewEntry(logrus.New())

	config := layout.DefaultConfig()
	config.ItemPageLimit = 0
	_, err := layout.NewEngine[string](config, "me", &staticRoster{}, nil, &tiles{}, nil, &emitter{}, logger)
	assert.ErrorIs(t, err, layout.ErrInvalidConfig)

	_, err = layout.NewEngine[string](layout.DefaultConfig(), "", &staticRoster{}, nil, &tiles{}, nil, &emitter{}, logger)
	assert.ErrorIs(t, err, classifier.ErrNoMember)
}

func TestFollowRosterChanges(t *testing.T) {
	changes := make(chan channel.Message[string, roster.Change], 16)
	logger := logrus.NewEntry(logrus.New())
	tracker := roster.NewTracker(3, channel.NewSink("room", changes), logger)

	config := layout.DefaultConfig()
	config.DisplayMode = tile.DisplayVideo
	config.VideoOptimized = true
	config.RefreshInterval = 0

	visible := &media{visible: make(map[string]bool)}
	engine, err := layout.NewEngine[string](config, "me", tracker, visible, &tiles{}, nil, &emitter{}, logger)
	require.NoError(t, err)
	t.Cleanup(engine.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Follow(ctx, changes, func() layout.Input {
		return layout.Input{Streams: streams("alice", "bob")}
	})

	require.NoError(t, tracker.AddParticipant(participant("me", roster.LevelHost)))
	require.NoError(t, tracker.AddParticipant(participant("alice", roster.LevelParticipant)))

	assert.Eventually(t, func() bool {
		names := visible.names()
		return len(names) == 1 && names[0] == "alice"
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, tracker.AddParticipant(participant("bob", roster.LevelParticipant)))

	assert.Eventually(t, func() bool {
		return len(visible.names()) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestPassesAreTraced(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	f := newFixture(t, nil)
	_, err := f.engine.ChangeVids(context.Background(), layout.Input{Streams: streams("alice")})
	require.NoError(t, err)

	_, err = f.engine.GeneratePageContent(context.Background(), 3, classifier.NoRoom, false)
	require.Error(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"classify", "render", "changeVids", "generatePageContent"}, names)

	failed := recorder.Ended()[3]
	assert.Equal(t, codes.Error, failed.Status().Code)
}
