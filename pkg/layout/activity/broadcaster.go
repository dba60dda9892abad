package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matrix-org/tessera/pkg/layout/capacity"
	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Channel that carries layout updates to the server.
type Emitter interface {
	EmitLayout(ctx context.Context, update signaling.LayoutUpdate) error
}

// State of the screen that the broadcast describes.
type View struct {
	EventType   tile.EventType
	ShareActive bool
	Member      string
	Host        string
	// Occupant of the main screen, nil if nobody occupies it.
	MainScreen tile.Source
	// Whether the main screen is actually rendered.
	MainFilled bool
}

// Whether the host is shown on the main screen regardless of what is rendered there.
func (v View) hostForced() bool {
	return v.EventType == tile.EventConference && !v.ShareActive
}

// Announces the layout to the server, at most once per wall-clock second.
type Broadcaster struct {
	mutex   sync.Mutex
	emitter Emitter
	logger  *logrus.Entry
	now     func() time.Time
	// Wall-clock second of the last emit.
	lastSecond int64
	emitted    bool
}

func NewBroadcaster(emitter Emitter, logger *logrus.Entry) *Broadcaster {
	return &Broadcaster{
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// Replaces the clock, used by tests.
func (b *Broadcaster) WithClock(now func() time.Time) *Broadcaster {
	b.now = now
	return b
}

// Emits the layout unless nothing occupies the main screen or a layout was already
// emitted within the current second. Returns true if the layout has been emitted.
// A failed or rejected emit is only logged.
func (b *Broadcaster) Trigger(ctx context.Context, names []string, view View) bool {
	occupant := ""
	if view.MainScreen != nil {
		occupant = tile.SourceName(view.MainScreen, view.Member, view.Host)
	}

	names = slices.Clone(names)
	if view.hostForced() && view.Host != "" {
		occupant = view.Host
		if !slices.Contains(names, view.Host) {
			names = slices.Insert(names, 0, view.Host)
		}
	}

	if occupant == "" || !(view.MainFilled || view.hostForced()) {
		return false
	}

	split := capacity.Split{Main: 0, Secondary: capacity.Units}
	if !view.hostForced() {
		split = capacity.AutoAdjust(len(names), view.EventType, view.ShareActive)
	}

	if !b.reserve() {
		b.logger.Debug("layout update throttled")
		return false
	}

	update := signaling.LayoutUpdate{
		Names:            names,
		MainPercent:      split.MainPercent(),
		MainScreenPerson: occupant,
		ViewType:         view.EventType,
	}

	if err := b.emitter.EmitLayout(ctx, update); err != nil {
		var rejected *signaling.RejectedError
		if errors.As(err, &rejected) {
			b.logger.WithField("reason", rejected.Reason).Warn("layout update rejected")
		} else {
			b.logger.WithError(err).Error("failed to emit layout update")
		}
	}

	return true
}

// Takes the slot of the current second. The slot is taken before the emit
// so that triggers racing with a slow emit are throttled as well.
func (b *Broadcaster) reserve() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	second := b.now().Unix()
	if b.emitted && second == b.lastSecond {
		return false
	}

	b.lastSecond = second
	b.emitted = true
	return true
}
