package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/matrix-org/tessera/pkg/layout/activity"
	"github.com/matrix-org/tessera/pkg/layout/grid"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/signaling"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/transport"
	"github.com/sirupsen/logrus"
)

// Renders tiles as a line of text.
type textTiles struct{}

func (textTiles) RenderTile(participant roster.Participant, stream tile.Stream, main bool, size grid.Dimensions) string {
	var flags []string
	if stream.IsSelf() {
		flags = append(flags, "self")
	}
	if !stream.HasVideo() {
		flags = append(flags, "no video")
	}
	if participant.Muted {
		flags = append(flags, "muted")
	}
	if !main {
		flags = append(flags, "alt")
	}

	text := fmt.Sprintf("%s %dx%d", participant.Name, size.Width, size.Height)
	if len(flags) > 0 {
		text += " (" + strings.Join(flags, ", ") + ")"
	}

	return text
}

// Logs what would be shown on the main screen.
type logMainView struct {
	logger *logrus.Entry
}

func (l logMainView) Repopulate(view activity.View) {
	l.logger.WithField("occupant", tile.SourceName(view.MainScreen, view.Member, view.Host)).Info("main screen")
}

// Logs the layout updates instead of sending them.
type logEmitter struct {
	logger *logrus.Entry
}

func (l logEmitter) EmitLayout(_ context.Context, update signaling.LayoutUpdate) error {
	l.logger.WithFields(logrus.Fields{
		"names":        update.Names,
		"main_percent": update.MainPercent,
		"main_person":  update.MainScreenPerson,
		"view_type":    update.ViewType,
	}).Info("layout update")

	return nil
}

// Logs the consumers that would be resumed and paused.
type logTransport struct {
	logger *logrus.Entry
}

func (l logTransport) Resume(_ context.Context, ref transport.TileRef) error {
	l.logger.WithFields(logrus.Fields{"name": ref.Name, "layer": ref.Layer.String()}).Debug("resume")
	return nil
}

func (l logTransport) Pause(_ context.Context, ref transport.TileRef) error {
	l.logger.WithField("name", ref.Name).Debug("pause")
	return nil
}
