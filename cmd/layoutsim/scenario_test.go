package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/pion/webrtc/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleScenario(t *testing.T) {
	scenario, err := LoadScenario("scenario.yaml.sample")
	require.NoError(t, err)

	tracker := roster.NewTracker(3, nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, scenario.Populate(tracker))
	assert.Len(t, tracker.Participants(), 6)
	assert.Equal(t, -27.5, roster.LoudnessOf(tracker.AudioLevels(), "alice"))

	input := scenario.Input(tracker)
	require.Len(t, input.Streams, 4)
	assert.True(t, input.Streams[0].IsSelf())
	assert.Equal(t, tile.Remote{Name: "alice"}, input.Streams[2].Source)
	assert.Equal(t, tile.Remote{Name: "host"}, input.MainScreen)
	assert.True(t, input.MainFilled)
	assert.Equal(t, []webrtc_ext.SimulcastLayer{
		webrtc_ext.SimulcastLayerLow, webrtc_ext.SimulcastLayerMedium, webrtc_ext.SimulcastLayerHigh,
	}, input.Layers["v-alice"])
	assert.False(t, input.Breakout.Active)

	assert.Equal(t, webrtc.SSRC(1003), scenario.SSRCs()["v-bob"])
}

func TestScenarioBreakout(t *testing.T) {
	raw := `
member: me
participants:
  - {name: me}
  - {name: alice}
breakout:
  active: true
  rooms: [[{name: alice, breakRoom: 0}]]
`
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	tracker := roster.NewTracker(3, nil, logrus.NewEntry(logrus.New()))
	require.NoError(t, scenario.Populate(tracker))

	input := scenario.Input(tracker)
	assert.True(t, input.Breakout.Active)
	assert.Nil(t, input.Breakout.HostNewRoom)
	assert.Equal(t, 0, roster.RoomOf(input.Breakout.Rooms, "alice"))
	assert.Nil(t, input.MainScreen)
}

func TestScenarioWithoutMember(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("participants: []"), 0o600))

	_, err := LoadScenario(path)
	assert.Error(t, err)
}
