package main

import (
	"fmt"
	"os"

	"github.com/matrix-org/tessera/pkg/layout"
	"github.com/matrix-org/tessera/pkg/layout/classifier"
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
	"github.com/matrix-org/tessera/pkg/webrtc_ext"
	"github.com/pion/webrtc/v3"
	"gopkg.in/yaml.v3"
)

// A room to lay out, read from a YAML file.
type Scenario struct {
	// Name of the local participant.
	Member       string               `yaml:"member"`
	Participants []roster.Participant `yaml:"participants"`
	Streams      []ScenarioStream     `yaml:"streams"`
	// Loudness samples (dBov) per participant.
	Loudness map[string][]float64 `yaml:"loudness"`
	Breakout ScenarioBreakout     `yaml:"breakout"`
	Share    bool                 `yaml:"share"`
	// "self", "screen", "whiteboard" or the name of a participant. Empty if nobody is on the main screen.
	MainScreen string `yaml:"mainScreen"`
	ChatTarget string `yaml:"chatTarget"`
	// Display mode override.
	DisplayMode tile.DisplayMode `yaml:"displayMode"`
}

type ScenarioStream struct {
	tile.Stream `yaml:",inline"`
	Self        bool `yaml:"self"`
	// The local screen share, only for local streams.
	Sharing    bool `yaml:"sharing"`
	Whiteboard bool `yaml:"whiteboard"`
	// RIDs of the simulcast layers that the producer publishes.
	Layers []string `yaml:"layers"`
	// SSRC of the consumed video, used for keyframe requests.
	SSRC uint32 `yaml:"ssrc"`
}

type ScenarioBreakout struct {
	Active      bool                           `yaml:"active"`
	Rooms       [][]roster.BreakoutParticipant `yaml:"rooms"`
	HostNewRoom *int                           `yaml:"hostNewRoom"`
}

func LoadScenario(path string) (*Scenario, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(file, &scenario); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenario: %w", err)
	}

	if scenario.Member == "" {
		return nil, fmt.Errorf("scenario has no member")
	}

	return &scenario, nil
}

// Fills the tracker with the participants, breakout rooms and loudness of the scenario.
func (s *Scenario) Populate(tracker *roster.Tracker) error {
	for _, participant := range s.Participants {
		if err := tracker.AddParticipant(participant); err != nil {
			return err
		}
	}

	if s.Breakout.Active {
		tracker.SetBreakoutRooms(s.Breakout.Rooms)
	}

	for name, samples := range s.Loudness {
		for _, sample := range samples {
			tracker.ObserveVolume(name, sample)
		}
	}

	return nil
}

// SSRCs of the consumed videos by producer.
func (s *Scenario) SSRCs() map[string]webrtc.SSRC {
	ssrcs := make(map[string]webrtc.SSRC)
	for _, stream := range s.Streams {
		if stream.SSRC != 0 && stream.ProducerID != "" {
			ssrcs[stream.ProducerID] = webrtc.SSRC(stream.SSRC)
		}
	}

	return ssrcs
}

func (s *Scenario) Input(provider roster.Provider) layout.Input {
	input := layout.Input{
		ShareActive: s.Share,
		MainScreen:  s.mainScreen(),
		MainFilled:  s.MainScreen != "",
		ChatTarget:  s.ChatTarget,
		DisplayMode: s.DisplayMode,
		Layers:      make(map[string][]webrtc_ext.SimulcastLayer),
	}

	for _, stream := range s.Streams {
		tileStream := stream.Stream
		switch {
		case stream.Self:
			tileStream.Source = tile.Self{Sharing: stream.Sharing}
		case stream.Whiteboard:
			tileStream.Source = tile.Whiteboard{}
		default:
			tileStream.Source = tile.Remote{Name: stream.Name}
		}
		input.Streams = append(input.Streams, tileStream)

		for _, rid := range stream.Layers {
			input.Layers[stream.ProducerID] = append(input.Layers[stream.ProducerID], webrtc_ext.RIDToSimulcastLayer(rid))
		}
	}

	if s.Breakout.Active {
		input.Breakout = classifier.Breakout{
			Active:      true,
			Rooms:       provider.BreakoutRooms(),
			HostNewRoom: s.Breakout.HostNewRoom,
		}
	}

	return input
}

func (s *Scenario) mainScreen() tile.Source {
	switch s.MainScreen {
	case "":
		return nil
	case "self":
		return tile.Self{}
	case "screen":
		return tile.Self{Sharing: true}
	case "whiteboard":
		return tile.Whiteboard{}
	default:
		return tile.Remote{Name: s.MainScreen}
	}
}
