package render

import (
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
	"golang.org/x/exp/slices"
)

// How strictly tiles are matched to participants.
type matchLevel int

const (
	matchProducer matchLevel = iota
	matchProducerOrAudio
	matchAny
)

func levelFor(mode tile.DisplayMode) matchLevel {
	switch mode {
	case tile.DisplayMedia:
		return matchProducerOrAudio
	case tile.DisplayAll:
		return matchAny
	default:
		return matchProducer
	}
}

func matchTile(stream tile.Stream, participant roster.Participant, level matchLevel) bool {
	if stream.ProducerID != "" && participant.VideoID == stream.ProducerID {
		return true
	}

	if level >= matchProducerOrAudio && stream.AudioID != "" && participant.AudioID == stream.AudioID {
		return true
	}

	return level >= matchAny && stream.Name != "" && participant.Name == stream.Name
}

// Names of the participants displayed by the batch. Starts with the strategy of the display
// mode and relaxes it while nothing matches. The local tiles are not counted.
func displayedNames(batch []tile.Stream, participants []roster.Participant, mode tile.DisplayMode) []string {
	remote := 0
	for _, stream := range batch {
		if !stream.IsSelf() {
			remote++
		}
	}

	for level := levelFor(mode); level <= matchAny; level++ {
		names := namesAt(batch, participants, level)
		if len(names) > 0 || remote == 0 {
			return names
		}
	}

	return []string{}
}

func namesAt(batch []tile.Stream, participants []roster.Participant, level matchLevel) []string {
	names := []string{}
	for _, stream := range batch {
		if stream.IsSelf() {
			continue
		}

		for _, participant := range participants {
			if matchTile(stream, participant, level) && !slices.Contains(names, participant.Name) {
				names = append(names, participant.Name)
				break
			}
		}
	}

	return names
}

// Displayed participants that qualify for the broadcast: they have a live video or they are not muted.
func qualifyingNames(displayed []string, batch []tile.Stream, participants []roster.Participant) []string {
	names := make([]string, 0, len(displayed))
	for _, name := range displayed {
		participant, found := roster.FindByName(participants, name)
		if !found {
			continue
		}

		live := slices.IndexFunc(batch, func(stream tile.Stream) bool {
			return stream.HasVideo() && stream.ProducerID == participant.VideoID
		}) != -1

		if live || !participant.Muted {
			names = append(names, name)
		}
	}

	return names
}
