package classifier

import (
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
)

// Merges the live tiles with the stream-less unmuted ones (already sorted by loudness).
// The local tiles come first, then the unmuted live tiles. Stream-less tiles are then
// interleaved with the live tiles of muted participants so that speaking participants
// without a camera are not pushed behind every camera.
func MixStreams(live, nonLive []tile.Stream, participants []roster.Participant) []tile.Stream {
	mixed := make([]tile.Stream, 0, len(live)+len(nonLive))

	var unmuted, muted []tile.Stream
	for _, stream := range live {
		if stream.IsSelf() {
			mixed = append(mixed, stream)
			continue
		}

		if owner, found := roster.FindByName(participants, stream.Name); found && owner.Muted {
			muted = append(muted, stream)
		} else {
			unmuted = append(unmuted, stream)
		}
	}

	mixed = append(mixed, unmuted...)

	for i := 0; i < len(nonLive) || i < len(muted); i++ {
		if i < len(nonLive) {
			mixed = append(mixed, nonLive[i])
		}

		if i < len(muted) {
			mixed = append(mixed, muted[i])
		}
	}

	return mixed
}
