package classifier

import (
	"errors"
	"fmt"

	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
	"golang.org/x/exp/slices"
)

var (
	ErrInvalidPageLimit   = errors.New("page limits must be positive")
	ErrInvalidDisplayMode = errors.New("invalid display mode")
	ErrInvalidEventType   = errors.New("invalid event type")
	ErrNoMember           = errors.New("local member is not set")
)

// Options that drive the classification.
type Options struct {
	EventType   tile.EventType   `yaml:"eventType"`
	DisplayMode tile.DisplayMode `yaml:"displayMode"`
	// Only tiles with a live video are mixed into the main grid, stream-less tiles follow them.
	VideoOptimized    bool `yaml:"videoOptimized"`
	SortAudioLoudness bool `yaml:"sortAudioLoudness"`
	ItemPageLimit     int  `yaml:"itemPageLimit"`
	ScreenPageLimit   int  `yaml:"screenPageLimit"`
}

func (o Options) Validate() error {
	if o.ItemPageLimit < 1 || o.ScreenPageLimit < 1 {
		return fmt.Errorf("%w: item %d, screen %d", ErrInvalidPageLimit, o.ItemPageLimit, o.ScreenPageLimit)
	}

	if !o.DisplayMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidDisplayMode, o.DisplayMode)
	}

	if !o.EventType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidEventType, o.EventType)
	}

	return nil
}

// Breakout room state.
type Breakout struct {
	Active bool
	Rooms  [][]roster.BreakoutParticipant
	// Room the host has been virtually assigned to, nil if none.
	HostNewRoom *int
}

// Marks a batch (or a member) that does not belong to any breakout room.
const NoRoom = -1

// Everything a classification pass reads. The snapshot is taken once and never changes during the pass.
type Snapshot struct {
	Options
	// Name of the local participant.
	Member string
	// Candidate streams: the local camera tiles and the live video producers of the room.
	Streams      []tile.Stream
	Participants []roster.Participant
	AudioLevels  []roster.AudioLevel
	Breakout     Breakout
	// A screen is shared, locally or remotely.
	ShareActive bool
	// Streams that were live during earlier passes, newest last.
	LastKnown []tile.Stream
}

// Output of a classification pass.
type Classification struct {
	// Live tiles that survived pruning, the local tiles first.
	Streams []tile.Stream
	// Participants eligible for the grid, independent of pagination.
	ActiveNames []string
	// Unmuted participants without a live video.
	NonAlVideo []tile.Stream
	// Muted participants without a live video.
	NonAlVideoMuted []tile.Stream
	// Live and stream-less tiles merged by loudness, empty when not computed.
	Mixed []tile.Stream
	// All tiles that are eligible for the grid, in display order.
	Flattened []tile.Stream
	// One batch per page.
	Batches [][]tile.Stream
	// Room of every batch, `NoRoom` for the main room.
	BatchRooms []int
	// Breakout room of the local member, `NoRoom` if none.
	MemberRoom int
	DoPaginate bool
	// The tiles were collapsed because of a screen share.
	ShareOverride bool
}

// Runs a classification pass. It never mutates the snapshot.
func Classify(snapshot Snapshot) (Classification, error) {
	if err := snapshot.Validate(); err != nil {
		return Classification{}, err
	}

	if snapshot.Member == "" {
		return Classification{}, ErrNoMember
	}

	result := Classification{MemberRoom: NoRoom}
	host, hasHost := roster.FindHost(snapshot.Participants)

	// Pass 1: drop the streams of participants that are gone.
	live := pruneStale(snapshot.Streams, snapshot.Participants, snapshot.Member)

	// Pass 2: a screen share replaces the normal tiling.
	if snapshot.ShareActive {
		result.Streams = live
		result.Flattened = collapseForShare(live, snapshot.ScreenPageLimit)
		result.ShareOverride = true
	} else {
		// Pass 3: active, muted and mixed tiles.
		excludeHost := hasHost && (snapshot.EventType == tile.EventWebinar || snapshot.EventType == tile.EventBroadcast)
		if excludeHost {
			live = withoutOwner(live, host.Name)
		}

		nonAl, nonAlMuted := partition(snapshot, live, excludeHost, host.Name)

		if sortingEnabled(snapshot.Options) {
			sortByLoudness(nonAl, snapshot.AudioLevels)
		}

		// Pass 4: non-host conference members see the current video of the host.
		if snapshot.EventType == tile.EventConference && hasHost && snapshot.Member != host.Name {
			if stream, found := substituteHost(live, snapshot.LastKnown, host); found {
				live = withoutOwner(live, host.Name)
				live = slices.Insert(live, selfCount(live), stream)
				nonAl = withoutOwner(nonAl, host.Name)
				nonAlMuted = withoutOwner(nonAlMuted, host.Name)
			}
		}

		if !snapshot.VideoOptimized && sortingEnabled(snapshot.Options) {
			result.Mixed = MixStreams(live, nonAl, snapshot.Participants)
		}

		result.Streams = live
		result.NonAlVideo = nonAl
		result.NonAlVideoMuted = nonAlMuted
		result.Flattened = flatten(snapshot.Options, live, nonAl, nonAlMuted, result.Mixed)
	}

	result.ActiveNames = activeNames(result.Flattened)

	// Pass 5: pagination.
	pages := paginate(snapshot, result.Flattened, host.Name, hasHost)
	result.Batches = pages.batches
	result.BatchRooms = pages.rooms
	result.MemberRoom = pages.memberRoom
	result.DoPaginate = len(result.Batches) > 1

	return result, nil
}

// Owner of a tile: the local member for the local tiles, the host for the whiteboard.
func Owner(stream tile.Stream, member, host string) string {
	if name := tile.SourceName(stream.Source, member, host); name != "" {
		return name
	}

	return stream.Name
}

func pruneStale(streams []tile.Stream, participants []roster.Participant, member string) []tile.Stream {
	pruned := make([]tile.Stream, 0, len(streams))
	seen := make(map[string]struct{}, len(streams))

	add := func(stream tile.Stream) {
		key := stream.Key()
		if _, found := seen[key]; found {
			return
		}

		seen[key] = struct{}{}
		pruned = append(pruned, stream)
	}

	// Local tiles go first and are always kept.
	for _, stream := range streams {
		if stream.IsSelf() {
			stream.Name = member
			add(stream)
		}
	}

	for _, stream := range streams {
		if stream.IsSelf() {
			continue
		}

		if _, isWhiteboard := stream.Source.(tile.Whiteboard); isWhiteboard {
			continue
		}

		owner, found := resolveOwner(stream, participants)
		if !found || owner.Name == member {
			continue
		}

		stream.Name = owner.Name
		stream.Source = tile.Remote{Name: owner.Name}
		add(stream)
	}

	return pruned
}

// A video stream belongs to the participant currently publishing it. Streams without
// a video are matched by their audio producer, then by name.
func resolveOwner(stream tile.Stream, participants []roster.Participant) (roster.Participant, bool) {
	if stream.ProducerID != "" {
		for _, participant := range participants {
			if participant.VideoID == stream.ProducerID {
				return participant, true
			}
		}

		return roster.Participant{}, false
	}

	if owner, found := roster.FindByProducer(participants, stream.AudioID); found {
		return owner, true
	}

	if stream.Name != "" {
		return roster.FindByName(participants, stream.Name)
	}

	return roster.Participant{}, false
}

// Local tiles plus at most `limit` remote tiles.
func collapseForShare(live []tile.Stream, limit int) []tile.Stream {
	collapsed := make([]tile.Stream, 0, limit+2)

	remote := 0
	for _, stream := range live {
		if stream.IsSelf() {
			collapsed = append(collapsed, stream)
			continue
		}

		if remote < limit {
			collapsed = append(collapsed, stream)
			remote++
		}
	}

	return collapsed
}

// Splits the members that have no live video into unmuted and muted ones, in roster order.
func partition(snapshot Snapshot, live []tile.Stream, excludeHost bool, host string) (nonAl, nonAlMuted []tile.Stream) {
	withVideo := make(map[string]struct{}, len(live))
	for _, stream := range live {
		withVideo[stream.Name] = struct{}{}
	}

	for _, participant := range snapshot.Participants {
		if participant.Name == snapshot.Member || (excludeHost && participant.Name == host) {
			continue
		}

		if _, found := withVideo[participant.Name]; found {
			continue
		}

		stream := tile.NewRemote(participant.Name, "", participant.AudioID)
		stream.Muted = participant.Muted
		if participant.Muted {
			nonAlMuted = append(nonAlMuted, stream)
		} else {
			nonAl = append(nonAl, stream)
		}
	}

	return nonAl, nonAlMuted
}

func sortingEnabled(options Options) bool {
	return options.SortAudioLoudness &&
		options.EventType != tile.EventBroadcast &&
		options.EventType != tile.EventChat
}

// Loudest first. Participants without samples have the minimal loudness, so they sort last.
func sortByLoudness(streams []tile.Stream, levels []roster.AudioLevel) {
	slices.SortStableFunc(streams, func(a, b tile.Stream) bool {
		return roster.LoudnessOf(levels, a.Name) > roster.LoudnessOf(levels, b.Name)
	})
}

// Amount of local tiles, they always lead the live tiles.
func selfCount(live []tile.Stream) int {
	count := 0
	for count < len(live) && live[count].IsSelf() {
		count++
	}

	return count
}

// Finds the current video of the host when it is missing from the live tiles.
func substituteHost(live, lastKnown []tile.Stream, host roster.Participant) (tile.Stream, bool) {
	if host.VideoID == "" {
		return tile.Stream{}, false
	}

	for _, stream := range live {
		if stream.ProducerID == host.VideoID {
			return tile.Stream{}, false
		}
	}

	for i := len(lastKnown) - 1; i >= 0; i-- {
		if stream := lastKnown[i]; stream.ProducerID == host.VideoID {
			stream.Name = host.Name
			stream.Source = tile.Remote{Name: host.Name}
			return stream, true
		}
	}

	return tile.Stream{}, false
}

func flatten(options Options, live, nonAl, nonAlMuted, mixed []tile.Stream) []tile.Stream {
	var flattened []tile.Stream

	switch options.DisplayMode {
	case tile.DisplayVideo:
		flattened = append(flattened, live...)
	case tile.DisplayMedia:
		flattened = append(flattened, presentation(live, nonAl, mixed)...)
	case tile.DisplayAll:
		flattened = append(flattened, presentation(live, nonAl, mixed)...)
		flattened = append(flattened, nonAlMuted...)
	}

	return flattened
}

func presentation(live, nonAl, mixed []tile.Stream) []tile.Stream {
	if mixed != nil {
		return mixed
	}

	ordered := make([]tile.Stream, 0, len(live)+len(nonAl))
	ordered = append(ordered, live...)
	return append(ordered, nonAl...)
}

func activeNames(tiles []tile.Stream) []string {
	names := make([]string, 0, len(tiles))
	for _, stream := range tiles {
		if stream.IsSelf() || slices.Contains(names, stream.Name) {
			continue
		}

		names = append(names, stream.Name)
	}

	return names
}

func withoutOwner(streams []tile.Stream, name string) []tile.Stream {
	kept := make([]tile.Stream, 0, len(streams))
	for _, stream := range streams {
		if stream.IsSelf() || stream.Name != name {
			kept = append(kept, stream)
		}
	}

	return kept
}
