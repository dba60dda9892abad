package tile

// Kind of the event (room) the layout is computed for.
type EventType string

const (
	EventBroadcast  EventType = "broadcast"
	EventChat       EventType = "chat"
	EventConference EventType = "conference"
	EventWebinar    EventType = "webinar"
)

func (e EventType) Valid() bool {
	switch e {
	case EventBroadcast, EventChat, EventConference, EventWebinar:
		return true
	default:
		return false
	}
}

// Which participants are eligible for a tile.
type DisplayMode string

const (
	// Only participants with a live video producer.
	DisplayVideo DisplayMode = "video"
	// Participants with any live producer (video or unmuted audio).
	DisplayMedia DisplayMode = "media"
	// Every member of the roster.
	DisplayAll DisplayMode = "all"
)

func (d DisplayMode) Valid() bool {
	switch d {
	case DisplayVideo, DisplayMedia, DisplayAll:
		return true
	default:
		return false
	}
}

// Source tells what feeds a tile. Since Go does not support ADTs, the set of
// sources is closed by an unexported method and consumers use a type switch.
type Source interface {
	source()
}

// The local camera. `Sharing` is set for the copy of the local camera that is
// shown while the local user shares their screen.
type Self struct {
	Sharing bool
}

// The whiteboard placeholder that may occupy the main screen.
type Whiteboard struct{}

// A remote participant identified by name.
type Remote struct {
	Name string
}

func (Self) source()       {}
func (Whiteboard) source() {}
func (Remote) source()     {}

// Stream is a handle to a tile: a live (or absent) media producer of a participant.
// A stream without a `ProducerID` represents a participant that has no video.
type Stream struct {
	Source     Source `yaml:"-"`
	ProducerID string `yaml:"producerId"`
	AudioID    string `yaml:"audioId"`
	Name       string `yaml:"name"`
	Muted      bool   `yaml:"muted"`
	// The video is a background-replaced (virtual) version of the camera.
	Virtual bool `yaml:"virtual"`
}

func (s Stream) IsSelf() bool {
	_, ok := s.Source.(Self)
	return ok
}

func (s Stream) HasVideo() bool {
	return s.ProducerID != ""
}

func (s Stream) HasMedia() bool {
	return s.ProducerID != "" || s.AudioID != ""
}

// Stable identity of a tile, used to find out which tiles enter or leave the screen.
func (s Stream) Key() string {
	switch src := s.Source.(type) {
	case Self:
		if src.Sharing {
			return "self:sharing"
		}
		return "self"
	case Whiteboard:
		return "whiteboard"
	}

	switch {
	case s.ProducerID != "":
		return "video:" + s.ProducerID
	case s.AudioID != "":
		return "audio:" + s.AudioID
	default:
		return "name:" + s.Name
	}
}

// Resolves a source to the participant that owns it. The whiteboard is owned by the host.
func SourceName(source Source, member, host string) string {
	switch src := source.(type) {
	case Self:
		return member
	case Whiteboard:
		return host
	case Remote:
		return src.Name
	default:
		return ""
	}
}

// Helper to build a remote stream.
func NewRemote(name, producerID, audioID string) Stream {
	return Stream{
		Source:     Remote{Name: name},
		ProducerID: producerID,
		AudioID:    audioID,
		Name:       name,
	}
}
