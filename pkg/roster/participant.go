package roster

// Role of a participant in the room.
type Level string

const (
	LevelParticipant Level = "0"
	LevelCoHost      Level = "1"
	// The primary host of the room.
	LevelHost Level = "2"
)

// A member of the room as seen by the layout engine. Names are unique within a room.
type Participant struct {
	Name    string `yaml:"name"`
	Level   Level  `yaml:"level"`
	Muted   bool   `yaml:"muted"`
	VideoOn bool   `yaml:"videoOn"`
	// Index of the breakout room the participant is assigned to, nil if none.
	BreakRoom *int   `yaml:"breakRoom,omitempty"`
	AudioID   string `yaml:"audioId"`
	VideoID   string `yaml:"videoId"`
}

func (p Participant) IsHost() bool {
	return p.Level == LevelHost
}

func (p Participant) InBreakRoom() bool {
	return p.BreakRoom != nil && *p.BreakRoom >= 0
}

// Membership of a breakout room.
type BreakoutParticipant struct {
	Name      string `yaml:"name"`
	BreakRoom int    `yaml:"breakRoom"`
}

// Loudness of a participant in dBov, i.e. between `MinLoudness` (silence) and 0.
type AudioLevel struct {
	Name            string  `yaml:"name"`
	AverageLoudness float64 `yaml:"averageLoudness"`
}

// Loudness of participants for which no samples are known.
const MinLoudness = -127.0

// Read-only view of the roster. Implementations return snapshots that the caller may keep.
type Provider interface {
	Participants() []Participant
	BreakoutRooms() [][]BreakoutParticipant
	AudioLevels() []AudioLevel
}

// Finds the primary host of the room.
func FindHost(participants []Participant) (Participant, bool) {
	for _, participant := range participants {
		if participant.IsHost() {
			return participant, true
		}
	}

	return Participant{}, false
}

// Finds a participant by name.
func FindByName(participants []Participant, name string) (Participant, bool) {
	for _, participant := range participants {
		if participant.Name == name {
			return participant, true
		}
	}

	return Participant{}, false
}

// Finds the owner of a producer (audio or video).
func FindByProducer(participants []Participant, producerID string) (Participant, bool) {
	if producerID == "" {
		return Participant{}, false
	}

	for _, participant := range participants {
		if participant.VideoID == producerID || participant.AudioID == producerID {
			return participant, true
		}
	}

	return Participant{}, false
}

// Looks up the loudness of a participant, `MinLoudness` if unknown.
func LoudnessOf(levels []AudioLevel, name string) float64 {
	for _, level := range levels {
		if level.Name == name {
			return level.AverageLoudness
		}
	}

	return MinLoudness
}

// Index of the breakout room that a participant belongs to, -1 if none.
func RoomOf(rooms [][]BreakoutParticipant, name string) int {
	for index, room := range rooms {
		for _, member := range room {
			if member.Name == name {
				return index
			}
		}
	}

	return -1
}

// Deep copy of the breakout rooms.
func CloneRooms(rooms [][]BreakoutParticipant) [][]BreakoutParticipant {
	if rooms == nil {
		return nil
	}

	cloned := make([][]BreakoutParticipant, len(rooms))
	for i, room := range rooms {
		cloned[i] = append([]BreakoutParticipant(nil), room...)
	}

	return cloned
}
