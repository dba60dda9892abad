package roster

import (
	"fmt"
	"sync"

	"github.com/matrix-org/tessera/pkg/channel"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// What happened to the roster.
type ChangeKind int

const (
	ParticipantJoined ChangeKind = iota
	ParticipantLeft
	MediaChanged
	BreakoutChanged
)

func (k ChangeKind) String() string {
	switch k {
	case ParticipantJoined:
		return "joined"
	case ParticipantLeft:
		return "left"
	case MediaChanged:
		return "media"
	case BreakoutChanged:
		return "breakout"
	default:
		return "unknown"
	}
}

// Notification about a roster change, sent to whoever drives the layout engine.
type Change struct {
	Kind ChangeKind
	Name string
}

// Media state of a participant.
type Media struct {
	Muted   bool
	VideoOn bool
	AudioID string
	VideoID string
}

// Holds the authoritative roster of a room: participants, breakout rooms and loudness.
// The layout engine only gets copies through the `Provider` interface.
type Tracker struct {
	mutex         sync.RWMutex
	order         []string
	participants  map[string]Participant
	breakoutRooms [][]BreakoutParticipant
	loudness      *LoudnessMeter
	sink          *channel.SinkWithSender[string, Change]
	logger        *logrus.Entry
}

// Creates a tracker. Changes are reported to `sink` if it's not nil.
func NewTracker(loudnessWindow int, sink *channel.SinkWithSender[string, Change], logger *logrus.Entry) *Tracker {
	return &Tracker{
		participants: make(map[string]Participant),
		loudness:     NewLoudnessMeter(loudnessWindow),
		sink:         sink,
		logger:       logger,
	}
}

// Adds a participant or replaces the one with the same name.
func (t *Tracker) AddParticipant(participant Participant) error {
	if participant.Name == "" {
		return fmt.Errorf("participant has no name")
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, found := t.participants[participant.Name]; !found {
		t.order = append(t.order, participant.Name)
	}
	t.participants[participant.Name] = participant

	t.notify(Change{Kind: ParticipantJoined, Name: participant.Name})
	return nil
}

// Removes the participant together with their breakout membership and loudness samples.
func (t *Tracker) RemoveParticipant(name string) bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, found := t.participants[name]; !found {
		return false
	}

	delete(t.participants, name)
	if index := slices.Index(t.order, name); index != -1 {
		t.order = slices.Delete(t.order, index, index+1)
	}

	for i, room := range t.breakoutRooms {
		t.breakoutRooms[i] = removeMember(room, name)
	}

	t.loudness.Forget(name)
	t.notify(Change{Kind: ParticipantLeft, Name: name})
	return true
}

// Updates media state (mute, camera and producers) of a participant.
func (t *Tracker) UpdateMedia(name string, media Media) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	participant, found := t.participants[name]
	if !found {
		return fmt.Errorf("participant %s does not exist", name)
	}

	participant.Muted = media.Muted
	participant.VideoOn = media.VideoOn
	participant.AudioID = media.AudioID
	participant.VideoID = media.VideoID
	t.participants[name] = participant

	t.notify(Change{Kind: MediaChanged, Name: name})
	return nil
}

// Replaces the breakout rooms and updates the room assignment of the participants.
func (t *Tracker) SetBreakoutRooms(rooms [][]BreakoutParticipant) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.breakoutRooms = CloneRooms(rooms)
	for name, participant := range t.participants {
		participant.BreakRoom = nil
		if index := RoomOf(t.breakoutRooms, name); index != -1 {
			room := index
			participant.BreakRoom = &room
		}
		t.participants[name] = participant
	}

	t.notify(Change{Kind: BreakoutChanged})
}

// Moves a participant into a breakout room, a negative room removes the assignment.
func (t *Tracker) AssignBreakRoom(name string, room int) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	participant, found := t.participants[name]
	if !found {
		return fmt.Errorf("participant %s does not exist", name)
	}

	for i, members := range t.breakoutRooms {
		t.breakoutRooms[i] = removeMember(members, name)
	}

	participant.BreakRoom = nil
	if room >= 0 {
		for len(t.breakoutRooms) <= room {
			t.breakoutRooms = append(t.breakoutRooms, nil)
		}

		t.breakoutRooms[room] = append(t.breakoutRooms[room], BreakoutParticipant{Name: name, BreakRoom: room})
		participant.BreakRoom = &room
	}
	t.participants[name] = participant

	t.notify(Change{Kind: BreakoutChanged, Name: name})
	return nil
}

// Records a loudness sample (dBov) for a participant.
func (t *Tracker) ObserveVolume(name string, dBov float64) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.loudness.Observe(name, dBov)
}

// Records the audio level of an RTP packet received from a participant.
func (t *Tracker) ObserveRTP(name string, packet *rtp.Packet, extensionID uint8) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return t.loudness.ObserveRTP(name, packet, extensionID)
}

// Participants in the order they joined.
func (t *Tracker) Participants() []Participant {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	participants := make([]Participant, 0, len(t.order))
	for _, name := range t.order {
		participant := t.participants[name]
		if participant.BreakRoom != nil {
			room := *participant.BreakRoom
			participant.BreakRoom = &room
		}
		participants = append(participants, participant)
	}

	return participants
}

func (t *Tracker) BreakoutRooms() [][]BreakoutParticipant {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return CloneRooms(t.breakoutRooms)
}

func (t *Tracker) AudioLevels() []AudioLevel {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.loudness.Levels()
}

// Must be called with the lock held, that's why the sink must never block.
func (t *Tracker) notify(change Change) {
	if t.sink == nil {
		return
	}

	if err := t.sink.TrySend(change); err != nil {
		t.logger.WithError(err).WithField("change", change.Kind.String()).Warn("dropping roster change")
	}
}

func removeMember(room []BreakoutParticipant, name string) []BreakoutParticipant {
	kept := room[:0]
	for _, member := range room {
		if member.Name != name {
			kept = append(kept, member)
		}
	}

	return kept
}
