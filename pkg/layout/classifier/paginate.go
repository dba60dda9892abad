package classifier

import (
	"github.com/matrix-org/tessera/pkg/roster"
	"github.com/matrix-org/tessera/pkg/tile"
)

type pagination struct {
	batches    [][]tile.Stream
	rooms      []int
	memberRoom int
}

// Page sizes. The first page has an extra slot for the local tile, except for conferences
// without a screen share where the local tile gets no reserved slot.
func pageLimits(snapshot Snapshot) (first, rest int) {
	limit := snapshot.ItemPageLimit
	if snapshot.ShareActive {
		limit = snapshot.ScreenPageLimit
	}

	if snapshot.EventType == tile.EventConference && !snapshot.ShareActive {
		return limit, limit
	}

	return limit + 1, limit
}

func paginate(snapshot Snapshot, tiles []tile.Stream, host string, hasHost bool) pagination {
	first, rest := pageLimits(snapshot)

	if !snapshot.Breakout.Active || len(snapshot.Breakout.Rooms) == 0 {
		batches := chunk(tiles, first, rest)
		return pagination{batches: batches, rooms: repeatRoom(NoRoom, len(batches)), memberRoom: NoRoom}
	}

	rooms := roster.CloneRooms(snapshot.Breakout.Rooms)
	if hostRoom := snapshot.Breakout.HostNewRoom; hasHost && hostRoom != nil && roster.RoomOf(rooms, host) == NoRoom {
		assignHost(rooms, *hostRoom, host)
	}

	// Every room holds at most a page plus the slot of the local tile.
	roomCapacity := rest + 1
	roomBatches := make([][]tile.Stream, len(rooms))
	var unassigned []tile.Stream

	for _, stream := range tiles {
		index := roster.RoomOf(rooms, Owner(stream, snapshot.Member, host))
		if index == NoRoom {
			unassigned = append(unassigned, stream)
			continue
		}

		if len(roomBatches[index]) < roomCapacity {
			roomBatches[index] = append(roomBatches[index], stream)
		}
	}

	mainBatches := chunk(unassigned, first, rest)
	memberRoom := roster.RoomOf(rooms, snapshot.Member)

	result := pagination{memberRoom: memberRoom}
	add := func(batch []tile.Stream, room int) {
		result.batches = append(result.batches, batch)
		result.rooms = append(result.rooms, room)
	}

	// The bucket of the local member goes first.
	if memberRoom != NoRoom {
		add(roomBatches[memberRoom], memberRoom)
	} else {
		add(mainBatches[0], NoRoom)
		mainBatches = mainBatches[1:]
	}

	for index, batch := range roomBatches {
		if index != memberRoom {
			add(batch, index)
		}
	}

	for _, batch := range mainBatches {
		add(batch, NoRoom)
	}

	return result
}

// Splits tiles into pages. There is always at least one (possibly empty) page.
func chunk(tiles []tile.Stream, first, rest int) [][]tile.Stream {
	size := first
	batches := [][]tile.Stream{}

	for len(tiles) > 0 {
		if size > len(tiles) {
			size = len(tiles)
		}

		batches = append(batches, tiles[:size:size])
		tiles = tiles[size:]
		size = rest
	}

	if len(batches) == 0 {
		batches = append(batches, []tile.Stream{})
	}

	return batches
}

// Virtually adds the host to a room, ignoring rooms that don't exist.
func assignHost(rooms [][]roster.BreakoutParticipant, room int, host string) {
	if room < 0 || room >= len(rooms) {
		return
	}

	rooms[room] = append(rooms[room], roster.BreakoutParticipant{Name: host, BreakRoom: room})
}

func repeatRoom(room, n int) []int {
	rooms := make([]int, n)
	for i := range rooms {
		rooms[i] = room
	}

	return rooms
}
