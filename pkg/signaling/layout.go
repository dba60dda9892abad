package signaling

import (
	"fmt"

	"github.com/matrix-org/tessera/pkg/tile"
)

// The layout announced to the server, so that it knows whose media to forward
// and how much of the screen the main area takes.
type LayoutUpdate struct {
	Names            []string       `json:"names"`
	MainPercent      int            `json:"mainPercent"`
	MainScreenPerson string         `json:"mainScreenPerson"`
	ViewType         tile.EventType `json:"viewType"`
}

// The server (or the channel) refused the layout.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("layout update rejected: %s", e.Reason)
}
