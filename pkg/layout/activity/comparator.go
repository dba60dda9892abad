package activity

import (
	"context"

	"golang.org/x/exp/slices"
)

// Active names of the current and of the previous pass.
type Names struct {
	Current  []string
	Previous []string
}

// A name was added or removed. The order does not matter.
func (n Names) Changed() bool {
	for _, name := range n.Current {
		if !slices.Contains(n.Previous, name) {
			return true
		}
	}

	for _, name := range n.Previous {
		if !slices.Contains(n.Current, name) {
			return true
		}
	}

	return false
}

// Triggers a broadcast whenever the set of active names changes.
// Not safe for concurrent use, the engine serializes the calls.
type Comparator struct {
	names       Names
	broadcaster *Broadcaster
}

func NewComparator(broadcaster *Broadcaster) *Comparator {
	return &Comparator{broadcaster: broadcaster}
}

// Compares the active names with the last announced ones and triggers a broadcast on change
// or when `restart` is set. The announced names only advance once the broadcaster emitted,
// so a throttled change is retried by the next comparison. Returns true if a layout was emitted.
func (c *Comparator) Compare(ctx context.Context, current []string, restart bool, view View) bool {
	c.names.Current = slices.Clone(current)

	if !restart && !c.names.Changed() {
		return false
	}

	if !c.broadcaster.Trigger(ctx, current, view) {
		return false
	}

	c.names.Previous = c.names.Current
	return true
}

func (c *Comparator) Names() Names {
	return Names{
		Current:  slices.Clone(c.names.Current),
		Previous: slices.Clone(c.names.Previous),
	}
}
