package world

import "fmt"

// State is the lifecycle state of a chunk.
type State int

const (
	StateActive State = iota
	StateDisabled
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateDisabled:
		return "disabled"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
