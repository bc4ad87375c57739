package sdf

import "fmt"

// Operator is the boolean applied by one edit.
type Operator byte

const (
	// Add unions a shape into a volume.
	Add Operator = iota
	// Subtract carves a shape out of a volume.
	Subtract
)

func (o Operator) String() string {
	switch o {
	case Add:
		return "add"
	case Subtract:
		return "subtract"
	}
	return fmt.Sprintf("Operator(%d)", byte(o))
}

// Valid reports whether o is Add or Subtract.
func (o Operator) Valid() bool {
	return o == Add || o == Subtract
}

// ChunkModification is one edit expressed in a chunk's local frame. It is
// built while replaying the world log for a single chunk and never stored.
type ChunkModification[S any] struct {
	Shape    S
	Operator Operator
}
