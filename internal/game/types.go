// apps/go-server/internal/game/types.go
//
// Core type definitions for the Snake game engine.
// Defines:
//   - Position: a grid-aligned point in board units.
//   - Direction: a unit heading (or the zero "not started" heading).
//   - Phase: Idle / Running.
//   - Event: what a single Tick did.
//   - State: an immutable snapshot handed to renderers.

package game

// Position is a grid-aligned point in board units (multiples of the cell size).
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p offset by d.
func (p Position) Add(d Position) Position {
	return Position{X: p.X + d.X, Y: p.Y + d.Y}
}

// Direction is a unit heading on the grid.
// The zero value means the snake has not started moving.
type Direction struct {
	DX int `json:"dx"`
	DY int `json:"dy"`
}

var (
	None  = Direction{}
	Up    = Direction{DX: 0, DY: -1}
	Down  = Direction{DX: 0, DY: 1}
	Left  = Direction{DX: -1, DY: 0}
	Right = Direction{DX: 1, DY: 0}
)

// IsZero reports whether d is the "not started" heading.
func (d Direction) IsZero() bool { return d.DX == 0 && d.DY == 0 }

// IsCardinal reports whether d is exactly one of Up, Down, Left, Right.
func (d Direction) IsCardinal() bool {
	return (d.DX == 0 && (d.DY == 1 || d.DY == -1)) ||
		(d.DY == 0 && (d.DX == 1 || d.DX == -1))
}

// Horizontal reports whether d moves along the x axis.
func (d Direction) Horizontal() bool { return d.DX != 0 }

// Vertical reports whether d moves along the y axis.
func (d Direction) Vertical() bool { return d.DY != 0 }

// Scale converts the heading into a step of cell board units.
func (d Direction) Scale(cell int) Position {
	return Position{X: d.DX * cell, Y: d.DY * cell}
}

// String returns "up", "down", "left", "right" or "none".
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	case None:
		return "none"
	}
	return "invalid"
}

// Phase is the coarse engine state.
type Phase string

const (
	PhaseIdle    Phase = "idle"    // waiting for the first direction
	PhaseRunning Phase = "running" // snake advances every tick
)

// Event reports the outcome of a single Tick.
type Event int

const (
	EventIdle     Event = iota // no direction yet; nothing moved
	EventMoved                 // snake slid one cell
	EventAte                   // snake moved onto food and grew
	EventCollided              // wall or body hit; engine was reset
)

func (e Event) String() string {
	switch e {
	case EventIdle:
		return "idle"
	case EventMoved:
		return "moved"
	case EventAte:
		return "ate"
	case EventCollided:
		return "collided"
	}
	return "unknown"
}

// State is a deep copy of the engine state. Holding one never aliases the
// engine's internal slices.
type State struct {
	Board      Board      // board and cell size shared with renderers
	Snake      []Position // head first
	Food       Position
	Direction  Direction // committed heading
	Pending    Direction // heading applied on the next tick
	Score      int
	Tick       uint64 // ticks advanced since the last reset
	Generation uint64 // number of resets since construction
	Phase      Phase
}

// Head returns the first snake segment.
func (s State) Head() Position { return s.Snake[0] }
