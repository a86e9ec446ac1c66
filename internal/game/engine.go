// apps/go-server/internal/game/engine.go
//
// Core game engine for a single Snake session.
// Responsibilities:
//   - Hold the snake, food, heading and score for one board.
//   - Advance the simulation one cell per Tick.
//   - Detect wall and self collisions and reset on either.
//   - Buffer direction input and commit it at the next tick.
//
// Notes:
//   - The engine owns no timers and no goroutines. The caller (see the
//     session package) decides when Tick runs and must serialise calls.
//   - Food is placed uniformly at random and may land under the snake.
package game

import (
	"math/rand"
)

// Engine is the authoritative state of one game.
// It is not safe for concurrent use.
type Engine struct {
	board Board
	rng   *rand.Rand

	snake   []Position // head first
	food    Position
	dir     Direction // committed heading; zero while idle
	pending Direction // next heading, committed inside Tick
	score   int

	tick       uint64
	generation uint64
}

// New validates the board and returns an engine in its initial idle state.
// A nil rng gets a time-seeded source.
func New(board Board, rng *rand.Rand) (*Engine, error) {
	if err := board.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	e := &Engine{board: board, rng: rng}
	e.Reset()
	return e, nil
}

// NewSeeded is New with a deterministic food sequence.
func NewSeeded(board Board, seed int64) (*Engine, error) {
	return New(board, rand.New(rand.NewSource(seed)))
}

// Reset puts the engine back to a single segment at the centre, idle, with
// a fresh food cell and zero score.
func (e *Engine) Reset() {
	e.snake = append(e.snake[:0], e.board.Center())
	e.dir = None
	e.pending = Right
	e.food = e.spawnFood()
	e.score = 0
	e.tick = 0
	e.generation++
}

// SetDirection requests a new heading and reports whether it was accepted.
//
// While idle any cardinal heading is accepted and committed immediately,
// which starts the game. While running, requests on the axis of the
// committed heading are rejected; perpendicular requests are buffered and
// take effect on the next Tick. Because the check is made against the
// committed heading, several requests between two ticks can never turn the
// snake back onto itself.
func (e *Engine) SetDirection(d Direction) bool {
	if !d.IsCardinal() {
		return false
	}
	if e.dir.IsZero() {
		e.dir, e.pending = d, d
		return true
	}
	if (e.dir.Horizontal() && d.Horizontal()) || (e.dir.Vertical() && d.Vertical()) {
		return false
	}
	e.pending = d
	return true
}

// Tick advances the simulation by one step.
//
// Order:
//  1. idle engines do nothing;
//  2. the pending heading is committed;
//  3. the next head is computed;
//  4. a wall or body hit resets the engine;
//  5. the head is prepended;
//  6. food grows the snake and is re-spawned, otherwise the tail is dropped.
func (e *Engine) Tick() Event {
	if e.dir.IsZero() {
		return EventIdle
	}
	e.dir = e.pending

	next := e.snake[0].Add(e.dir.Scale(e.board.Cell))
	if e.collides(next) {
		e.Reset()
		return EventCollided
	}

	e.snake = append(e.snake, Position{})
	copy(e.snake[1:], e.snake)
	e.snake[0] = next
	e.tick++

	if next == e.food {
		e.score++
		e.food = e.spawnFood()
		return EventAte
	}
	e.snake = e.snake[:len(e.snake)-1]
	return EventMoved
}

// collides reports a wall hit or a hit on any current segment.
func (e *Engine) collides(p Position) bool {
	if !e.board.Contains(p) {
		return true
	}
	for _, seg := range e.snake {
		if seg == p {
			return true
		}
	}
	return false
}

// spawnFood picks x and y independently and uniformly over the grid.
// The snake body is not excluded.
func (e *Engine) spawnFood() Position {
	n := e.board.Cells()
	return Position{
		X: e.rng.Intn(n) * e.board.Cell,
		Y: e.rng.Intn(n) * e.board.Cell,
	}
}

// Phase reports Idle until the first accepted direction, Running after.
func (e *Engine) Phase() Phase {
	if e.dir.IsZero() {
		return PhaseIdle
	}
	return PhaseRunning
}

// Board returns the engine's board.
func (e *Engine) Board() Board { return e.board }

// State returns a snapshot safe to hand to another goroutine.
func (e *Engine) State() State {
	snake := make([]Position, len(e.snake))
	copy(snake, e.snake)
	return State{
		Board:      e.board,
		Snake:      snake,
		Food:       e.food,
		Direction:  e.dir,
		Pending:    e.pending,
		Score:      e.score,
		Tick:       e.tick,
		Generation: e.generation,
		Phase:      e.Phase(),
	}
}
