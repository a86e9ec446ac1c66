package game

import (
	"errors"
	"fmt"
)

// Defaults shared by the engine and renderers: a 400×400 board of 20-unit
// cells, i.e. a 20×20 grid.
const (
	DefaultBoardSize = 400
	DefaultCellSize  = 20
)

// ErrInvalidBoard is returned (wrapped) for board configurations the engine
// cannot play on.
var ErrInvalidBoard = errors.New("invalid board")

// Board is the square playing field. Size and Cell are in board units.
type Board struct {
	Size int `json:"size"`
	Cell int `json:"cell"`
}

// DefaultBoard returns the 400/20 board.
func DefaultBoard() Board {
	return Board{Size: DefaultBoardSize, Cell: DefaultCellSize}
}

// Validate rejects non-positive sizes, boards that are not a whole number of
// cells, and boards too small to hold the initial snake.
func (b Board) Validate() error {
	switch {
	case b.Cell <= 0:
		return fmt.Errorf("%w: cell size %d must be positive", ErrInvalidBoard, b.Cell)
	case b.Size <= 0:
		return fmt.Errorf("%w: board size %d must be positive", ErrInvalidBoard, b.Size)
	case b.Size < b.Cell:
		return fmt.Errorf("%w: board size %d cannot hold a %d-unit snake segment", ErrInvalidBoard, b.Size, b.Cell)
	case b.Size%b.Cell != 0:
		return fmt.Errorf("%w: board size %d is not a multiple of cell size %d", ErrInvalidBoard, b.Size, b.Cell)
	}
	return nil
}

// Cells is the number of grid cells per side.
func (b Board) Cells() int { return b.Size / b.Cell }

// Center is the cell nearest the middle of the board, snapped to the grid.
func (b Board) Center() Position {
	c := (b.Cells() / 2) * b.Cell
	return Position{X: c, Y: c}
}

// Contains reports whether p lies on the board.
func (b Board) Contains(p Position) bool {
	return p.X >= 0 && p.X < b.Size && p.Y >= 0 && p.Y < b.Size
}
