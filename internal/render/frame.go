// apps/go-server/internal/render/frame.go
//
// Wire representation of a game snapshot.
// A Frame is what renderers receive after every tick: the board geometry
// (so client and server agree on cell size), the snake, the food and the
// score. Frames are plain data; building one never touches the engine.

package render

import "github.com/robalobadob/snake/apps/go-server/internal/game"

// FrameType tags frame messages on the WebSocket.
const FrameType = "frame"

// Frame is the JSON payload pushed to renderers.
type Frame struct {
	Type       string          `json:"type"`
	GameID     string          `json:"gameId"`
	BoardSize  int             `json:"boardSize"`
	CellSize   int             `json:"cellSize"`
	Snake      []game.Position `json:"snake"`
	Food       game.Position   `json:"food"`
	Score      int             `json:"score"`
	Direction  string          `json:"direction"`
	Phase      game.Phase      `json:"phase"`
	Tick       uint64          `json:"tick"`
	Generation uint64          `json:"generation"`
}

// NewFrame converts a snapshot into a Frame for game id.
func NewFrame(id string, s game.State) Frame {
	return Frame{
		Type:       FrameType,
		GameID:     id,
		BoardSize:  s.Board.Size,
		CellSize:   s.Board.Cell,
		Snake:      s.Snake,
		Food:       s.Food,
		Score:      s.Score,
		Direction:  s.Direction.String(),
		Phase:      s.Phase,
		Tick:       s.Tick,
		Generation: s.Generation,
	}
}
