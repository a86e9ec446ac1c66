package render

import (
	"io"
	"strings"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

// Glyphs used by the text renderer.
const (
	GlyphEmpty = '.'
	GlyphSnake = '#'
	GlyphFood  = '@'
)

// Text draws a snapshot as one line of glyphs per grid row.
type Text struct {
	W io.Writer
}

// Draw clears the surface, paints every snake cell and then the food cell,
// and writes the result to t.W.
func (t Text) Draw(s game.State) error {
	_, err := io.WriteString(t.W, String(s))
	return err
}

// String renders s without writing it anywhere. Food is painted last, so it
// stays visible when it sits under the snake.
func String(s game.State) string {
	n := s.Board.Cells()
	grid := make([][]byte, n)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(string(GlyphEmpty), n))
	}
	paint := func(p game.Position, g byte) {
		if !s.Board.Contains(p) {
			return
		}
		grid[p.Y/s.Board.Cell][p.X/s.Board.Cell] = g
	}
	for _, seg := range s.Snake {
		paint(seg, GlyphSnake)
	}
	paint(s.Food, GlyphFood)

	var b strings.Builder
	b.Grow(n * (n + 1))
	for _, row := range grid {
		b.Write(row)
		b.WriteByte('\n')
	}
	return b.String()
}
