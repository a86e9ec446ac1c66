// Package input maps key names from an input device to grid directions.
//
// Browsers report arrow keys as "ArrowUp" etc.; terminals and scripted
// clients tend to send "up" or WASD. All of them end up as one of the four
// cardinal directions understood by the game engine.
package input

import (
	"strings"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

var keyMap = map[string]game.Direction{
	"arrowup":    game.Up,
	"up":         game.Up,
	"w":          game.Up,
	"arrowdown":  game.Down,
	"down":       game.Down,
	"s":          game.Down,
	"arrowleft":  game.Left,
	"left":       game.Left,
	"a":          game.Left,
	"arrowright": game.Right,
	"right":      game.Right,
	"d":          game.Right,
}

// FromKey returns the direction for a key name. Matching is case-insensitive
// and ignores surrounding whitespace. Unknown keys report false.
func FromKey(key string) (game.Direction, bool) {
	d, ok := keyMap[strings.ToLower(strings.TrimSpace(key))]
	return d, ok
}
