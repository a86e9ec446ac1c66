package input

import (
	"testing"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
)

func TestFromKey(t *testing.T) {
	cases := []struct {
		key  string
		want game.Direction
		ok   bool
	}{
		{"ArrowUp", game.Up, true},
		{"ArrowDown", game.Down, true},
		{"ArrowLeft", game.Left, true},
		{"ArrowRight", game.Right, true},
		{"up", game.Up, true},
		{" LEFT ", game.Left, true},
		{"W", game.Up, true},
		{"s", game.Down, true},
		{"a", game.Left, true},
		{"D", game.Right, true},
		{"Space", game.None, false},
		{"", game.None, false},
	}
	for _, tc := range cases {
		got, ok := FromKey(tc.key)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("FromKey(%q) = %v,%v want %v,%v", tc.key, got, ok, tc.want, tc.ok)
		}
	}
}
