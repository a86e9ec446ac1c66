// Package assets embeds files shipped inside the server binary.
package assets

import (
	"embed"
)

//go:embed snake.yaml
var FS embed.FS

// DefaultConfig returns the embedded default configuration (YAML).
func DefaultConfig() ([]byte, error) {
	return FS.ReadFile("snake.yaml")
}
