package archive

import (
	"strings"

	"github.com/klauspost/compress/flate"
)

// Level is a deflate compression level.
type Level int

const (
	LevelLow    Level = flate.BestSpeed
	LevelMedium Level = 5
	LevelHigh   Level = flate.BestCompression
)

// ParseLevel maps the user-facing names to deflate levels. Anything it does
// not recognise is treated as medium.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow
	case "high":
		return LevelHigh
	default:
		return LevelMedium
	}
}

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelHigh:
		return "high"
	case LevelMedium:
		return "medium"
	default:
		return "custom"
	}
}
