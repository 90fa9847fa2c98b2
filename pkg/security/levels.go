package security

import (
	"fmt"
	"strings"
)

// Level is an ordered security classification for a tool.
// Higher levels require explicit human authorization before execution.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

// String returns the lowercase name of the level
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMedium:
		return "medium"
	case LevelHigh:
		return "high"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// ParseLevel parses a level name, case-insensitive
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	case "critical":
		return LevelCritical, nil
	default:
		return LevelLow, fmt.Errorf("unknown security level: %s", s)
	}
}

// MarshalJSON encodes the level as its name
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// UnmarshalJSON decodes a level from its name
func (l *Level) UnmarshalJSON(data []byte) error {
	name := strings.Trim(string(data), `"`)
	parsed, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
