package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Level is a heading depth. Lower values are shallower.
type Level int

const (
	LevelBody  Level = -1
	LevelTitle Level = 0
	LevelH1    Level = 1
	LevelH2    Level = 2
	LevelH3    Level = 3

	// MaxDepth is the deepest level the outline carries.
	MaxDepth = LevelH3
)

func (l Level) String() string {
	switch {
	case l == LevelTitle:
		return "TITLE"
	case l >= LevelH1:
		return fmt.Sprintf("H%d", int(l))
	default:
		return "BODY"
	}
}

// IsHeading reports whether l is TITLE or H1..H3 (or deeper before clamping).
func (l Level) IsHeading() bool { return l >= LevelTitle }

// Clamp maps out-of-range heading levels to the nearest valid one. BODY is
// returned unchanged.
func (l Level) Clamp() Level {
	switch {
	case l == LevelBody:
		return l
	case l < LevelTitle:
		return LevelTitle
	case l > MaxDepth:
		return MaxDepth
	}
	return l
}

// ParseLevel accepts TITLE, H1..H6, BODY or OTHER in any case. Levels deeper
// than H3 are clamped.
func ParseLevel(s string) (Level, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch v {
	case "TITLE":
		return LevelTitle, nil
	case "BODY", "OTHER", "TEXT", "":
		return LevelBody, nil
	}
	if len(v) == 2 && v[0] == 'H' && v[1] >= '1' && v[1] <= '9' {
		return Level(v[1] - '0').Clamp(), nil
	}
	return LevelBody, fmt.Errorf("unknown level %q", s)
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Level) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		var n int
		if err2 := json.Unmarshal(b, &n); err2 != nil {
			return fmt.Errorf("level: %w", err)
		}
		*l = Level(n).Clamp()
		return nil
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// HeadingCandidate is a line the classifier believes is a heading.
type HeadingCandidate struct {
	Line       TextLine `json:"line"`
	Level      Level    `json:"level"`
	Confidence float64  `json:"confidence"`
}
