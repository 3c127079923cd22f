package doctree

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"TITLE", LevelTitle},
		{"title", LevelTitle},
		{"H1", LevelH1},
		{"h2", LevelH2},
		{"H3", LevelH3},
		{"H4", LevelH3},
		{"H6", LevelH3},
		{"BODY", LevelBody},
		{"other", LevelBody},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("chapter"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLevelClamp(t *testing.T) {
	if got := Level(7).Clamp(); got != LevelH3 {
		t.Errorf("Level(7).Clamp() = %v, want H3", got)
	}
	if got := Level(-5).Clamp(); got != LevelTitle {
		t.Errorf("Level(-5).Clamp() = %v, want TITLE", got)
	}
	if got := LevelBody.Clamp(); got != LevelBody {
		t.Errorf("BODY should stay BODY, got %v", got)
	}
}

func TestLevelJSON(t *testing.T) {
	b, err := json.Marshal(LevelH2)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"H2"` {
		t.Errorf("expected \"H2\", got %s", b)
	}

	var l Level
	if err := json.Unmarshal([]byte(`"h5"`), &l); err != nil {
		t.Fatal(err)
	}
	if l != LevelH3 {
		t.Errorf("expected H3 after clamping, got %v", l)
	}
	if err := json.Unmarshal([]byte(`1`), &l); err != nil {
		t.Fatal(err)
	}
	if l != LevelH1 {
		t.Errorf("expected H1 from numeric level, got %v", l)
	}
}

func TestValidateLine(t *testing.T) {
	good := TextLine{ID: 1, Text: "Intro", FontSize: 12, BBox: BBox{0, 0, 10, 10}}
	if err := ValidateLine(good); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := []TextLine{
		{ID: 2, Text: "  ", FontSize: 12},
		{ID: 3, Text: "x", FontSize: 0},
		{ID: 4, Text: "x", FontSize: 12, Page: -1},
		{ID: 5, Text: "x", FontSize: 12, BBox: BBox{X0: 10, X1: 5}},
	}
	for _, l := range bad {
		err := ValidateLine(l)
		var ce *ContractError
		if !errors.As(err, &ce) {
			t.Errorf("line %d: expected ContractError, got %v", l.ID, err)
			continue
		}
		if ce.LineID != l.ID {
			t.Errorf("expected line id %d, got %d", l.ID, ce.LineID)
		}
	}
}

func TestTextLineBefore(t *testing.T) {
	a := TextLine{ID: 0, Page: 0, BBox: BBox{Y0: 100}}
	b := TextLine{ID: 1, Page: 0, BBox: BBox{Y0: 50}}
	c := TextLine{ID: 2, Page: 1, BBox: BBox{Y0: 10}}
	if !b.Before(a) {
		t.Error("higher line should come first on the same page")
	}
	if !a.Before(c) {
		t.Error("earlier page should come first")
	}
}

func TestExportEncode(t *testing.T) {
	var buf bytes.Buffer
	e := Export{Title: "R&D <Plan>"}
	if err := e.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `"outline": []`) {
		t.Errorf("expected empty outline array, got %s", out)
	}
	if !strings.Contains(out, "R&D <Plan>") {
		t.Errorf("expected unescaped title, got %s", out)
	}
	if !strings.HasPrefix(out, "{\n    \"title\"") {
		t.Errorf("expected 4-space indent, got %q", out)
	}
}
