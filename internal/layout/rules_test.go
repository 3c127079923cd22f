package layout

import (
	"testing"

	"github.com/dgallion1/docoutline/internal/doctree"
)

func line(id, page int, y, size float64, bold bool, text string) doctree.TextLine {
	return doctree.TextLine{
		ID:       id,
		Text:     text,
		Page:     page,
		FontSize: size,
		Bold:     bold,
		BBox:     doctree.BBox{X0: 72, Y0: y, X1: 400, Y1: y + size},
		Source:   doctree.SourceNative,
	}
}

func classifyAll(t *testing.T, lines []doctree.TextLine, stats doctree.DocumentStatistics) ([]doctree.FeatureVector, []Decision) {
	t.Helper()
	c := NewClassifier(DefaultConfig().Rules)
	fvs := ScorePage(lines, stats)
	ds := make([]Decision, len(fvs))
	for i, fv := range fvs {
		ds[i] = c.Classify(fv)
	}
	c.ResolveTitle(lines, fvs, ds)
	return fvs, ds
}

func TestClassifyRoundTrip(t *testing.T) {
	stats := doctree.DocumentStatistics{PageCount: 1, BodyFontSize: 11, LineGap: 3}
	lines := []doctree.TextLine{
		line(0, 0, 100, 18, true, "1. Introduction"),
		line(1, 0, 130, 14, true, "1.1 Background"),
		line(2, 0, 150, 11, false, "This paragraph explains the background of the study in detail."),
	}
	_, ds := classifyAll(t, lines, stats)

	want := []doctree.Level{doctree.LevelH1, doctree.LevelH2, doctree.LevelBody}
	for i, w := range want {
		if ds[i].Level != w {
			t.Errorf("line %q: got %v, want %v", lines[i].Text, ds[i].Level, w)
		}
	}
	if ds[0].Confidence <= 0 || ds[0].Confidence > 1 {
		t.Errorf("confidence out of range: %.2f", ds[0].Confidence)
	}
}

func TestClassifyBodyLines(t *testing.T) {
	c := NewClassifier(DefaultConfig().Rules)
	tests := []struct {
		name string
		fv   doctree.FeatureVector
	}{
		{"plain sentence", doctree.FeatureVector{SizeRatio: 1, Words: 12, Terminal: true}},
		{"short but no signal", doctree.FeatureVector{SizeRatio: 1, Words: 3}},
		{"too long", doctree.FeatureVector{SizeRatio: 2, Bold: true, Words: 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := c.Classify(tt.fv); d.Level != doctree.LevelBody {
				t.Errorf("expected BODY, got %v (score %.1f)", d.Level, d.Score)
			}
		})
	}
}

func TestClassifyThresholdsAreRelative(t *testing.T) {
	// The same proportions must give the same level at any absolute size.
	for _, body := range []float64{8, 11, 24} {
		stats := doctree.DocumentStatistics{PageCount: 1, BodyFontSize: body, LineGap: body * 0.2}
		lines := []doctree.TextLine{
			line(0, 1, 100, body*1.3, true, "Methods"),
			line(1, 1, 100+body*3, body, false, "Body text that goes on for a while and ends properly."),
		}
		_, ds := classifyAll(t, lines, stats)
		if ds[0].Level != doctree.LevelH2 {
			t.Errorf("body %.0f: expected H2, got %v", body, ds[0].Level)
		}
	}
}

func TestPickLevelPrefersShallowerOnTie(t *testing.T) {
	rc := DefaultConfig().Rules
	c := NewClassifier(rc)
	// Halfway between the H1 and H2 centres gives equal size affinity.
	fv := doctree.FeatureVector{
		SizeRatio:    (rc.H1Center + rc.H2Center) / 2,
		Bold:         true,
		IndentBucket: 5,
		Words:        2,
	}
	aff := c.Affinities(fv)
	if d := aff[0] - aff[1]; d > rc.TieEpsilon || d < -rc.TieEpsilon {
		t.Fatalf("test setup: expected a near tie, got %v", aff)
	}
	if got := c.Classify(fv).Level; got != doctree.LevelH1 {
		t.Errorf("expected shallower H1 on tie, got %v", got)
	}
}

func TestLargeHeadingsStayShallow(t *testing.T) {
	c := NewClassifier(DefaultConfig().Rules)
	tests := []struct {
		ratio  float64
		indent int
		want   doctree.Level
	}{
		{1.7, 0, doctree.LevelH1},
		{2.2, 2, doctree.LevelH1},
		{2.5, 1, doctree.LevelH1},
		{3.0, 2, doctree.LevelH1},
		{1.3, 2, doctree.LevelH2},
	}
	for _, tt := range tests {
		fv := doctree.FeatureVector{SizeRatio: tt.ratio, Bold: true, Words: 2, IndentBucket: tt.indent, SpaceBefore: 1}
		if got := c.Classify(fv).Level; got != tt.want {
			t.Errorf("ratio %.1f indent %d: got %v, want %v", tt.ratio, tt.indent, got, tt.want)
		}
	}

	// A larger heading never nests deeper than a smaller one.
	prev := doctree.LevelH3
	for _, ratio := range []float64{1.1, 1.3, 1.5, 1.7, 2.0, 2.4, 3.0, 4.0} {
		got := c.Classify(doctree.FeatureVector{SizeRatio: ratio, Bold: true, Words: 2, IndentBucket: 2}).Level
		if got > prev {
			t.Errorf("ratio %.1f: level %v deeper than smaller size's %v", ratio, got, prev)
		}
		prev = got
	}
}

func TestEnumeratorDepthDrivesLevel(t *testing.T) {
	stats := doctree.DocumentStatistics{PageCount: 1, BodyFontSize: 11, LineGap: 3}
	lines := []doctree.TextLine{
		line(0, 1, 100, 11, true, "2.1.4 Calibration procedure"),
	}
	_, ds := classifyAll(t, lines, stats)
	if ds[0].Level != doctree.LevelH3 {
		t.Errorf("expected H3 for depth-3 enumerator at body size, got %v", ds[0].Level)
	}
}

func TestResolveTitle(t *testing.T) {
	stats := doctree.DocumentStatistics{PageCount: 2, BodyFontSize: 10, LineGap: 2}
	lines := []doctree.TextLine{
		line(0, 0, 50, 24, true, "Annual Report"),
		line(1, 0, 100, 16, true, "Overview"),
		line(2, 0, 130, 10, false, "The year was defined by steady growth across all regions we serve."),
	}
	_, ds := classifyAll(t, lines, stats)
	if ds[0].Level != doctree.LevelTitle {
		t.Errorf("expected TITLE, got %v", ds[0].Level)
	}
	if ds[1].Level == doctree.LevelTitle {
		t.Error("only one line may be TITLE")
	}
}

func TestResolveTitleTieFirstWins(t *testing.T) {
	stats := doctree.DocumentStatistics{PageCount: 1, BodyFontSize: 10, LineGap: 2}
	lines := []doctree.TextLine{
		line(0, 0, 50, 22, true, "Project Atlas"),
		line(1, 0, 90, 22, true, "Design Notes"),
		line(2, 0, 130, 10, false, "Body text follows the two headline lines in this sample."),
	}
	_, ds := classifyAll(t, lines, stats)
	if ds[0].Level != doctree.LevelTitle {
		t.Errorf("first tied line: got %v, want TITLE", ds[0].Level)
	}
	if ds[1].Level != doctree.LevelH1 {
		t.Errorf("second tied line: got %v, want H1", ds[1].Level)
	}
}

func TestResolveTitleIgnoresLaterPages(t *testing.T) {
	stats := doctree.DocumentStatistics{PageCount: 3, BodyFontSize: 10, LineGap: 2}
	lines := []doctree.TextLine{
		line(0, 2, 50, 24, true, "Late Banner"),
	}
	_, ds := classifyAll(t, lines, stats)
	if ds[0].Level == doctree.LevelTitle {
		t.Error("a heading on page 3 must not become the title")
	}
}

func TestCandidatesDedup(t *testing.T) {
	lines := []doctree.TextLine{
		line(0, 0, 10, 24, true, "Field Guide"),
		line(1, 0, 40, 18, true, "FIELD GUIDE"),
		line(2, 0, 80, 16, true, "Birds"),
		line(3, 1, 10, 16, true, "birds"),
		line(4, 1, 40, 10, false, "body"),
		line(5, 1, 60, 16, true, "Mammals"),
	}
	ds := []Decision{
		{Level: doctree.LevelTitle},
		{Level: doctree.LevelH1},
		{Level: doctree.LevelH1},
		{Level: doctree.LevelH1},
		{Level: doctree.LevelBody},
		{Level: doctree.LevelH1},
	}
	got := Candidates(lines, ds)
	var texts []string
	for _, c := range got {
		texts = append(texts, c.Line.Text)
	}
	want := []string{"Field Guide", "Birds", "Mammals"}
	if len(texts) != len(want) {
		t.Fatalf("got %v, want %v", texts, want)
	}
	for i := range want {
		if texts[i] != want[i] {
			t.Errorf("candidate %d: got %q, want %q", i, texts[i], want[i])
		}
	}
}

func TestLoadConfigDefaultsAndOverride(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.HeadingThreshold != 5 {
		t.Errorf("expected default threshold 5, got %v", cfg.Rules.HeadingThreshold)
	}

	path := t.TempDir() + "/rules.yaml"
	if err := writeFile(path, "rules:\n  heading_threshold: 7\n  title_min_ratio: 1.6\n"); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Rules.HeadingThreshold != 7 || cfg.Rules.TitleMinRatio != 1.6 {
		t.Errorf("override not applied: %+v", cfg.Rules)
	}
	if cfg.Rules.BoldPoints != 3 {
		t.Errorf("unset key should keep default, got %v", cfg.Rules.BoldPoints)
	}

	bad := t.TempDir() + "/bad.yaml"
	if err := writeFile(bad, "rules:\n  ratio_small: 2.5\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected validation error for inverted ratios")
	}
}
