package layout

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config groups every tunable of the rule engine. All size thresholds are
// ratios to the document's body font size, never absolute points.
type Config struct {
	Normalize NormalizeConfig `yaml:"normalize"`
	Baseline  BaselineConfig  `yaml:"baseline"`
	Rules     RuleConfig      `yaml:"rules"`
}

// NormalizeConfig controls line cleanup before scoring.
type NormalizeConfig struct {
	Strict          bool    `yaml:"strict"`
	DefaultFontSize float64 `yaml:"default_font_size"`
	MergeTolerance  float64 `yaml:"merge_tolerance"` // vertical centre distance, in font sizes
	MergeMaxGap     float64 `yaml:"merge_max_gap"`   // horizontal gap, in font sizes
	DropRunning     bool    `yaml:"drop_running"`
	RunningBand     float64 `yaml:"running_band"` // fraction of the page extent
}

// BaselineConfig controls body font and gap estimation.
type BaselineConfig struct {
	MinBodyChars int     `yaml:"min_body_chars"`
	Bucket       float64 `yaml:"bucket"`
	DefaultBody  float64 `yaml:"default_body"`
	DefaultGap   float64 `yaml:"default_gap"`
}

// RuleConfig holds the weighted cascade used by Classifier.
type RuleConfig struct {
	HeadingThreshold float64 `yaml:"heading_threshold"`
	MaxWords         int     `yaml:"max_words"`
	MaxChars         int     `yaml:"max_chars"`

	RatioLarge   float64 `yaml:"ratio_large"`
	RatioMedium  float64 `yaml:"ratio_medium"`
	RatioSmall   float64 `yaml:"ratio_small"`
	PointsLarge  float64 `yaml:"points_large"`
	PointsMedium float64 `yaml:"points_medium"`
	PointsSmall  float64 `yaml:"points_small"`

	BoldPoints        float64 `yaml:"bold_points"`
	CapsPoints        float64 `yaml:"caps_points"`
	EnumPoints        float64 `yaml:"enum_points"`
	OCREnumPoints     float64 `yaml:"ocr_enum_points"`
	KeywordPoints     float64 `yaml:"keyword_points"`
	BrevityWords      int     `yaml:"brevity_words"`
	BrevityPoints     float64 `yaml:"brevity_points"`
	NoTerminalPoints  float64 `yaml:"no_terminal_points"`
	SpaceBeforeRatio  float64 `yaml:"space_before_ratio"`
	SpaceBeforePoints float64 `yaml:"space_before_points"`
	ConfidenceScale   float64 `yaml:"confidence_scale"`

	H1Center      float64 `yaml:"h1_center"`
	H2Center      float64 `yaml:"h2_center"`
	H3Center      float64 `yaml:"h3_center"`
	SizeWidth     float64 `yaml:"size_width"`
	SizeWeight    float64 `yaml:"size_weight"`
	EnumWeight    float64 `yaml:"enum_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
	IndentWeight  float64 `yaml:"indent_weight"`
	SpaceWeight   float64 `yaml:"space_weight"`
	TieEpsilon    float64 `yaml:"tie_epsilon"`

	TitleMaxPage  int     `yaml:"title_max_page"`
	TitleMinRatio float64 `yaml:"title_min_ratio"`
	TitleMaxWords int     `yaml:"title_max_words"`
}

// DefaultConfig returns the built-in weights.
func DefaultConfig() Config {
	return Config{
		Normalize: NormalizeConfig{
			DefaultFontSize: 12,
			MergeTolerance:  0.5,
			MergeMaxGap:     1.5,
			DropRunning:     true,
			RunningBand:     0.08,
		},
		Baseline: BaselineConfig{
			MinBodyChars: 20,
			Bucket:       0.5,
			DefaultBody:  12,
			DefaultGap:   2.4,
		},
		Rules: RuleConfig{
			HeadingThreshold: 5,
			MaxWords:         25,
			MaxChars:         200,

			RatioLarge:   1.8,
			RatioMedium:  1.3,
			RatioSmall:   1.1,
			PointsLarge:  5,
			PointsMedium: 3,
			PointsSmall:  2,

			BoldPoints:        3,
			CapsPoints:        2,
			EnumPoints:        5,
			OCREnumPoints:     4,
			KeywordPoints:     3,
			BrevityWords:      10,
			BrevityPoints:     1,
			NoTerminalPoints:  1,
			SpaceBeforeRatio:  1.5,
			SpaceBeforePoints: 1,
			ConfidenceScale:   18,

			H1Center:      1.7,
			H2Center:      1.3,
			H3Center:      1.05,
			SizeWidth:     0.3,
			SizeWeight:    1.0,
			EnumWeight:    0.6,
			KeywordWeight: 0.4,
			IndentWeight:  0.1,
			SpaceWeight:   0.1,
			TieEpsilon:    0.05,

			TitleMaxPage:  0,
			TitleMinRatio: 1.4,
			TitleMaxWords: 20,
		},
	}
}

// LoadConfig reads a YAML rules file on top of the defaults. Keys missing
// from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("rules file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects settings that would make the cascade degenerate.
func (c Config) Validate() error {
	r := c.Rules
	if r.HeadingThreshold <= 0 {
		return fmt.Errorf("heading_threshold must be positive")
	}
	if !(r.RatioLarge > r.RatioMedium && r.RatioMedium > r.RatioSmall && r.RatioSmall > 0) {
		return fmt.Errorf("size ratios must satisfy large > medium > small > 0")
	}
	if r.SizeWidth <= 0 {
		return fmt.Errorf("size_width must be positive")
	}
	if r.ConfidenceScale <= 0 {
		return fmt.Errorf("confidence_scale must be positive")
	}
	if c.Baseline.DefaultBody <= 0 || c.Baseline.DefaultGap <= 0 {
		return fmt.Errorf("baseline defaults must be positive")
	}
	return nil
}
