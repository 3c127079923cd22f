package doctree

// PatternCues are the textual signals found in a line.
type PatternCues struct {
	Strength    float64 `json:"strength"` // combined, in [0,1]
	Enumerated  bool    `json:"enumerated"`
	EnumDepth   int     `json:"enum_depth,omitempty"`
	Keyword     bool    `json:"keyword"`
	KeywordRank int     `json:"keyword_rank,omitempty"` // 1 chapter-like, 2 section-like, 0 generic
	CapsRatio   float64 `json:"caps_ratio"`
	AllCaps     bool    `json:"all_caps"`
	TitleCase   bool    `json:"title_case"`
	Caseless    bool    `json:"caseless"` // script without letter case
}

// FeatureVector is the scored view of one line.
type FeatureVector struct {
	LineID       int         `json:"line_id"`
	SizeRatio    float64     `json:"size_ratio"`
	Bold         bool        `json:"bold"`
	IndentBucket int         `json:"indent_bucket"`
	SpaceBefore  float64     `json:"space_before"`
	SpaceAfter   float64     `json:"space_after"`
	Pattern      PatternCues `json:"pattern"`
	Words        int         `json:"words"`
	Chars        int         `json:"chars"`
	Terminal     bool        `json:"terminal"` // ends with sentence punctuation
	OCR          bool        `json:"ocr,omitempty"`
}
