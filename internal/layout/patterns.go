package layout

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/dgallion1/docoutline/internal/doctree"
)

// Keyword ranks.
const (
	rankGeneric = 0
	rankChapter = 1
	rankSection = 2
)

// headingWords maps case-folded leading words to a rank. Entries are folded
// with cases.Fold at init so lookups compare folded forms on both sides.
var headingWords = map[string]int{}

var rawHeadingWords = map[int][]string{
	rankChapter: {
		"chapter", "part", "book", "appendix", "annex",
		"chapitre", "partie", "annexe",
		"kapitel", "teil", "anhang",
		"capítulo", "capitulo", "parte", "apéndice", "apendice", "anexo",
		"capitolo", "appendice",
		"hoofdstuk", "deel", "bijlage",
		"глава", "часть", "приложение",
		"κεφάλαιο", "μέρος", "παράρτημα",
		"الفصل", "الباب",
		"अध्याय",
	},
	rankSection: {
		"section", "article", "lesson", "unit", "module",
		"abschnitt", "artikel",
		"sección", "seccion", "artículo", "articulo", "seção", "secao",
		"sezione", "articolo",
		"sectie",
		"раздел", "статья",
		"ενότητα", "άρθρο",
		"القسم", "المادة",
		"खंड", "भाग",
	},
	rankGeneric: {
		"introduction", "conclusion", "conclusions", "summary", "abstract", "preface",
		"foreword", "overview", "background", "references", "bibliography",
		"acknowledgements", "acknowledgments", "contents", "index", "glossary",
		"prologue", "epilogue", "methodology", "discussion", "results",
		"résumé", "sommaire", "avant-propos", "bibliographie",
		"einleitung", "zusammenfassung", "fazit", "inhalt", "vorwort", "literatur",
		"introducción", "conclusión", "conclusiones", "resumen", "índice",
		"introdução", "conclusão", "resumo", "sumário",
		"introduzione", "conclusione", "conclusioni", "sommario", "premessa",
		"inleiding", "conclusie", "samenvatting", "inhoud",
		"введение", "заключение", "аннотация", "содержание", "литература",
		"εισαγωγή", "συμπεράσματα", "περίληψη", "περιεχόμενα",
		"مقدمة", "خاتمة", "ملخص", "المراجع",
		"परिचय", "निष्कर्ष", "सारांश", "प्रस्तावना",
	},
}

// Scripts without spaces are matched by prefix instead of first word.
var cjkHeadingPrefixes = []struct {
	prefix string
	rank   int
}{
	{"はじめに", rankGeneric},
	{"おわりに", rankGeneric},
	{"序論", rankGeneric},
	{"結論", rankGeneric},
	{"概要", rankGeneric},
	{"参考文献", rankGeneric},
	{"目次", rankGeneric},
	{"引言", rankGeneric},
	{"前言", rankGeneric},
	{"结论", rankGeneric},
	{"摘要", rankGeneric},
	{"附录", rankChapter},
	{"附錄", rankChapter},
	{"付録", rankChapter},
	{"서론", rankGeneric},
	{"결론", rankGeneric},
	{"요약", rankGeneric},
	{"부록", rankChapter},
}

var (
	cjkOrdinalChapter = regexp.MustCompile(`^第\s*[0-9一二三四五六七八九十百千〇零两]+\s*[章部编編篇卷]`)
	cjkOrdinalSection = regexp.MustCompile(`^第\s*[0-9一二三四五六七八九十百千〇零两]+\s*[節节条條款]`)
	koOrdinalChapter  = regexp.MustCompile(`^제\s*[0-9]+\s*[장부편]`)
	koOrdinalSection  = regexp.MustCompile(`^제\s*[0-9]+\s*[절조]`)
	romanNumeral      = regexp.MustCompile(`^(XXX|XX|X)?(IX|IV|V?I{0,3})$`)
)

func init() {
	fold := cases.Fold()
	for rank, words := range rawHeadingWords {
		for _, w := range words {
			headingWords[fold.String(w)] = rank
		}
	}
}

// DetectPattern finds structural cues in a line's text. OCR lines get a
// relaxed enumerator grammar.
func DetectPattern(text string, ocr bool) doctree.PatternCues {
	var p doctree.PatternCues

	if depth, ok := parseEnumerator(text, ocr); ok {
		p.Enumerated = true
		p.EnumDepth = depth
	}
	if rank, ok := matchKeyword(text); ok {
		p.Keyword = true
		p.KeywordRank = rank
	}

	upper, cased, letters := 0, 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		switch {
		case unicode.IsUpper(r) || unicode.IsTitle(r):
			upper++
			cased++
		case unicode.IsLower(r):
			cased++
		}
	}
	if cased > 0 {
		p.CapsRatio = float64(upper) / float64(cased)
	}
	p.Caseless = letters > 0 && cased == 0

	words := strings.Fields(text)
	if len(words) >= 2 && cased >= 3 && p.CapsRatio >= 0.9 {
		p.AllCaps = true
	}
	p.TitleCase = isTitleCase(words)

	s := 0.0
	if p.Enumerated {
		s += 0.5
	}
	if p.Keyword {
		s += 0.3
	}
	if p.AllCaps {
		s += 0.2
	}
	if p.TitleCase {
		s += 0.1
	}
	p.Strength = min(s, 1)
	return p
}

func isTitleCase(words []string) bool {
	alpha, capped := 0, 0
	for _, w := range words {
		r, ok := firstLetter(w)
		if !ok || !(unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)) {
			continue
		}
		alpha++
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			capped++
		}
	}
	return alpha >= 2 && float64(capped) >= 0.8*float64(alpha)
}

func firstLetter(w string) (rune, bool) {
	for _, r := range w {
		if unicode.IsLetter(r) {
			return r, true
		}
		if unicode.IsDigit(r) {
			return 0, false
		}
	}
	return 0, false
}

func matchKeyword(text string) (int, bool) {
	switch {
	case cjkOrdinalChapter.MatchString(text), koOrdinalChapter.MatchString(text):
		return rankChapter, true
	case cjkOrdinalSection.MatchString(text), koOrdinalSection.MatchString(text):
		return rankSection, true
	}
	for _, k := range cjkHeadingPrefixes {
		if strings.HasPrefix(text, k.prefix) {
			return k.rank, true
		}
	}

	// Skip a leading enumerator so "2. Introduction" still matches.
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, false
	}
	word := fields[0]
	if _, ok := parseEnumerator(text, false); ok && len(fields) > 1 {
		word = fields[1]
	}
	word = strings.TrimRightFunc(word, func(r rune) bool { return unicode.IsPunct(r) })
	if word == "" {
		return 0, false
	}
	rank, ok := headingWords[cases.Fold().String(word)]
	return rank, ok
}

// parseEnumerator recognises a leading list or section marker and returns
// its nesting depth.
//
//	1 / 1. / 1) / 1.2 / 1.2.3   digits of any script, depth = group count
//	IV. / XII)                   roman numerals, depth 1
//	A. / B)                      single capital, depth 2
//	(a) / (1) / (iv)             parenthesised, depth 3
//
// In relaxed (OCR) mode ',' and ';' also separate groups, O/o read as 0 and
// l/I read as 1 inside digit groups, and the space after the marker may be
// missing.
func parseEnumerator(text string, relaxed bool) (int, bool) {
	rs := []rune(strings.TrimSpace(text))
	if len(rs) < 2 {
		return 0, false
	}

	if rs[0] == '(' {
		j := 1
		for j < len(rs) && j <= 4 && (unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
			j++
		}
		if j > 1 && j < len(rs) && rs[j] == ')' && followedByText(rs, j+1, relaxed) {
			return 3, true
		}
		return 0, false
	}

	if depth, end, ok := digitGroups(rs, relaxed); ok {
		if end < len(rs) && isTerminator(rs[end]) {
			end++
		}
		if followedByText(rs, end, relaxed) {
			return depth, true
		}
	}

	// Roman numerals and single capitals need an explicit terminator.
	j := 0
	for j < len(rs) && unicode.IsLetter(rs[j]) {
		j++
	}
	if j == 0 || j >= len(rs) || (rs[j] != '.' && rs[j] != ')') {
		return 0, false
	}
	token := string(rs[:j])
	if !followedByText(rs, j+1, relaxed) {
		return 0, false
	}
	if romanNumeral.MatchString(token) {
		return 1, true
	}
	if j == 1 && unicode.IsUpper(rs[0]) {
		return 2, true
	}
	return 0, false
}

// digitGroups scans separator-joined digit groups from the start of rs. It
// returns the group count and the index just past the last group. At least
// one real digit is required and no group may exceed three runes, so years
// and quantities are not mistaken for section numbers.
func digitGroups(rs []rune, relaxed bool) (int, int, bool) {
	groups, i, real := 0, 0, 0
	for {
		start := i
		for i < len(rs) && isGroupRune(rs, i, relaxed) {
			if unicode.IsDigit(rs[i]) {
				real++
			}
			i++
		}
		n := i - start
		if n == 0 || n > 3 {
			return 0, 0, false
		}
		groups++
		if i+1 < len(rs) && isSeparator(rs[i], relaxed) && isGroupRune(rs, i+1, relaxed) {
			i++
			continue
		}
		return groups, i, real > 0
	}
}

func isGroupRune(rs []rune, i int, relaxed bool) bool {
	if unicode.IsDigit(rs[i]) {
		return true
	}
	return relaxed && isDigitLookalike(rs[i]) && lookalikeInNumber(rs, i)
}

func isDigitLookalike(r rune) bool {
	return r == 'O' || r == 'o' || r == 'l' || r == 'I'
}

// lookalikeInNumber reports whether a misread character at rs[i] sits inside
// a number: next to a real digit, or across a separator from one. "I. Scope"
// stays a roman numeral and "Overview" stays a word.
func lookalikeInNumber(rs []rune, i int) bool {
	digitAt := func(k int) bool { return k >= 0 && k < len(rs) && unicode.IsDigit(rs[k]) }
	sepAt := func(k int) bool { return k >= 0 && k < len(rs) && isSeparator(rs[k], true) }
	if i+1 < len(rs) && unicode.IsLetter(rs[i+1]) && !isDigitLookalike(rs[i+1]) {
		return false
	}
	return digitAt(i-1) || digitAt(i+1) ||
		(sepAt(i+1) && digitAt(i+2)) ||
		(sepAt(i-1) && digitAt(i-2))
}

func isSeparator(r rune, relaxed bool) bool {
	if r == '.' {
		return true
	}
	return relaxed && (r == ',' || r == ';')
}

func isTerminator(r rune) bool {
	switch r {
	case '.', ')', ':', '、', '-':
		return true
	}
	return false
}

// followedByText reports whether rs[i:] is a space and then a letter (or, in
// relaxed mode, a letter immediately).
func followedByText(rs []rune, i int, relaxed bool) bool {
	if i >= len(rs) {
		return false
	}
	if unicode.IsSpace(rs[i]) {
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
		return i < len(rs) && (unicode.IsLetter(rs[i]) || unicode.IsPunct(rs[i]))
	}
	if relaxed && unicode.IsLetter(rs[i]) {
		return true
	}
	// CJK headings often omit the space: "1.概要"
	return unicode.In(rs[i], unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// countWords counts whitespace-separated words, treating every two
// ideographs or kana as one word for scripts written without spaces.
func countWords(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		cjk, other := 0, 0
		for _, r := range f {
			if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
				cjk++
			} else {
				other++
			}
		}
		if other > 0 {
			n++
		}
		n += (cjk + 1) / 2
	}
	return n
}
