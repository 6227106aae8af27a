package quiz

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"wikiquiz/internal/wiki"
)

// Sections shorter than this rarely hold a full question's worth of facts.
const minDenseWords = 25

// RankByDensity picks up to max sections ordered by fact density: digits,
// capitalised words past the first of a sentence and four-digit years, per
// word. Used when the section picker agent is unavailable.
func RankByDensity(sections []wiki.Section, max int) SectionPick {
	type scored struct {
		index int
		score float64
	}
	var candidates []scored
	for i, s := range sections {
		words := strings.Fields(s.Text)
		if len(words) < minDenseWords && len(sections) > 1 {
			continue
		}
		candidates = append(candidates, scored{index: i, score: densityScore(words)})
	}
	if len(candidates) == 0 {
		for i, s := range sections {
			candidates = append(candidates, scored{index: i, score: densityScore(strings.Fields(s.Text))})
		}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})
	if max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}

	pick := SectionPick{Heuristic: true}
	var names []string
	for _, c := range candidates {
		pick.Indices = append(pick.Indices, c.index)
		names = append(names, fmt.Sprintf("%s (%.2f)", sections[c.index].Title, c.score))
	}
	sort.Ints(pick.Indices)
	pick.Reasoning = "fact density: " + strings.Join(names, ", ")
	return pick
}

func densityScore(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	var hits float64
	sentenceStart := true
	for _, w := range words {
		trimmed := strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		switch {
		case trimmed == "":
		case isYear(trimmed):
			hits += 2
		case strings.IndexFunc(trimmed, unicode.IsDigit) >= 0:
			hits += 1.5
		case !sentenceStart && unicode.IsUpper([]rune(trimmed)[0]):
			hits++
		}
		sentenceStart = strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?")
	}
	return hits / float64(len(words))
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s[0] == '1' || s[0] == '2'
}
