package quiz

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentences this short are headings or fragments, not evidence.
const minSentenceLen = 11

var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"sr": true, "jr": true, "st": true, "mt": true, "vs": true,
	"u.s": true, "u.k": true, "e.g": true, "i.e": true,
	"c": true, "ca": true, "approx": true, "inc": true, "ltd": true,
}

type sentence struct {
	text   string
	offset int
}

// splitSentences breaks text on sentence-ending punctuation followed by
// whitespace, and on newlines. Each sentence is an exact slice of text.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0

	emit := func(end int) {
		raw := text[start:end]
		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
		offset := start + len(raw) - len(trimmed)
		trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
		if len(trimmed) >= minSentenceLen {
			out = append(out, sentence{text: trimmed, offset: offset})
		}
		start = end
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		end := i + size
		switch {
		case r == '\n':
			emit(end)
		case r == '.' || r == '!' || r == '?':
			next, _ := utf8.DecodeRuneInString(text[end:])
			atBoundary := end == len(text) || unicode.IsSpace(next)
			if atBoundary && !(r == '.' && endsWithAbbreviation(text[start:i])) {
				emit(end)
			}
		}
		i = end
	}
	if start < len(text) {
		emit(len(text))
	}
	return out
}

func endsWithAbbreviation(s string) bool {
	word := s
	if i := strings.LastIndexFunc(s, unicode.IsSpace); i >= 0 {
		word = s[i+1:]
	}
	word = strings.TrimLeft(word, "(\"'")
	return abbreviations[strings.ToLower(word)]
}

// containsAnswer matches the answer case-insensitively, or for multi-word
// answers requires every word longer than two letters to appear.
func containsAnswer(sentence, answer string) bool {
	s := strings.ToLower(sentence)
	a := strings.ToLower(strings.TrimSpace(answer))
	if a == "" {
		return false
	}
	if strings.Contains(s, a) {
		return true
	}
	words := strings.Fields(a)
	if len(words) < 2 {
		return false
	}
	matched := 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:()\"'")
		if len(w) <= 2 {
			continue
		}
		if !strings.Contains(s, w) {
			return false
		}
		matched++
	}
	return matched > 0
}

// ExtractCitation finds the sentence of source that supports answer. When
// several sentences mention the answer the one sharing most words with the
// question wins, earliest first on ties.
func ExtractCitation(source, question, answer string) (Citation, bool) {
	sentences := splitSentences(source)
	qWords := keywords(question)

	best, bestOverlap := -1, -1
	for i, s := range sentences {
		if !containsAnswer(s.text, answer) {
			continue
		}
		overlap := 0
		lower := strings.ToLower(s.text)
		for _, w := range qWords {
			if strings.Contains(lower, w) {
				overlap++
			}
		}
		if overlap > bestOverlap {
			best, bestOverlap = i, overlap
		}
	}
	if best < 0 {
		return Citation{}, false
	}
	return Citation{
		Sentence:      sentences[best].text,
		SentenceIndex: best,
		Offset:        sentences[best].offset,
	}, true
}

var stopWords = map[string]bool{
	"what": true, "which": true, "when": true, "where": true, "who": true,
	"whom": true, "whose": true, "does": true, "did": true, "that": true,
	"this": true, "with": true, "from": true, "into": true, "according": true,
	"the": true, "was": true, "were": true, "have": true, "has": true,
}

func keywords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if len(w) > 3 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}
