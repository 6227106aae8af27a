package quiz

import (
	"fmt"
	"strings"

	"wikiquiz/internal/wiki"
)

const sectionPickerSystem = `You select source material for a trivia game.
You receive the numbered sections of one Wikipedia article. Choose the sections
that are densest in concrete, checkable facts: names, dates, numbers, places,
records, causes. Avoid sections that are vague, opinion-based or mostly lists of
links.

Respond with JSON only:
{"indices": [<section numbers>], "reasoning": "<one or two sentences>"}`

const quizMakerSystem = `You write one multiple-choice trivia question from the source text.
Rules:
- The answer must be stated explicitly in the source text. Do not rely on outside knowledge.
- Exactly four options. Exactly one is correct. The three distractors must be plausible
  but clearly wrong according to the source.
- Prefer a specific, surprising detail over the article's main topic.
- Keep the correct answer short and phrased as it appears in the text.

Respond with JSON only:
{"question": "...", "options": ["...", "...", "...", "..."], "correct_index": <0-3>, "explanation": "..."}`

const auditorSystem = `You are the Auditor. You check a trivia question against its source text.
A question is valid only if:
- the marked correct answer is directly supported by the source text,
- none of the other options is also correct according to the source,
- the question is unambiguous and answerable from the source alone.

Report your confidence between 0.0 and 1.0. When the question is not valid,
explain the issues and give a correction note telling the question writer
exactly what to change.

Respond with JSON only:
{"is_valid": true|false, "confidence": <0.0-1.0>, "issues": "...", "correction_note": "..."}`

const relevanceSystem = `You recommend where a trivia player should go next.
You receive the question just asked and the titles of articles linked from the
current page. Score each title from 0.0 to 1.0 by how interesting and related a
follow-up round on that article would be. Only use titles from the list.

Respond with JSON only, highest scores first:
[{"link_title": "...", "relevance_score": <0.0-1.0>, "reason": "..."}]`

const sectionPreviewChars = 600

func sectionPickerPrompt(page *wiki.Page, max int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article: %s\nChoose up to %d sections.\n\n", page.Title, max)
	for i, s := range page.Sections {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i, s.Title, preview(s.Text, sectionPreviewChars))
	}
	return b.String()
}

func quizMakerPrompt(source, correction string) string {
	var b strings.Builder
	b.WriteString("Source text:\n\"\"\"\n")
	b.WriteString(source)
	b.WriteString("\n\"\"\"\n")
	if correction != "" {
		b.WriteString("\nYour previous question was rejected. Apply this correction:\n")
		b.WriteString(correction)
		b.WriteString("\n")
	}
	return b.String()
}

func auditorPrompt(q Question, source string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "Option %d: %s\n", i, opt)
	}
	fmt.Fprintf(&b, "Marked correct answer: %s\n\nSource text:\n\"\"\"\n%s\n\"\"\"\n", q.CorrectAnswer(), source)
	return b.String()
}

func relevancePrompt(q Question, links []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\nLinked articles:\n", q.Text, q.CorrectAnswer())
	for _, l := range links {
		b.WriteString("- " + l + "\n")
	}
	return b.String()
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
