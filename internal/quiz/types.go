// Package quiz turns a Wikipedia article into a validated multiple-choice
// round by chaining LLM agents.
package quiz

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"wikiquiz/internal/wiki"
)

var (
	ErrInvalidQuestion  = errors.New("invalid question")
	ErrValidationFailed = errors.New("question failed validation")
)

// NumOptions is the number of answer choices in every question.
const NumOptions = 4

type Question struct {
	Text         string             `json:"question"`
	Options      [NumOptions]string `json:"options"`
	CorrectIndex int                `json:"correctIndex"`
	Explanation  string             `json:"explanation"`
}

// Validate checks that the question has text, four distinct non-empty
// options and a correct index pointing at one of them. Distinct options
// guarantee exactly one of them is the correct answer.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}
	seen := make(map[string]bool, NumOptions)
	for i, opt := range q.Options {
		key := strings.ToLower(strings.TrimSpace(opt))
		if key == "" {
			return fmt.Errorf("%w: option %d is empty", ErrInvalidQuestion, i)
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate option %q", ErrInvalidQuestion, opt)
		}
		seen[key] = true
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= NumOptions {
		return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
	}
	return nil
}

func (q Question) CorrectAnswer() string {
	return q.Options[q.CorrectIndex]
}

// PublicQuestion is what the player sees before answering.
type PublicQuestion struct {
	Text    string             `json:"question"`
	Options [NumOptions]string `json:"options"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{Text: q.Text, Options: q.Options}
}

type ValidationResult struct {
	Valid      bool    `json:"valid"`
	Confidence float64 `json:"confidence"`
	Issues     string  `json:"issues,omitempty"`
	Correction string  `json:"correction,omitempty"`
}

// Passes reports whether the auditor accepted the question with enough
// confidence.
func (v ValidationResult) Passes(threshold float64) bool {
	return v.Valid && v.Confidence >= threshold
}

// Citation is a sentence copied verbatim from the round's source text.
// Offset is its byte position in that text.
type Citation struct {
	Sentence      string `json:"sentence"`
	SectionTitle  string `json:"sectionTitle"`
	SectionURL    string `json:"sectionUrl"`
	SentenceIndex int    `json:"sentenceIndex"`
	Offset        int    `json:"offset"`
}

type LinkScore struct {
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

type SectionPick struct {
	Indices   []int  `json:"indices"`
	Reasoning string `json:"reasoning"`
	Heuristic bool   `json:"heuristic,omitempty"`
}

type DebugLog struct {
	Agent     string    `json:"agent"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Reasoning string    `json:"reasoning"`
	Timestamp time.Time `json:"timestamp"`
}

// Round is one fully prepared question with its evidence and onward links.
type Round struct {
	ID                 string           `json:"id"`
	PageTitle          string           `json:"pageTitle"`
	PageURL            string           `json:"pageUrl"`
	Sections           []wiki.Section   `json:"sections"`
	Question           Question         `json:"question"`
	Validation         ValidationResult `json:"validation"`
	Citation           *Citation        `json:"citation,omitempty"`
	Links              []LinkScore      `json:"links"`
	CorrectionAttempts int              `json:"correctionAttempts"`
	DebugLogs          []DebugLog       `json:"debugLogs,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
}

// SourceText is the combined text the question was generated from.
func (r *Round) SourceText() string {
	return combineSections(r.Sections)
}

// HasLink reports whether title is one of the round's scored links and
// returns its canonical spelling.
func (r *Round) HasLink(title string) (string, bool) {
	for _, l := range r.Links {
		if strings.EqualFold(l.Title, strings.TrimSpace(title)) {
			return l.Title, true
		}
	}
	return "", false
}

// Stage names a step of the round pipeline, reported to observers.
type Stage string

const (
	StageFetch    Stage = "fetch"
	StageSections Stage = "sections"
	StageQuestion Stage = "question"
	StageAudit    Stage = "audit"
	StageCitation Stage = "citation"
	StageLinks    Stage = "links"
	StageDone     Stage = "done"
)

// Observer is called as the pipeline enters each stage.
type Observer func(stage Stage)

func combineSections(sections []wiki.Section) string {
	texts := make([]string, len(sections))
	for i, s := range sections {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n\n")
}
