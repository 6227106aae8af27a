package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wikiquiz/internal/llm"
	"wikiquiz/internal/wiki"
)

var errNoSections = errors.New("section picker chose no usable sections")

// SectionPicker asks the model which sections carry the most facts.
type SectionPicker struct {
	client llm.Client
	max    int
}

func NewSectionPicker(client llm.Client, max int) *SectionPicker {
	if max < 1 {
		max = 1
	}
	return &SectionPicker{client: client, max: max}
}

func (a *SectionPicker) Pick(ctx context.Context, page *wiki.Page) (SectionPick, error) {
	raw, err := a.client.Generate(ctx, llm.Prompt{
		System: sectionPickerSystem,
		User:   sectionPickerPrompt(page, a.max),
		JSON:   true,
	})
	if err != nil {
		return SectionPick{}, fmt.Errorf("section picker: %w", err)
	}

	var pick SectionPick
	if err := llm.DecodeJSON(raw, &pick); err != nil {
		return SectionPick{}, fmt.Errorf("section picker: %w", err)
	}

	seen := make(map[int]bool)
	indices := pick.Indices[:0]
	for _, i := range pick.Indices {
		if i < 0 || i >= len(page.Sections) || seen[i] {
			continue
		}
		seen[i] = true
		indices = append(indices, i)
		if len(indices) == a.max {
			break
		}
	}
	if len(indices) == 0 {
		return SectionPick{}, errNoSections
	}
	pick.Indices = indices
	return pick, nil
}

// QuizMaker writes a question from source text.
type QuizMaker struct {
	client llm.Client
}

func NewQuizMaker(client llm.Client) *QuizMaker {
	return &QuizMaker{client: client}
}

type questionPayload struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex *int     `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

// Generate returns a structurally valid question or an error wrapping
// ErrInvalidQuestion. correction, when set, is the auditor's note on the
// previous attempt.
func (a *QuizMaker) Generate(ctx context.Context, source, correction string) (Question, error) {
	raw, err := a.client.Generate(ctx, llm.Prompt{
		System: quizMakerSystem,
		User:   quizMakerPrompt(source, correction),
		JSON:   true,
	})
	if err != nil {
		return Question{}, fmt.Errorf("quiz maker: %w", err)
	}

	var p questionPayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return Question{}, fmt.Errorf("%w: %v", ErrInvalidQuestion, err)
	}
	if len(p.Options) != NumOptions {
		return Question{}, fmt.Errorf("%w: got %d options", ErrInvalidQuestion, len(p.Options))
	}
	if p.CorrectIndex == nil {
		return Question{}, fmt.Errorf("%w: missing correct index", ErrInvalidQuestion)
	}

	q := Question{
		Text:         strings.TrimSpace(p.Question),
		CorrectIndex: *p.CorrectIndex,
		Explanation:  strings.TrimSpace(p.Explanation),
	}
	for i, opt := range p.Options {
		q.Options[i] = strings.TrimSpace(opt)
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Auditor checks a question against its source, usually on a stronger model.
type Auditor struct {
	client llm.Client
	model  string
}

func NewAuditor(client llm.Client, model string) *Auditor {
	return &Auditor{client: client, model: model}
}

type validationPayload struct {
	IsValid        bool    `json:"is_valid"`
	Confidence     float64 `json:"confidence"`
	Issues         string  `json:"issues"`
	CorrectionNote string  `json:"correction_note"`
}

func (a *Auditor) Audit(ctx context.Context, q Question, source string) (ValidationResult, error) {
	raw, err := a.client.Generate(ctx, llm.Prompt{
		System: auditorSystem,
		User:   auditorPrompt(q, source),
		Model:  a.model,
		JSON:   true,
	})
	if err != nil {
		return ValidationResult{}, fmt.Errorf("auditor: %w", err)
	}
	var p validationPayload
	if err := llm.DecodeJSON(raw, &p); err != nil {
		return ValidationResult{}, fmt.Errorf("auditor: %w", err)
	}
	return ValidationResult{
		Valid:      p.IsValid,
		Confidence: clamp01(p.Confidence),
		Issues:     strings.TrimSpace(p.Issues),
		Correction: strings.TrimSpace(p.CorrectionNote),
	}, nil
}

// RelevanceScorer rates the page's links as follow-up topics.
type RelevanceScorer struct {
	client llm.Client
}

func NewRelevanceScorer(client llm.Client) *RelevanceScorer {
	return &RelevanceScorer{client: client}
}

type linkScorePayload struct {
	LinkTitle      string  `json:"link_title"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

// Score returns the model's scores unfiltered. Callers restrict them to the
// links they offered.
func (a *RelevanceScorer) Score(ctx context.Context, q Question, links []string) ([]LinkScore, error) {
	if len(links) == 0 {
		return nil, nil
	}
	raw, err := a.client.Generate(ctx, llm.Prompt{
		System: relevanceSystem,
		User:   relevancePrompt(q, links),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("relevance scorer: %w", err)
	}

	var payload []linkScorePayload
	if err := llm.DecodeJSON(raw, &payload); err != nil {
		// Some models wrap the list in an object.
		var wrapped struct {
			Links []linkScorePayload `json:"links"`
		}
		if err2 := llm.DecodeJSON(raw, &wrapped); err2 != nil || len(wrapped.Links) == 0 {
			return nil, fmt.Errorf("relevance scorer: %w", err)
		}
		payload = wrapped.Links
	}

	scores := make([]LinkScore, len(payload))
	for i, p := range payload {
		scores[i] = LinkScore{Title: p.LinkTitle, Score: p.RelevanceScore, Reason: p.Reason}
	}
	return scores, nil
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
