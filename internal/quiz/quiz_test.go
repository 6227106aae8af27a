package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wikiquiz/internal/llm"
	"wikiquiz/internal/wiki"
)

type reply struct {
	text string
	err  error
}

// fakeLLM answers each agent from its own scripted queue and records prompts.
type fakeLLM struct {
	mu      sync.Mutex
	queues  map[string][]reply
	prompts map[string][]llm.Prompt
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{queues: map[string][]reply{}, prompts: map[string][]llm.Prompt{}}
}

func (f *fakeLLM) on(agent string, replies ...reply) *fakeLLM {
	f.queues[agent] = append(f.queues[agent], replies...)
	return f
}

func (f *fakeLLM) calls(agent string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts[agent])
}

func (f *fakeLLM) Generate(_ context.Context, p llm.Prompt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var agent string
	switch p.System {
	case sectionPickerSystem:
		agent = "picker"
	case quizMakerSystem:
		agent = "maker"
	case auditorSystem:
		agent = "auditor"
	case relevanceSystem:
		agent = "relevance"
	}
	f.prompts[agent] = append(f.prompts[agent], p)

	q := f.queues[agent]
	if len(q) == 0 {
		return "", fmt.Errorf("no scripted reply for %s", agent)
	}
	f.queues[agent] = q[1:]
	return q[0].text, q[0].err
}

type fakePages map[string]*wiki.Page

func (f fakePages) GetPage(_ context.Context, title string) (*wiki.Page, error) {
	if p, ok := f[title]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", wiki.ErrPageNotFound, title)
}

func marsPage() *wiki.Page {
	sections := []wiki.Section{
		{Title: wiki.IntroTitle, Text: "Mars is the fourth planet from the Sun. It has two small moons named Phobos and Deimos."},
		{Title: "Geology", Anchor: "Geology", Text: "Olympus Mons is the largest volcano on Mars. It rises 21.9 km above the surrounding plains, about 2.5 times the height of Mount Everest."},
		{Title: "Exploration", Anchor: "Exploration", Text: "The first successful flyby was made by Mariner 4 in 1965. In 1976 Viking 1 performed the first successful landing."},
	}
	return &wiki.Page{
		Title:    "Mars",
		URL:      "https://en.wikipedia.org/wiki/Mars",
		Summary:  sections[0].Text,
		Sections: sections,
		Links:    []string{"Phobos (moon)", "Deimos (moon)", "Olympus Mons", "Mariner 4"},
	}
}

const (
	pickGeology  = `{"indices": [1, 2], "reasoning": "numbers and names"}`
	volcanoQ     = "```json\n{\"question\": \"What is the largest volcano on Mars?\", \"options\": [\"Arsia Mons\", \"Olympus Mons\", \"Mauna Kea\", \"Pavonis Mons\"], \"correct_index\": 1, \"explanation\": \"Stated in Geology.\"}\n```"
	threeOptions = `{"question": "Largest volcano?", "options": ["Olympus Mons", "Arsia Mons", "Mauna Kea"], "correct_index": 0}`
	auditPass    = `{"is_valid": true, "confidence": 0.95}`
	auditLow     = `{"is_valid": true, "confidence": 0.5, "issues": "ambiguous", "correction_note": "Ask about the height instead."}`
	auditReject  = `{"is_valid": false, "confidence": 0.9, "issues": "two options are correct", "correction_note": "Replace Arsia Mons."}`
	linkScores   = `[{"link_title": "Mariner 4", "relevance_score": 0.4}, {"link_title": "Jupiter", "relevance_score": 0.99}, {"link_title": "olympus mons", "relevance_score": 0.9}, {"link_title": "Phobos (moon)", "relevance_score": 0.7}, {"link_title": "Deimos (moon)", "relevance_score": 0.2}]`
)

func newTestManager(f *fakeLLM, debug bool) *Manager {
	return NewManager(fakePages{"Mars": marsPage()}, f, Options{
		ConfidenceThreshold: 0.8,
		TopLinks:            3,
		MaxSections:         3,
		AuditorModel:        "auditor-model",
		Debug:               debug,
	})
}

func TestRunRound_HappyPath(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: auditPass}).
		on("relevance", reply{text: linkScores})
	m := newTestManager(f, false)

	var stages []Stage
	round, err := m.RunRound(context.Background(), "Mars", func(s Stage) { stages = append(stages, s) })
	require.NoError(t, err)

	assert.NotEmpty(t, round.ID)
	assert.Equal(t, "Mars", round.PageTitle)
	assert.Equal(t, 1, round.CorrectionAttempts)
	assert.Equal(t, []Stage{StageFetch, StageSections, StageQuestion, StageAudit, StageCitation, StageLinks, StageDone}, stages)
	require.Len(t, round.Sections, 2)
	assert.Equal(t, "Geology", round.Sections[0].Title)

	// Exactly one option is the correct answer.
	q := round.Question
	require.NoError(t, q.Validate())
	matches := 0
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer() {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
	assert.Equal(t, "Olympus Mons", q.CorrectAnswer())

	// The citation is a verbatim slice of the source text.
	require.NotNil(t, round.Citation)
	source := round.SourceText()
	c := round.Citation
	assert.True(t, strings.Contains(source, c.Sentence))
	assert.Equal(t, c.Sentence, source[c.Offset:c.Offset+len(c.Sentence)])
	assert.Equal(t, "Olympus Mons is the largest volcano on Mars.", c.Sentence)
	assert.Equal(t, "Geology", c.SectionTitle)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Mars#Geology", c.SectionURL)

	require.Len(t, round.Links, 3)
	assert.Equal(t, "Olympus Mons", round.Links[0].Title)
	assert.Equal(t, "Phobos (moon)", round.Links[1].Title)
	assert.Equal(t, "Mariner 4", round.Links[2].Title)
	_, ok := round.HasLink("olympus mons")
	assert.True(t, ok)

	assert.Equal(t, "auditor-model", f.prompts["auditor"][0].Model)
	assert.Empty(t, round.DebugLogs)
}

func TestRunRound_RetriesOnceWithCorrectionNote(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}, reply{text: volcanoQ}).
		on("auditor", reply{text: auditLow}, reply{text: auditPass}).
		on("relevance", reply{text: linkScores})
	m := newTestManager(f, false)

	round, err := m.RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, round.CorrectionAttempts)

	require.Equal(t, 2, f.calls("maker"))
	assert.NotContains(t, f.prompts["maker"][0].User, "Ask about the height instead.")
	assert.Contains(t, f.prompts["maker"][1].User, "Ask about the height instead.")
}

func TestRunRound_FailsAfterSingleRetry(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}, reply{text: volcanoQ}, reply{text: volcanoQ}).
		on("auditor", reply{text: auditReject}, reply{text: auditReject}, reply{text: auditReject})
	m := newTestManager(f, false)

	_, err := m.RunRound(context.Background(), "Mars", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.Equal(t, 2, f.calls("maker"))
	assert.Equal(t, 2, f.calls("auditor"))
	assert.Equal(t, 0, f.calls("relevance"))
}

func TestRunRound_MalformedQuestionCountsAsAttempt(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: threeOptions}, reply{text: volcanoQ}).
		on("auditor", reply{text: auditPass}).
		on("relevance", reply{text: linkScores})
	m := newTestManager(f, false)

	round, err := m.RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, round.CorrectionAttempts)
	assert.Equal(t, 1, f.calls("auditor"))
	assert.Contains(t, f.prompts["maker"][1].User, "four distinct options")
}

func TestRunRound_ProviderOutageIsNotRetried(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{err: fmt.Errorf("gemini: %w", llm.ErrUnavailable)}, reply{text: volcanoQ})
	m := newTestManager(f, false)

	_, err := m.RunRound(context.Background(), "Mars", nil)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Equal(t, 1, f.calls("maker"))
}

func TestRunRound_SectionPickerFallsBackToDensity(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{err: errors.New("bad gateway")}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: auditPass}).
		on("relevance", reply{text: linkScores})
	m := newTestManager(f, true)

	round, err := m.RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, round.Sections)
	assert.LessOrEqual(t, len(round.Sections), 3)

	require.NotEmpty(t, round.DebugLogs)
	assert.Equal(t, "Section Picker", round.DebugLogs[0].Agent)
	assert.Contains(t, round.DebugLogs[0].Reasoning, "fact density")
}

func TestRunRound_RelevanceFailureOffersFirstLinks(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: auditPass}).
		on("relevance", reply{text: "I cannot help with that"})
	m := newTestManager(f, false)

	round, err := m.RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)
	require.Len(t, round.Links, 3)
	assert.Equal(t, LinkScore{Title: "Phobos (moon)"}, round.Links[0])
	assert.Equal(t, "Olympus Mons", round.Links[2].Title)
}

func TestRunRound_PageErrorSurfaces(t *testing.T) {
	m := newTestManager(newFakeLLM(), false)
	_, err := m.RunRound(context.Background(), "Nowhere", nil)
	assert.ErrorIs(t, err, wiki.ErrPageNotFound)
}

func TestRunRound_DebugLogs(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: auditPass}).
		on("relevance", reply{text: linkScores})
	m := newTestManager(f, true)

	round, err := m.RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)

	var agents []string
	for _, l := range round.DebugLogs {
		agents = append(agents, l.Agent)
		assert.False(t, l.Timestamp.IsZero())
	}
	assert.Equal(t, []string{"Section Picker", "Quiz Maker (Attempt 1)", "Auditor (Attempt 1)", "Relevance Agent"}, agents)
}

func TestQuestionValidate(t *testing.T) {
	valid := Question{Text: "Q?", Options: [4]string{"a", "b", "c", "d"}, CorrectIndex: 2}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		edit func(q *Question)
	}{
		{"empty text", func(q *Question) { q.Text = " " }},
		{"empty option", func(q *Question) { q.Options[3] = "" }},
		{"duplicate option", func(q *Question) { q.Options[1] = "A " }},
		{"index too high", func(q *Question) { q.CorrectIndex = 4 }},
		{"negative index", func(q *Question) { q.CorrectIndex = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid
			tt.edit(&q)
			assert.ErrorIs(t, q.Validate(), ErrInvalidQuestion)
		})
	}
}

func TestQuestionPublicHidesAnswer(t *testing.T) {
	q := Question{Text: "Q?", Options: [4]string{"a", "b", "c", "d"}, CorrectIndex: 2, Explanation: "because"}
	pub := q.Public()
	assert.Equal(t, q.Options, pub.Options)
	assert.Equal(t, q.Text, pub.Text)
}

func TestValidationPasses(t *testing.T) {
	assert.True(t, ValidationResult{Valid: true, Confidence: 0.8}.Passes(0.8))
	assert.False(t, ValidationResult{Valid: true, Confidence: 0.79}.Passes(0.8))
	assert.False(t, ValidationResult{Valid: false, Confidence: 1}.Passes(0.8))
}

func TestRestrictScores(t *testing.T) {
	scores := []LinkScore{
		{Title: "B", Score: 0.3},
		{Title: "nope", Score: 1},
		{Title: "a", Score: 0.5},
		{Title: "B", Score: 0.8},
		{Title: "C", Score: 7},
	}
	got := restrictScores(scores, []string{"A", "B", "C"}, 2)
	assert.Equal(t, []LinkScore{{Title: "C", Score: 1}, {Title: "B", Score: 0.8}}, got)
}

func TestRoundJSON_UsesCamelCase(t *testing.T) {
	f := newFakeLLM().
		on("picker", reply{text: pickGeology}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: auditLow}).
		on("maker", reply{text: volcanoQ}).
		on("auditor", reply{text: `{"is_valid": true, "confidence": 0.9, "issues": "", "correction_note": ""}`}).
		on("relevance", reply{text: `{"links": [{"link_title": "Phobos (moon)", "relevance_score": 0.7, "reason": "moon"}]}`})
	round, err := newTestManager(f, true).RunRound(context.Background(), "Mars", nil)
	require.NoError(t, err)

	require.Len(t, round.Links, 1)
	assert.Equal(t, LinkScore{Title: "Phobos (moon)", Score: 0.7, Reason: "moon"}, round.Links[0])
	assert.True(t, round.Validation.Valid)

	raw, err := json.Marshal(round)
	require.NoError(t, err)
	body := string(raw)
	for _, key := range []string{`"pageTitle"`, `"pageUrl"`, `"correctIndex"`, `"correctionAttempts"`, `"debugLogs"`, `"createdAt"`, `"sectionUrl"`, `"sectionTitle"`, `"score"`, `"valid"`} {
		assert.Contains(t, body, key)
	}
	for _, key := range []string{"page_title", "correct_index", "link_title", "relevance_score", "section_url", "is_valid", "debug_logs"} {
		assert.NotContains(t, body, key)
	}
}
