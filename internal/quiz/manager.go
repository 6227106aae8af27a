package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"wikiquiz/internal/config"
	"wikiquiz/internal/llm"
	"wikiquiz/internal/wiki"
)

// maxQuestionAttempts is the first attempt plus one correction retry.
const maxQuestionAttempts = 2

// PageSource resolves article titles. *wiki.Client satisfies it.
type PageSource interface {
	GetPage(ctx context.Context, title string) (*wiki.Page, error)
}

type Options struct {
	ConfidenceThreshold float64
	TopLinks            int
	MaxSections         int
	AuditorModel        string
	Debug               bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ConfidenceThreshold: cfg.Game.ConfidenceThreshold,
		TopLinks:            cfg.Game.TopLinks,
		MaxSections:         cfg.Game.MaxSections,
		AuditorModel:        cfg.LLM.AuditorModel,
		Debug:               cfg.Game.DebugMode,
	}
}

// Manager runs the round pipeline: fetch, pick sections, generate, audit,
// cite, score links.
type Manager struct {
	pages     PageSource
	picker    *SectionPicker
	maker     *QuizMaker
	auditor   *Auditor
	relevance *RelevanceScorer
	opts      Options
	now       func() time.Time
}

func NewManager(pages PageSource, client llm.Client, opts Options) *Manager {
	if opts.TopLinks <= 0 {
		opts.TopLinks = 3
	}
	if opts.MaxSections <= 0 {
		opts.MaxSections = 3
	}
	return &Manager{
		pages:     pages,
		picker:    NewSectionPicker(client, opts.MaxSections),
		maker:     NewQuizMaker(client),
		auditor:   NewAuditor(client, opts.AuditorModel),
		relevance: NewRelevanceScorer(client),
		opts:      opts,
		now:       time.Now,
	}
}

// RunRound prepares one question for title. observer may be nil.
func (m *Manager) RunRound(ctx context.Context, title string, observer Observer) (*Round, error) {
	notify := func(s Stage) {
		if observer != nil {
			observer(s)
		}
	}

	log.Printf("[Quiz] Starting round for %q", title)
	notify(StageFetch)
	page, err := m.pages.GetPage(ctx, title)
	if err != nil {
		log.Printf("[Quiz] Could not fetch %q: %v", title, err)
		return nil, err
	}
	if len(page.Sections) == 0 {
		return nil, fmt.Errorf("%w: %s", wiki.ErrNoContent, page.Title)
	}

	round := &Round{
		ID:        uuid.NewString(),
		PageTitle: page.Title,
		PageURL:   page.URL,
		CreatedAt: m.now(),
	}

	notify(StageSections)
	round.Sections = m.pickSections(ctx, page, round)
	source := round.SourceText()

	question, validation, err := m.correctionLoop(ctx, source, round, notify)
	if err != nil {
		return nil, err
	}
	round.Question = question
	round.Validation = validation

	notify(StageCitation)
	round.Citation = m.cite(page, round.Sections, question)

	notify(StageLinks)
	round.Links = m.scoreLinks(ctx, page, question, round)

	notify(StageDone)
	log.Printf("[Quiz] Round %s ready for %q (%d attempts, %d links)", round.ID, page.Title, round.CorrectionAttempts, len(round.Links))
	return round, nil
}

func (m *Manager) pickSections(ctx context.Context, page *wiki.Page, round *Round) []wiki.Section {
	var pick SectionPick
	if len(page.Sections) <= 1 {
		pick = SectionPick{Indices: []int{0}, Reasoning: "single section"}
	} else {
		var err error
		pick, err = m.picker.Pick(ctx, page)
		if err != nil {
			log.Printf("[Quiz] Section picker failed (%v), ranking by density", err)
			pick = RankByDensity(page.Sections, m.opts.MaxSections)
		}
	}

	selected := make([]wiki.Section, 0, len(pick.Indices))
	var titles []string
	for _, i := range pick.Indices {
		selected = append(selected, page.Sections[i])
		titles = append(titles, page.Sections[i].Title)
	}
	log.Printf("[Quiz] Selected %d sections: %s", len(selected), strings.Join(titles, ", "))
	m.debug(round, "Section Picker",
		fmt.Sprintf("%d sections (%d chars)", len(page.Sections), len(page.Content)),
		strings.Join(titles, ", "), pick.Reasoning)
	return selected
}

// correctionLoop generates a question and has the auditor check it. A
// rejected or malformed question is regenerated once with the auditor's
// note; provider failures end the round immediately.
func (m *Manager) correctionLoop(ctx context.Context, source string, round *Round, notify func(Stage)) (Question, ValidationResult, error) {
	var (
		note    string
		lastErr error
	)
	for attempt := 1; attempt <= maxQuestionAttempts; attempt++ {
		round.CorrectionAttempts = attempt

		notify(StageQuestion)
		q, err := m.maker.Generate(ctx, source, note)
		if err != nil {
			if fatal(ctx, err) {
				return Question{}, ValidationResult{}, err
			}
			log.Printf("[Quiz] Attempt %d/%d produced an invalid question: %v", attempt, maxQuestionAttempts, err)
			m.debug(round, fmt.Sprintf("Quiz Maker (Attempt %d)", attempt), fmt.Sprintf("source (%d chars)", len(source)), "invalid", err.Error())
			lastErr = err
			note = "The previous answer was not usable: " + err.Error() + ". Return exactly four distinct options and a correct_index between 0 and 3."
			continue
		}
		m.debug(round, fmt.Sprintf("Quiz Maker (Attempt %d)", attempt), fmt.Sprintf("source (%d chars)", len(source)), q.Text, q.Explanation)

		notify(StageAudit)
		v, err := m.auditor.Audit(ctx, q, source)
		if err != nil {
			if fatal(ctx, err) {
				return Question{}, ValidationResult{}, err
			}
			log.Printf("[Quiz] Auditor failed on attempt %d: %v", attempt, err)
			lastErr = err
			note = ""
			continue
		}
		m.debug(round, fmt.Sprintf("Auditor (Attempt %d)", attempt), "question + source",
			fmt.Sprintf("valid=%t confidence=%.2f", v.Valid, v.Confidence), orDefault(v.Issues, "no issues found"))

		if v.Passes(m.opts.ConfidenceThreshold) {
			log.Printf("[Quiz] Question validated on attempt %d (confidence %.2f)", attempt, v.Confidence)
			return q, v, nil
		}
		log.Printf("[Quiz] Validation failed on attempt %d: %s", attempt, v.Issues)
		lastErr = fmt.Errorf("rejected with confidence %.2f: %s", v.Confidence, v.Issues)
		note = orDefault(v.Correction, v.Issues)
	}
	return Question{}, ValidationResult{}, fmt.Errorf("%w after %d attempts: %v", ErrValidationFailed, maxQuestionAttempts, lastErr)
}

// fatal reports errors that retrying with a correction cannot fix.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return llm.Classify(err) != nil && !errors.Is(err, llm.ErrEmptyResponse)
}

func (m *Manager) cite(page *wiki.Page, sections []wiki.Section, q Question) *Citation {
	source := combineSections(sections)
	c, ok := ExtractCitation(source, q.Text, q.CorrectAnswer())
	if !ok {
		log.Printf("[Quiz] No citation found for answer %q", q.CorrectAnswer())
		return nil
	}

	// Map the offset back to the section it falls in.
	c.SectionTitle, c.SectionURL = "Wikipedia", page.URL
	pos := 0
	for _, s := range sections {
		end := pos + len(s.Text)
		if c.Offset >= pos && c.Offset < end {
			c.SectionTitle = s.Title
			c.SectionURL = page.SectionURL(s)
			break
		}
		pos = end + len("\n\n")
	}
	log.Printf("[Quiz] Citation from %q: %s", c.SectionTitle, preview(c.Sentence, 100))
	return &c
}

func (m *Manager) scoreLinks(ctx context.Context, page *wiki.Page, q Question, round *Round) []LinkScore {
	if len(page.Links) == 0 {
		return nil
	}

	scores, err := m.relevance.Score(ctx, q, page.Links)
	ranked := restrictScores(scores, page.Links, m.opts.TopLinks)
	if err != nil || len(ranked) == 0 {
		if err != nil {
			log.Printf("[Quiz] Relevance scorer failed (%v), offering first links", err)
		}
		ranked = ranked[:0]
		for _, l := range page.Links {
			ranked = append(ranked, LinkScore{Title: l})
			if len(ranked) == m.opts.TopLinks {
				break
			}
		}
	}

	var summary []string
	for _, l := range ranked {
		summary = append(summary, fmt.Sprintf("%s (%.2f)", l.Title, l.Score))
	}
	m.debug(round, "Relevance Agent", fmt.Sprintf("question + %d links", len(page.Links)),
		fmt.Sprintf("%d links selected", len(ranked)), strings.Join(summary, ", "))
	return ranked
}

// restrictScores drops titles the page does not link to, keeps the best score
// per title and returns the top n by score.
func restrictScores(scores []LinkScore, links []string, n int) []LinkScore {
	canonical := make(map[string]string, len(links))
	for _, l := range links {
		canonical[strings.ToLower(l)] = l
	}

	best := make(map[string]LinkScore)
	var order []string
	for _, s := range scores {
		title, ok := canonical[strings.ToLower(strings.TrimSpace(s.Title))]
		if !ok {
			continue
		}
		s.Title = title
		s.Score = clamp01(s.Score)
		prev, seen := best[title]
		if !seen {
			order = append(order, title)
		}
		if !seen || s.Score > prev.Score {
			best[title] = s
		}
	}

	out := make([]LinkScore, 0, len(order))
	for _, t := range order {
		out = append(out, best[t])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (m *Manager) debug(round *Round, agent, input, output, reasoning string) {
	if !m.opts.Debug {
		return
	}
	round.DebugLogs = append(round.DebugLogs, DebugLog{
		Agent:     agent,
		Input:     input,
		Output:    output,
		Reasoning: reasoning,
		Timestamp: m.now(),
	})
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
