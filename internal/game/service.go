package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"wikiquiz/internal/leaderboard"
	"wikiquiz/internal/quiz"
)

var (
	ErrNoRound         = errors.New("no round in progress")
	ErrAlreadyAnswered = errors.New("round already answered")
	ErrNotAnswered     = errors.New("answer the current question first")
	ErrUnknownLink     = errors.New("link is not one of the suggested topics")
	ErrGameOver        = errors.New("game over")
	ErrInvalidChoice   = errors.New("answer index out of range")
)

type RoundRunner interface {
	RunRound(ctx context.Context, title string, observer quiz.Observer) (*quiz.Round, error)
}

type RandomTitles interface {
	Random(ctx context.Context) (string, error)
}

type Recorder interface {
	Record(ctx context.Context, playerID uint, username string, streak int, path []string) (*leaderboard.GameRecord, error)
}

// Service applies player actions to sessions. Actions on one session are
// serialised; different sessions proceed independently.
type Service struct {
	store  Store
	rounds RoundRunner
	random RandomTitles
	board  Recorder
	now    func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

// sessionLock is held by every in-flight action on one session. The entry
// is dropped when the last holder releases it.
type sessionLock struct {
	mu   sync.Mutex
	refs int
}

// NewService wires the session store to the round pipeline. board may be nil
// to skip recording finished games.
func NewService(store Store, rounds RoundRunner, random RandomTitles, board Recorder) *Service {
	return &Service{
		store:  store,
		rounds: rounds,
		random: random,
		board:  board,
		now:    time.Now,
		locks:  make(map[string]*sessionLock),
	}
}

func (s *Service) lock(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *Service) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

func (s *Service) load(ctx context.Context, id string, player Player) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		sess = newSession(id, s.now())
	} else if err != nil {
		return nil, err
	}
	if player.ID != 0 {
		sess.PlayerID, sess.Username = player.ID, player.Username
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Session returns the current state, creating an empty session if needed.
func (s *Service) Session(ctx context.Context, id string, player Player) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()
	sess, err := s.load(ctx, id, player)
	if err != nil {
		return nil, err
	}
	return sess, s.save(ctx, sess)
}

// Start begins a new game on title, or on a random article when title is
// empty. A live streak from the previous game is recorded, then the streak
// starts over; the best streak is kept.
func (s *Service) Start(ctx context.Context, id string, player Player, title string, observer quiz.Observer) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, player)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		if title, err = s.random.Random(ctx); err != nil {
			return nil, fmt.Errorf("pick random article: %w", err)
		}
		log.Printf("[Session] %s starting on random article %q", shortID(id), title)
	}

	round, err := s.rounds.RunRound(ctx, title, observer)
	if err != nil {
		return nil, err
	}

	s.abandonGame(ctx, sess)
	sess.Round = round
	sess.Answered = false
	sess.Guess = -1
	sess.Streak = 0
	sess.GameOver = false
	sess.Visited = []string{round.PageTitle}
	return sess, s.save(ctx, sess)
}

// Answer scores the player's choice. A wrong answer ends the game and the
// finished streak goes to the leaderboard.
func (s *Service) Answer(ctx context.Context, id string, player Player, index int) (AnswerResult, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, player)
	if err != nil {
		return AnswerResult{}, err
	}
	switch {
	case sess.Round == nil:
		return AnswerResult{}, ErrNoRound
	case sess.GameOver:
		return AnswerResult{}, ErrGameOver
	case sess.Answered:
		return AnswerResult{}, ErrAlreadyAnswered
	case index < 0 || index >= quiz.NumOptions:
		return AnswerResult{}, ErrInvalidChoice
	}

	q := sess.Round.Question
	correct := index == q.CorrectIndex
	sess.Answered = true
	sess.Guess = index
	if correct {
		sess.Streak++
		if sess.Streak > sess.BestStreak {
			sess.BestStreak = sess.Streak
		}
	} else {
		sess.GameOver = true
		s.recordGame(ctx, sess)
	}
	log.Printf("[Session] %s answered %d on %q: correct=%t streak=%d", shortID(id), index, sess.Round.PageTitle, correct, sess.Streak)

	if err := s.save(ctx, sess); err != nil {
		return AnswerResult{}, err
	}
	return AnswerResult{
		Correct:      correct,
		Guess:        index,
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
		Citation:     sess.Round.Citation,
		Streak:       sess.Streak,
		BestStreak:   sess.BestStreak,
		GameOver:     sess.GameOver,
	}, nil
}

// Next moves to a linked article after a correct answer. Without free the
// link must be one of the round's scored links.
func (s *Service) Next(ctx context.Context, id string, player Player, link string, free bool, observer quiz.Observer) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, player)
	if err != nil {
		return nil, err
	}
	switch {
	case sess.Round == nil:
		return nil, ErrNoRound
	case sess.GameOver:
		return nil, ErrGameOver
	case !sess.Answered:
		return nil, ErrNotAnswered
	}

	target := strings.TrimSpace(link)
	if !free {
		canonical, ok := sess.Round.HasLink(target)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLink, link)
		}
		target = canonical
	}
	if target == "" {
		return nil, fmt.Errorf("%w: empty title", ErrUnknownLink)
	}

	round, err := s.rounds.RunRound(ctx, target, observer)
	if err != nil {
		return nil, err
	}
	sess.Round = round
	sess.Answered = false
	sess.Guess = -1
	sess.Visited = append(sess.Visited, round.PageTitle)
	return sess, s.save(ctx, sess)
}

// Reset clears the game so the player can start again. A live streak is
// recorded first; the best streak survives.
func (s *Service) Reset(ctx context.Context, id string, player Player) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, player)
	if err != nil {
		return nil, err
	}
	s.abandonGame(ctx, sess)
	sess.Round = nil
	sess.Answered = false
	sess.Guess = -1
	sess.Streak = 0
	sess.GameOver = false
	sess.Visited = nil
	return sess, s.save(ctx, sess)
}

// abandonGame records a game the player leaves with a live streak. Games
// that ended on a wrong answer were recorded already.
func (s *Service) abandonGame(ctx context.Context, sess *Session) {
	if sess.GameOver {
		return
	}
	s.recordGame(ctx, sess)
}

func (s *Service) recordGame(ctx context.Context, sess *Session) {
	if s.board == nil || sess.Streak == 0 {
		return
	}
	if _, err := s.board.Record(ctx, sess.PlayerID, sess.Username, sess.Streak, sess.Visited); err != nil {
		log.Printf("[Session] Failed to record game for %s: %v", shortID(sess.ID), err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
