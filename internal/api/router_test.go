package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"wikiquiz/internal/auth"
	"wikiquiz/internal/config"
	"wikiquiz/internal/db"
	"wikiquiz/internal/game"
	"wikiquiz/internal/leaderboard"
	"wikiquiz/internal/quiz"
)

type fakeRounds struct {
	mu     sync.Mutex
	titles []string
	err    error
	// stopped, when set, makes RunRound hang until its context ends and
	// then report the context error on the channel.
	stopped chan error
}

func (f *fakeRounds) RunRound(ctx context.Context, title string, observer quiz.Observer) (*quiz.Round, error) {
	f.mu.Lock()
	f.titles = append(f.titles, title)
	err, stopped := f.err, f.stopped
	f.mu.Unlock()

	if stopped != nil {
		if observer != nil {
			observer(quiz.StageFetch)
		}
		<-ctx.Done()
		stopped <- ctx.Err()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	if observer != nil {
		observer(quiz.StageFetch)
		observer(quiz.StageDone)
	}
	return &quiz.Round{
		ID:        "round-" + title,
		PageTitle: title,
		PageURL:   "https://en.wikipedia.org/wiki/" + title,
		Question: quiz.Question{
			Text:         "Which moon is larger?",
			Options:      [4]string{"Deimos", "Io", "Phobos", "Titan"},
			CorrectIndex: 2,
			Explanation:  "Phobos is the larger of the two Martian moons.",
		},
		Citation: &quiz.Citation{Sentence: "Phobos is larger than Deimos.", SectionTitle: "Moons"},
		Links: []quiz.LinkScore{
			{Title: "Phobos (moon)", Score: 0.9},
			{Title: "Deimos (moon)", Score: 0.4},
		},
		DebugLogs: []quiz.DebugLog{{Agent: "Quiz Maker (Attempt 1)"}},
	}, nil
}

type fakeRandom string

func (f fakeRandom) Random(context.Context) (string, error) { return string(f), nil }

type fakeSearch struct{ results []string }

func (f fakeSearch) Search(_ context.Context, query string, limit int) ([]string, error) {
	if query == "fail" {
		return nil, fmt.Errorf("upstream down")
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

type testEnv struct {
	cfg      *config.Config
	router   *gin.Engine
	rounds   *fakeRounds
	sessions *auth.MemorySessions
}

func newTestEnv(t *testing.T, subpath string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.Subpath = subpath
	cfg.Server.JWTSecret = "test-secret"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.Game.SessionTTLMinutes = 60
	cfg.Game.DebugMode = true

	conn, err := db.Open(cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.DB = conn

	rounds := &fakeRounds{}
	board := leaderboard.New(conn)
	sessions := auth.NewMemorySessions()
	svc := game.NewService(game.NewMemoryStore(time.Hour), rounds, fakeRandom("Mars"), board)

	r := SetupRouter(cfg, Deps{
		Game:        svc,
		Search:      fakeSearch{results: []string{"Mars", "Mars (mythology)", "Marseille"}},
		Leaderboard: board,
		Sessions:    sessions,
	})
	return &testEnv{cfg: cfg, router: r, rounds: rounds, sessions: sessions}
}

// do sends a request carrying the given cookies and returns the recorder.
func (e *testEnv) do(method, url string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		buf = bytes.NewReader(b)
	} else {
		buf = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, url, buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid JSON body %q: %v", w.Body.String(), err)
	}
}

func TestSetupRouter_BasicRoutes(t *testing.T) {
	env := newTestEnv(t, "")

	for _, path := range []string{"/health", "/config", "/players/online", "/"} {
		w := env.do("GET", path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s should return 200, got %d", path, w.Code)
		}
	}
}

func TestSetupRouter_Subpath(t *testing.T) {
	env := newTestEnv(t, "/quiz")

	w := env.do("GET", "/quiz/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("GET /quiz/health should return 200, got %d", w.Code)
	}

	w = env.do("GET", "/quiz/", nil)
	if w.Code != http.StatusMovedPermanently {
		t.Errorf("GET /quiz/ should redirect, got %d", w.Code)
	}

	w = env.do("GET", "/quiz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /quiz should render the game page, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `/quiz/static/app.js`) {
		t.Errorf("page should reference static assets under the subpath: %s", w.Body.String())
	}

	w = env.do("GET", "/quiz/static/app.js", nil)
	if w.Code != http.StatusOK {
		t.Errorf("static asset should be served, got %d", w.Code)
	}

	if w := env.do("GET", "/health", nil); w.Code != http.StatusNotFound {
		t.Errorf("routes outside the subpath should 404, got %d", w.Code)
	}
}

func TestSetupRouter_CORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Server.JWTSecret = "test-secret"
	cfg.Server.AllowedOrigins = []string{"https://quiz.example"}
	r := SetupRouter(cfg, Deps{Sessions: auth.NewMemorySessions()})

	req := httptest.NewRequest("OPTIONS", "/health", nil)
	req.Header.Set("Origin", "https://quiz.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://quiz.example" {
		t.Errorf("expected allowed origin header, got %q", got)
	}
}
