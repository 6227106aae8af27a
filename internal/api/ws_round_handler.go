package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wikiquiz/internal/config"
	"wikiquiz/internal/game"
	"wikiquiz/internal/quiz"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// WSRoundRequest starts a game on Title, or with Action "next" follows Link.
type WSRoundRequest struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Link   string `json:"link"`
	Free   bool   `json:"free"`
}

type WSEvent struct {
	Event   string       `json:"event"`
	Stage   quiz.Stage   `json:"stage,omitempty"`
	Session *sessionView `json:"session,omitempty"`
	Message string       `json:"message,omitempty"`
}

var errUnknownAction = errors.New("unknown action")

// GET /ws/round streams pipeline stages while a round is prepared, then the
// round itself or an error. One connection can prepare many rounds.
func WSRoundHandler(cfg *config.Config, svc *game.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, fresh := readSessionID(c)
		var header http.Header
		if fresh {
			header = http.Header{"Set-Cookie": {sessionCookie(cfg, id).String()}}
		}
		rawConn, err := upgrader.Upgrade(c.Writer, c.Request, header)
		if err != nil {
			log.Printf("[WS] Upgrade failed: %v", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()
		player := currentPlayer(c)

		// A read error means the client is gone; cancelling connCtx stops
		// whatever round is being prepared for it.
		connCtx, cancelConn := context.WithCancel(c.Request.Context())
		defer cancelConn()
		requests := make(chan []byte, 4)
		go func() {
			defer close(requests)
			defer cancelConn()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						log.Printf("[WS] Read ended: %v", err)
					}
					return
				}
				select {
				case requests <- msg:
				case <-connCtx.Done():
					return
				}
			}
		}()

		for msg := range requests {
			var req WSRoundRequest
			if err := json.Unmarshal(msg, &req); err != nil {
				conn.WriteJSON(WSEvent{Event: "error", Message: "invalid JSON"})
				continue
			}

			observer := func(s quiz.Stage) {
				conn.WriteJSON(WSEvent{Event: "stage", Stage: s})
			}
			ctx, cancel := context.WithTimeout(connCtx, roundTimeout)
			var sess *game.Session
			switch req.Action {
			case "", "start":
				sess, err = svc.Start(ctx, id, player, req.Title, observer)
			case "next":
				sess, err = svc.Next(ctx, id, player, req.Link, req.Free, observer)
			default:
				err = errUnknownAction
			}
			cancel()

			if connCtx.Err() != nil {
				log.Printf("[WS] Client left, dropped round for %q", req.Title+req.Link)
				return
			}
			if err != nil {
				_, message := statusFor(err)
				if errors.Is(err, errUnknownAction) {
					message = "unknown action " + req.Action
				}
				log.Printf("[WS] Round failed for %q: %v", req.Title+req.Link, err)
				conn.WriteJSON(WSEvent{Event: "error", Message: message})
				continue
			}
			view := newSessionView(sess, cfg.Game.DebugMode)
			conn.WriteJSON(WSEvent{Event: "round", Session: &view})
		}
	}
}
