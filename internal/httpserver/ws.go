// apps/go-server/internal/httpserver/ws.go
//
// WebSocket stream for a single game.
//   - Server → client: a render.Frame after every tick (and right after
//     connecting), one JSON text message each.
//   - Client → server: {"type":"input","key":"ArrowLeft"} when the
//     connection was opened with the game's control token. Spectators'
//     input is ignored.
// The connection ends when the client leaves or the game is deleted.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/snake/apps/go-server/internal/game"
	"github.com/robalobadob/snake/apps/go-server/internal/input"
	"github.com/robalobadob/snake/apps/go-server/internal/render"
	"github.com/robalobadob/snake/apps/go-server/internal/session"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsMaxMessage = 1024
	wsBuffer     = 8
)

// InputType tags input messages sent by clients.
const InputType = "input"

// inputMsg is a key press from the client.
type inputMsg struct {
	Type string `json:"type"`
	Key  string `json:"key"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	control := hasControl(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	lg := log.With().Str("gameId", sess.ID).Bool("control", control).Logger()
	lg.Debug().Msg("ws connected")
	defer lg.Debug().Msg("ws closed")

	frames, unsubscribe := sess.Subscribe(wsBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Writer goroutine: the only writer on conn.
	go func() {
		defer cancel()
		defer conn.Close()
		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()

		if err := writeFrame(conn, sess.ID, sess.State()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-frames:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "game ended"),
						time.Now().Add(time.Second))
					return
				}
				if err := writeFrame(conn, sess.ID, st); err != nil {
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop.
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		if !control {
			continue
		}
		d, ok := parseInput(msg)
		if !ok {
			continue
		}
		if _, err := sess.SetDirection(ctx, d); err != nil {
			if !errors.Is(err, session.ErrStopped) {
				lg.Debug().Err(err).Msg("ws input dropped")
			}
			return
		}
	}
}

// parseInput decodes an input message into a direction.
func parseInput(msg []byte) (game.Direction, bool) {
	var in inputMsg
	if err := json.Unmarshal(msg, &in); err != nil || in.Type != InputType {
		return game.None, false
	}
	return input.FromKey(in.Key)
}

func writeFrame(conn *websocket.Conn, id string, st game.State) error {
	b, err := json.Marshal(render.NewFrame(id, st))
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
