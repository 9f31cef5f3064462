package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// progressIdleTimeout closes a progress socket whose run has gone quiet.
const progressIdleTimeout = 5 * time.Minute

// handleProgressSocket streams one run's progress events over a WebSocket
// until the client disconnects or the run goes idle.
func (s *Server) handleProgressSocket(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	events, cancel := s.broadcaster.Subscribe(runID)
	defer cancel()

	s.log.Debug().Str("run_id", runID).Msg("Progress subscriber connected")

	ctx := r.Context()
	idle := time.NewTimer(progressIdleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case <-idle.C:
			conn.Close(websocket.StatusNormalClosure, "run idle")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "run finished")
				return
			}

			writeCtx, cancelWrite := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				s.log.Debug().Err(err).Str("run_id", runID).Msg("Progress subscriber dropped")
				return
			}

			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(progressIdleTimeout)
		}
	}
}
