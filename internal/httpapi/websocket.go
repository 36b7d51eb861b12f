package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// handleAnalyzeStream pushes one report per push interval until the peer goes
// away. Analysis failures are pushed as error frames and the stream goes on.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	// Inbound frames are ignored; CloseRead cancels ctx when the peer closes.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(s.opts.PushInterval)
	defer ticker.Stop()

	for {
		if err := s.pushReport(ctx, conn); err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				s.logger.Debug("websocket push stopped", "error", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushReport(ctx context.Context, conn *websocket.Conn) error {
	var frame any
	report, err := s.analyzer.Analyze(ctx)
	if err != nil {
		s.logger.Warn("analyze failed", "error", err)
		frame = errorBody{Error: err.Error()}
	} else {
		frame = report
	}

	wctx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, conn, frame)
}
