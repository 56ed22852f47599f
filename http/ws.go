package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"parbi/classify"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
	wsMaxMessage   = 8 << 10
	wsSendBuffer   = 16
	wsPredictLimit = 5 * time.Second
)

// liveRequest is one message from the browser while the user types.
type liveRequest struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model"`
	Text  string `json:"text"`
}

type liveReply struct {
	ID     string           `json:"id,omitempty"`
	Result *predictResponse `json:"result,omitempty"`
	Error  *errorResponse   `json:"error,omitempty"`
}

type liveSession struct {
	h         *handlers
	requestID string
	conn      *websocket.Conn
	send      chan liveReply
	done      chan struct{}
	logger    *zap.Logger
}

func (h *handlers) handleLivePredict(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	requestID := GetRequestID(r.Context())
	s := &liveSession{
		h:         h,
		requestID: requestID,
		conn:      conn,
		send:      make(chan liveReply, wsSendBuffer),
		done:      make(chan struct{}),
		logger:    h.logger.With(zap.String("request_id", requestID)),
	}
	h.addSession(conn)
	if h.metrics != nil {
		h.metrics.SessionOpened()
	}

	go s.writePump()
	// Hijacked connections outlive the request timeout.
	s.readPump(context.Background())
}

func (s *liveSession) readPump(ctx context.Context) {
	defer func() {
		close(s.send)
		s.h.removeSession(s.conn)
		if s.h.metrics != nil {
			s.h.metrics.SessionClosed()
		}
	}()

	s.conn.SetReadLimit(wsMaxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}

		var reply liveReply
		var req liveRequest
		if err := json.Unmarshal(data, &req); err != nil {
			reply = liveReply{Error: &errorResponse{Error: "invalid JSON message", Kind: "bad_request"}}
		} else {
			reply = s.predict(ctx, req)
		}
		select {
		case s.send <- reply:
		case <-s.done:
			return
		}
	}
}

func (s *liveSession) predict(ctx context.Context, req liveRequest) liveReply {
	ctx, cancel := context.WithTimeout(ctx, wsPredictLimit)
	defer cancel()

	if req.Model == "" {
		req.Model = "Logistic Regression"
	}
	res, err := s.h.predictor.Predict(ctx, req.Model, req.Text)
	if err != nil {
		return liveReply{ID: req.ID, Error: &errorResponse{Error: classify.UserMessage(err), Kind: classify.KindOf(err)}}
	}
	s.h.record(ctx, s.requestID, req.Text, res)
	resp := newPredictResponse(res)
	return liveReply{ID: req.ID, Result: &resp}
}

func (s *liveSession) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		close(s.done)
		s.conn.Close()
	}()

	for {
		select {
		case reply, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(reply); err != nil {
				s.logger.Warn("websocket write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *handlers) addSession(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[conn] = struct{}{}
}

func (h *handlers) removeSession(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, conn)
}

// closeSessions sends a going-away frame to every open session.
func (h *handlers) closeSessions() {
	h.mu.Lock()
	defer h.mu.Unlock()
	deadline := time.Now().Add(wsWriteWait)
	for conn := range h.sessions {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()
	}
}
