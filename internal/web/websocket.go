package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for simplicity
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	requestID := r.URL.Query().Get("request_id")
	if requestID == "" {
		s.logger.Error("WebSocket connection missing request_id")
		return
	}

	// Subscribe to request updates
	updates := s.reqMgr.Subscribe(requestID)
	defer s.reqMgr.Unsubscribe(requestID, updates)

	// Send initial request state
	req, err := s.reqMgr.Get(requestID)
	if err == nil {
		data, _ := json.Marshal(s.toResponse(req))
		conn.WriteMessage(websocket.TextMessage, data)
	}

	// Listen for updates and send to client
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case req, ok := <-updates:
			if !ok {
				return
			}

			data, err := json.Marshal(s.toResponse(req))
			if err != nil {
				s.logger.Error("failed to marshal request", "error", err)
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Error("failed to write WebSocket message", "error", err)
				return
			}

			// Close connection once the request is done
			if req.Status == StatusCompleted || req.Status == StatusFailed {
				return
			}

		case <-ticker.C:
			// Send ping to keep connection alive
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
