package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/smazurov/videofx/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongTimeout  = 2 * wsPingInterval
)

// wsMessage is one event on the WebSocket stream. Type uses the SSE event
// names.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// websocketHandler serves the event stream over a WebSocket for clients that
// prefer it to SSE. Messages from the client are read only to notice close
// and pong frames.
func (s *Server) websocketHandler() http.Handler {
	names := make(map[reflect.Type]string)
	for name, payload := range eventTypes() {
		names[reflect.TypeOf(payload)] = name
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorizeRequest(w, r) {
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Debug("WebSocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		eventCh := make(chan any, 32)
		forwarder := events.SubscribeStream(s.eventBus, eventCh)
		defer forwarder.Close()

		closed := make(chan struct{})
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						s.logger.Debug("WebSocket client error", "error", err)
					}
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		send := func(name string, data any) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			return conn.WriteJSON(wsMessage{Type: name, Data: data})
		}

		snap := s.options.Capture.Snapshot()
		initial := events.PipelineStateChangedEvent{
			BuildID:   snap.BuildID,
			From:      string(snap.State),
			To:        string(snap.State),
			Timestamp: time.Now().Format(time.RFC3339),
		}
		if snap.Bound {
			initial.DeviceID = snap.Device.ID
		}
		if err := send("pipeline-state", initial); err != nil {
			return
		}

		for {
			select {
			case <-closed:
				return
			case <-r.Context().Done():
				return
			case <-ping.C:
				deadline := time.Now().Add(wsWriteTimeout)
				if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case event := <-eventCh:
				name, ok := names[reflect.TypeOf(event)]
				if !ok {
					continue
				}
				if err := send(name, event); err != nil {
					return
				}
			}
		}
	})
}

// authorizeRequest applies basic auth outside huma. It accepts the
// Authorization header or ?auth= like the SSE route.
func (s *Server) authorizeRequest(w http.ResponseWriter, r *http.Request) bool {
	username, password := s.options.AuthUsername, s.options.AuthPassword
	if username == "" || password == "" {
		return true
	}

	encoded := r.URL.Query().Get("auth")
	if header := r.Header.Get("Authorization"); header != "" {
		encoded = strings.TrimPrefix(header, "Basic ")
	}
	if encoded == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="videofx"`)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return false
	}
	if err := checkCredentials(encoded, username, password); err != nil {
		w.Header().Set("WWW-Authenticate", `Basic realm="videofx"`)
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return false
	}
	return true
}
