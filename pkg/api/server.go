package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/collabboard/coordinator/pkg/events"
	"github.com/collabboard/coordinator/pkg/log"
	"github.com/collabboard/coordinator/pkg/metrics"
	"github.com/collabboard/coordinator/pkg/router"
	"github.com/collabboard/coordinator/pkg/task"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Server wires the board's HTTP surface: the websocket event channel and
// the read-only REST fallback.
type Server struct {
	router *router.Router
	broker *events.Broker
	tasks  *task.Service

	upgrader websocket.Upgrader
	mux      *http.ServeMux
	logger   zerolog.Logger

	httpServer *http.Server
}

// Config holds the knobs NewServer needs beyond the wired components.
type Config struct {
	// AllowedOrigin is the single CORS/websocket origin permitted to
	// connect. Empty allows any origin (development default).
	AllowedOrigin string
}

// NewServer builds the HTTP mux for the board's external interfaces.
func NewServer(r *router.Router, broker *events.Broker, tasks *task.Service, cfg Config) *Server {
	s := &Server{
		router: r,
		broker: broker,
		tasks:  tasks,
		logger: log.WithComponent("api"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(req *http.Request) bool {
				if cfg.AllowedOrigin == "" {
					return true
				}
				return req.Header.Get("Origin") == cfg.AllowedOrigin
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebsocket)
	mux.HandleFunc("/tasks", s.handleListTasks)
	mux.HandleFunc("/tasks/", s.handleGetTask)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	s.mux = mux

	return s
}

// Handler returns the HTTP handler for embedding in a listener.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves the HTTP surface at addr. Blocks until the server stops
// via Shutdown or fails to bind.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // websocket connections are long-lived
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer = srv
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener started by Start, letting any
// in-flight request (including open websocket connections) finish
// within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tasks, err := s.tasks.GetAllTasks(r.Context())
	if err != nil {
		http.Error(w, "failed to list tasks", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(tasks)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.URL.Path[len("/tasks/"):]
	if id == "" {
		http.Error(w, "task id required", http.StatusBadRequest)
		return
	}

	tasks, err := s.tasks.GetAllTasks(r.Context())
	if err != nil {
		http.Error(w, "failed to look up task", http.StatusInternalServerError)
		return
	}
	for _, t := range tasks {
		if t.ID == id {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(t)
			return
		}
	}
	http.Error(w, "task not found", http.StatusNotFound)
}

// handleWebsocket upgrades the connection, registers it with the event
// broker and presence registry, and runs its read/write pumps until the
// client disconnects.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	connID := uuid.New().String()
	displayName := connID
	if name := r.URL.Query().Get("displayName"); name != "" {
		displayName = name
	}

	sub := s.broker.Register(connID)
	metrics.ConnectionsTotal.Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := s.router.Connect(ctx, connID, displayName); err != nil {
		s.logger.Warn().Err(err).Str("connection_id", connID).Msg("connect failed")
	}

	go s.writePump(conn, sub)
	s.readPump(ctx, conn, connID)

	s.broker.Unregister(connID)
	s.router.Disconnect(connID)
	metrics.ConnectionsTotal.Dec()
	_ = conn.Close()
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, connID string) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env events.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn().Err(err).Str("connection_id", connID).Msg("websocket read error")
			}
			return
		}

		if err := s.router.Dispatch(ctx, connID, env); err != nil {
			s.logger.Debug().Err(err).Str("connection_id", connID).Str("type", string(env.Type)).Msg("dispatch rejected")
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sub events.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-sub:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
