package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"spyroom/internal/domain"
)

// Server is the relay's HTTP surface: a health endpoint plus the per-topic
// websocket route peers dial
type Server struct {
	server   *http.Server
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewServer creates a relay server listening on addr
func NewServer(addr string, hub *Hub, logger *slog.Logger) *Server {
	s := &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Peers dial from anywhere; the relay carries opaque data only
				return true
			},
		},
		logger: logger,
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.GET("/rooms/:topic", s.handleRoom)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start begins serving; it blocks until the server stops
func (s *Server) Start() error {
	s.logger.Info("relay listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// handleHealth reports relay liveness and load
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"topics": s.hub.TopicCount(),
		"peers":  s.hub.TotalPeerCount(),
	})
}

// handleRoom upgrades a peer connection and subscribes it to its topic
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	topic := domain.NormalizeRoomID(ps.ByName("topic"))
	if topic == "" {
		http.Error(w, "invalid topic", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.Join(topic, conn)
}
