package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/publisher"
	"github.com/fortuna/iplstats/internal/store"
)

// Message types sent to subscribers
const (
	TypeDatasetCurrent = "dataset.current"
	TypeDatasetLoaded  = "dataset.loaded"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // read-only notifications, same policy as the REST CORS headers
	},
}

// Message is the envelope pushed to subscribers
type Message struct {
	Type string                  `json:"type"`
	Data publisher.DatasetLoaded `json:"data"`
}

// SnapshotSource returns the match table currently served, or nil
type SnapshotSource interface {
	Current() *store.Snapshot
}

// Server pushes dataset reload notifications to websocket subscribers
type Server struct {
	port     string
	server   *http.Server
	hub      *Hub
	snapshot SnapshotSource
}

// NewServer creates a new WebSocket server. snapshot may be nil.
func NewServer(snapshot SnapshotSource) *Server {
	return &Server{
		hub:      NewHub(),
		snapshot: snapshot,
	}
}

// Handler returns the websocket routes without starting a listener
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/dataset", s.handleDataset)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start runs the hub and serves websocket connections on port
func (s *Server) Start(port string) error {
	s.port = port

	// Start the hub in a goroutine
	go s.hub.Run()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

// Hub returns the subscriber hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// handleDataset subscribes a client to reload notifications. The current
// table summary is sent first when one is loaded.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade websocket connection")
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	if s.snapshot != nil {
		if snap := s.snapshot.Current(); snap != nil {
			if body, err := encode(TypeDatasetCurrent, snap); err == nil {
				client.send <- body
			}
		}
	}

	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

// PublishDatasetLoaded broadcasts a reload to every subscriber
func (s *Server) PublishDatasetLoaded(ctx context.Context, snap *store.Snapshot) error {
	body, err := encode(TypeDatasetLoaded, snap)
	if err != nil {
		return err
	}
	s.hub.Broadcast(body)
	return nil
}

// Shutdown disconnects subscribers and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func encode(kind string, snap *store.Snapshot) ([]byte, error) {
	return json.Marshal(Message{Type: kind, Data: publisher.NewDatasetLoaded(snap)})
}
