// Package status serves a read-only diagnostics HTTP and WebSocket API:
// the current peer table, the local Role Controller's phase and active
// session state, and a live feed of changes to either. Nothing it
// exposes can mutate process state.
package status

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"inputshare/internal/discovery"
	"inputshare/internal/session"
)

var logger = log.New(log.Writer(), "Status: ", log.Flags())

// snapshotInterval is how often the live feed pushes a fresh session
// snapshot even without an observed discovery change, so a client that
// connects mid-session still converges quickly.
const snapshotInterval = 2 * time.Second

// Server exposes the peer table and Role Controller state over HTTP and
// a broadcast WebSocket feed.
type Server struct {
	controller *session.Controller
	beacon     *discovery.Beacon
	token      string

	hub *hub
}

// NewServer wires controller and beacon into a diagnostics Server. token
// is the optional bearer token required of every request except
// /health; empty disables the check.
func NewServer(controller *session.Controller, beacon *discovery.Beacon, token string) *Server {
	s := &Server{controller: controller, beacon: beacon, token: token}
	s.hub = newHub()
	beacon.OnChange(func() { s.hub.broadcastPeers(s.peerDTOs()) })
	return s
}

// Start serves the diagnostics API on port until the listener fails or
// is closed. It blocks, matching the teacher's http.Server.Serve
// convention.
func (s *Server) Start(port int) error {
	go s.hub.run()
	go s.pushLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/peers", s.handlePeers)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		logger.Printf("failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{Handler: s.authMiddleware(s.recoverMiddleware(mux))}
	logger.Printf("serving diagnostics on %s", addr)
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		logger.Printf("stopped: %v", err)
		return err
	}
	return nil
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Printf("panic recovered: %v", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

// peerDTO is the wire shape of one discovery.Peer over the diagnostics
// API; it drops the internal LayoutX/LayoutY fields, which are config
// concerns, not discovery ones.
type peerDTO struct {
	Name      string `json:"name"`
	Addr      string `json:"addr"`
	Port      uint16 `json:"port"`
	ScreenW   int32  `json:"screen_w"`
	ScreenH   int32  `json:"screen_h"`
	IsServer  bool   `json:"is_server"`
	Connected bool   `json:"connected"`
	LastSeen  string `json:"last_seen"`
}

func (s *Server) peerDTOs() []peerDTO {
	peers := s.beacon.Peers()
	out := make([]peerDTO, 0, len(peers))
	for _, p := range peers {
		out = append(out, peerDTO{
			Name:      p.Name,
			Addr:      p.Addr.String(),
			Port:      p.Port,
			ScreenW:   p.ScreenW,
			ScreenH:   p.ScreenH,
			IsServer:  p.IsServer,
			Connected: p.Connected,
			LastSeen:  p.LastSeen.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.peerDTOs())
}

type sessionDTO struct {
	Phase        string `json:"phase"`
	HasSession   bool   `json:"has_session"`
	ControlState string `json:"control_state,omitempty"`
	Role         string `json:"role,omitempty"`
}

func (s *Server) sessionDTO() sessionDTO {
	dto := sessionDTO{Phase: s.controller.Phase().String()}
	sess := s.controller.Session()
	if sess == nil {
		return dto
	}
	dto.HasSession = true
	dto.ControlState = sess.ControlState().String()
	switch sess.Role() {
	case session.RoleController:
		dto.Role = "controller"
	case session.RoleTarget:
		dto.Role = "target"
	}
	return dto
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.sessionDTO())
}

func (s *Server) pushLoop() {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for range ticker.C {
		s.hub.broadcastSession(s.sessionDTO())
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Printf("encode response: %v", err)
	}
}
