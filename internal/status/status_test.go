package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inputshare/internal/discovery"
	"inputshare/internal/session"
	"inputshare/internal/transport"
)

func newTestServer(token string) (*Server, *discovery.Beacon, *session.Controller) {
	beacon := discovery.New(discovery.Self{Name: "local", Port: 24800, ScreenW: 1920, ScreenH: 1080})
	controller := session.NewController()
	return NewServer(controller, beacon, token), beacon, controller
}

func TestHandleHealthAlwaysAllowed(t *testing.T) {
	s, _, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.authMiddleware(http.HandlerFunc(s.handleHealth)).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	s, _, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/api/peers", nil)
	w := httptest.NewRecorder()
	s.authMiddleware(http.HandlerFunc(s.handlePeers)).ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401", w.Code)
	}
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	s, _, _ := newTestServer("secret")
	req := httptest.NewRequest(http.MethodGet, "/api/peers", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w := httptest.NewRecorder()
	s.authMiddleware(http.HandlerFunc(s.handlePeers)).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", w.Code)
	}
}

func TestAuthMiddlewareDisabledWhenTokenEmpty(t *testing.T) {
	s, _, _ := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/api/peers", nil)
	w := httptest.NewRecorder()
	s.authMiddleware(http.HandlerFunc(s.handlePeers)).ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d, want 200 with no token configured", w.Code)
	}
}

func TestRecoverMiddlewareCatchesPanic(t *testing.T) {
	s, _, _ := newTestServer("")
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	w := httptest.NewRecorder()
	s.recoverMiddleware(panicky).ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500 after recovered panic", w.Code)
	}
}

func TestHandlePeersReturnsJSON(t *testing.T) {
	s, _, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/api/peers", nil)
	w := httptest.NewRecorder()
	s.handlePeers(w, req)

	var peers []peerDTO
	if err := json.Unmarshal(w.Body.Bytes(), &peers); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(peers) != 1 || peers[0].Name != "local" {
		t.Errorf("got %+v, want one peer named local", peers)
	}
}

func TestHandleSessionReflectsControllerPhase(t *testing.T) {
	s, _, controller := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	w := httptest.NewRecorder()
	s.handleSession(w, req)
	var idle sessionDTO
	if err := json.Unmarshal(w.Body.Bytes(), &idle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if idle.Phase != "Idle" || idle.HasSession {
		t.Errorf("got %+v, want Idle with no session", idle)
	}

	if err := controller.BeginServing(); err != nil {
		t.Fatalf("begin serving: %v", err)
	}
	sess := session.New(&transport.Session{}, session.RoleController)
	sess.SetControlState(session.Remote)
	controller.SetSession(sess)

	w = httptest.NewRecorder()
	s.handleSession(w, req)
	var serving sessionDTO
	if err := json.Unmarshal(w.Body.Bytes(), &serving); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if serving.Phase != "Serving" || !serving.HasSession || serving.ControlState != "REMOTE" || serving.Role != "controller" {
		t.Errorf("got %+v, want Serving/REMOTE/controller", serving)
	}
}

func TestHubBroadcastDeliversToRegisteredClient(t *testing.T) {
	h := newHub()
	go h.run()

	c := &wsClient{hub: h, send: make(chan []byte, 1), ip: "test"}
	h.register <- c

	h.broadcastPeers([]peerDTO{{Name: "remote"}})

	select {
	case msg := <-c.send:
		var fm feedMessage
		if err := json.Unmarshal(msg, &fm); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if fm.Type != "peers" {
			t.Errorf("got type %q, want peers", fm.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected broadcast to reach registered client")
	}
}

func TestHubUnregisterClosesSendChannel(t *testing.T) {
	h := newHub()
	go h.run()

	c := &wsClient{hub: h, send: make(chan []byte, 1), ip: "test"}
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("expected send channel to be closed after unregister")
		}
	case <-time.After(time.Second):
		t.Fatal("expected send channel to close promptly")
	}
}
