// inputshare shares one keyboard and mouse across two LAN hosts: a
// controller, whose local input is captured and forwarded once the
// cursor crosses a configured screen edge, and a target, which
// receives and synthesizes that input until the cursor returns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"inputshare/internal/capture"
	"inputshare/internal/config"
	"inputshare/internal/discovery"
	"inputshare/internal/ioport"
	"inputshare/internal/layout"
	"inputshare/internal/session"
	"inputshare/internal/status"
	"inputshare/internal/synth"
	"inputshare/internal/transport"
	"inputshare/internal/wire"
)

var version = "0.1.0"

// reconnectBackoff is the target role's fixed retry interval (spec §7).
const reconnectBackoff = 3 * time.Second

func main() {
	var (
		port          = flag.Int("port", 24800, "Session Transport TCP port")
		discoveryPort = flag.Int("discovery-port", discovery.DefaultPort, "Discovery Beacon UDP port")
		edgeFlag      = flag.String("edge", "right", "controller role: local exit edge used for the first discovered peer (left|right|top|bottom)")
		name          = flag.String("name", "", "display name advertised to discovery (default: hostname)")
		statusPort    = flag.Int("status-port", 0, "diagnostics HTTP/WebSocket port (0 disables)")
		showVersion   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("inputshare version %s\n", version)
		return
	}

	edge, err := parseEdge(*edgeFlag)
	if err != nil {
		log.Fatalf("Main: %v", err)
	}

	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Main: failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Main: warning: failed to load config: %v", err)
	}

	displayName := *name
	if displayName == "" {
		if h, err := os.Hostname(); err == nil {
			displayName = h
		} else {
			displayName = "inputshare-host"
		}
	}

	serverHost := flag.Arg(0)

	screen, err := ioport.NativeScreenProbe()
	if err != nil {
		log.Fatalf("Main: screen probe unavailable: %v", err)
	}
	w, h := screen.ScreenSize()

	model := layout.New()
	model.Set(displayName, layout.Rect{X: 0, Y: 0, W: w, H: h})
	for peerName, entry := range cfgMgr.Get().Layout {
		model.Set(peerName, layout.Rect{X: entry.X, Y: entry.Y, W: entry.W, H: entry.H})
	}

	beacon := discovery.New(discovery.Self{
		Name:     displayName,
		Port:     uint16(*port),
		ScreenW:  int32(w),
		ScreenH:  int32(h),
		IsServer: serverHost == "",
	})
	if err := beacon.Start(*discoveryPort); err != nil {
		log.Fatalf("Main: discovery: %v", err)
	}
	defer beacon.Stop()

	beacon.OnChange(func() { autoPlaceNewPeers(beacon, model, cfgMgr, displayName, edge) })

	ctrl := session.NewController()

	if *statusPort != 0 {
		statusSrv := status.NewServer(ctrl, beacon, cfgMgr.Get().General.APIToken)
		go func() {
			if err := statusSrv.Start(*statusPort); err != nil {
				log.Printf("Main: status server stopped: %v", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	if serverHost == "" {
		go func() {
			defer wg.Done()
			runController(ctrl, beacon, model, screen, displayName, *port, done)
		}()
	} else {
		go func() {
			defer wg.Done()
			runTarget(ctrl, beacon, screen, serverHost, *port, done)
		}()
	}

	<-sigCh
	log.Println("Main: shutting down...")
	ctrl.BeginDraining()
	close(done)
	wg.Wait()
	ctrl.Reset()

	if err := cfgMgr.Save(); err != nil {
		log.Printf("Main: warning: failed to save config: %v", err)
	}
}

func parseEdge(s string) (wire.Edge, error) {
	switch strings.ToLower(s) {
	case "left":
		return wire.EdgeLeft, nil
	case "right":
		return wire.EdgeRight, nil
	case "top":
		return wire.EdgeTop, nil
	case "bottom":
		return wire.EdgeBottom, nil
	default:
		return wire.EdgeNone, fmt.Errorf("invalid --edge value %q (want left|right|top|bottom)", s)
	}
}

// autoPlaceNewPeers arranges any peer the Peer Layout Model has not
// seen before: the very first one is placed adjacent to the local
// rectangle on the CLI-selected edge (a convenience for the common
// two-host case — config.go documents --edge as "used only until the
// Peer Layout Model reports an actual adjacency"); every later peer
// falls back to the model's own right-of-rightmost auto-placement
// (spec §4.7), since disambiguating further neighbors needs real GUI
// arrangement this core does not provide.
func autoPlaceNewPeers(beacon *discovery.Beacon, model *layout.Model, cfgMgr *config.Manager, localName string, edge wire.Edge) {
	local, ok := model.Get(localName)
	if !ok {
		return
	}

	known := model.All()
	hasOtherPeer := len(known) > 1

	for _, p := range beacon.Peers() {
		if p.Name == localName {
			continue
		}
		if _, placed := known[p.Name]; placed {
			continue
		}

		var r layout.Rect
		if !hasOtherPeer {
			r = placeForEdge(local, edge, int(p.ScreenW), int(p.ScreenH))
			model.Set(p.Name, r)
			hasOtherPeer = true
		} else {
			r = model.Place(p.Name, int(p.ScreenW), int(p.ScreenH))
		}
		known[p.Name] = r
		cfgMgr.SetPeerLayout(p.Name, r.X, r.Y, r.W, r.H)
		log.Printf("Main: placed newly discovered peer %q at (%d,%d)", p.Name, r.X, r.Y)
	}
}

func placeForEdge(local layout.Rect, edge wire.Edge, w, h int) layout.Rect {
	switch edge {
	case wire.EdgeLeft:
		return layout.Rect{X: local.X - w, Y: local.Y, W: w, H: h}
	case wire.EdgeTop:
		return layout.Rect{X: local.X, Y: local.Y - h, W: w, H: h}
	case wire.EdgeBottom:
		return layout.Rect{X: local.X, Y: local.Y + local.H, W: w, H: h}
	default: // EdgeRight and EdgeNone both default to the conventional right placement
		return layout.Rect{X: local.X + local.W, Y: local.Y, W: w, H: h}
	}
}

// runController drives the Serving phase: one TCP listener accepting a
// session at a time, each wrapped with the Capture Pipeline until a
// transport failure or teardown returns the loop to accept again.
func runController(ctrl *session.Controller, beacon *discovery.Beacon, model *layout.Model, screen ioport.ScreenProbe, localName string, port int, done <-chan struct{}) {
	if err := ctrl.BeginServing(); err != nil {
		log.Printf("Controller: %v", err)
		return
	}

	capPort, err := ioport.NativeCapturePort()
	if err != nil {
		log.Fatalf("Controller: capture port unavailable: %v", err)
	}

	ln, err := transport.Listen(port)
	if err != nil {
		log.Fatalf("Controller: listen: %v", err)
	}
	defer ln.Close()
	go func() {
		<-done
		ln.Close()
	}()

	pipeline := capture.New(capPort, screen, model, localName)
	if err := pipeline.Start(); err != nil {
		log.Fatalf("Controller: capture start: %v", err)
	}
	defer pipeline.Stop()

	// lost is (re)armed under lostMu before each AttachSession so the
	// callback below is wired before the send loop it guards can
	// possibly fire.
	var lostMu sync.Mutex
	var lost chan error
	pipeline.OnSessionLost = func(err error) {
		lostMu.Lock()
		ch := lost
		lostMu.Unlock()
		if ch != nil {
			select {
			case ch <- err:
			default:
			}
		}
	}

	for {
		select {
		case <-done:
			return
		default:
		}

		t, err := ln.Accept(context.Background())
		if err != nil {
			select {
			case <-done:
				return
			default:
				log.Printf("Controller: accept: %v", err)
				continue
			}
		}

		peerName := ""
		if remote, ok := beacon.PeerByAddr(remoteIP(t.RemoteAddr())); ok {
			peerName = remote.Name
			beacon.SetConnected(peerName, true)
		}

		sess := session.New(t, session.RoleController)
		ctrl.SetSession(sess)
		lostMu.Lock()
		lost = make(chan error, 1)
		myLost := lost
		lostMu.Unlock()
		pipeline.AttachSession(sess)

		sw, sh := screen.ScreenSize()
		info := wire.Encode(wire.Frame{
			Header:     wire.Header{Type: wire.ScreenInfo},
			ScreenInfo: wire.ScreenInfoData{Width: int32(sw), Height: int32(sh)},
		}, nowMS())
		if err := t.SendFrame(info); err != nil {
			log.Printf("Controller: failed to send SCREEN_INFO: %v", err)
		}

		select {
		case err := <-myLost:
			log.Printf("Controller: session lost: %v", err)
		case <-done:
		}

		pipeline.DetachSession()
		sess.Close()
		ctrl.SetSession(nil)
		if peerName != "" {
			beacon.SetConnected(peerName, false)
		}
	}
}

// runTarget drives the Joined phase: connect, receive+apply until the
// session ends, then retry after a fixed backoff while the process is
// running (spec §7's reconnect policy).
func runTarget(ctrl *session.Controller, beacon *discovery.Beacon, screen ioport.ScreenProbe, serverHost string, port int, done <-chan struct{}) {
	if err := ctrl.BeginJoined(); err != nil {
		log.Printf("Target: %v", err)
		return
	}

	synthPort, err := ioport.NativeSynthesizePort()
	if err != nil {
		log.Fatalf("Target: synthesize port unavailable: %v", err)
	}

	addr := fmt.Sprintf("%s:%d", serverHost, port)
	pipeline := synth.New(synthPort, screen)

	for {
		select {
		case <-done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), transport.DefaultConnectTimeout)
		t, err := transport.Dial(ctx, addr)
		cancel()
		if err != nil {
			log.Printf("Target: connect to %s failed, retrying in %s: %v", addr, reconnectBackoff, err)
			if !sleepOrDone(reconnectBackoff, done) {
				return
			}
			continue
		}

		peerName := ""
		if remote, ok := beacon.PeerByAddr(remoteIP(t.RemoteAddr())); ok {
			peerName = remote.Name
			beacon.SetConnected(peerName, true)
		}

		sess := session.New(t, session.RoleTarget)
		ctrl.SetSession(sess)

		sw, sh := screen.ScreenSize()
		info := wire.Encode(wire.Frame{
			Header:     wire.Header{Type: wire.ScreenInfo},
			ScreenInfo: wire.ScreenInfoData{Width: int32(sw), Height: int32(sh)},
		}, nowMS())
		if err := t.SendFrame(info); err != nil {
			log.Printf("Target: failed to send SCREEN_INFO: %v", err)
		}

		recvDone := make(chan error, 1)
		go func() { recvDone <- pipeline.RunRecvLoop(sess) }()

		select {
		case err := <-recvDone:
			log.Printf("Target: session ended: %v", err)
		case <-done:
			<-recvDone
		}
		sess.Close()

		ctrl.SetSession(nil)
		if peerName != "" {
			beacon.SetConnected(peerName, false)
		}

		select {
		case <-done:
			return
		default:
		}
		if !sleepOrDone(reconnectBackoff, done) {
			return
		}
	}
}

func sleepOrDone(d time.Duration, done <-chan struct{}) bool {
	select {
	case <-time.After(d):
		return true
	case <-done:
		return false
	}
}

// remoteIP extracts the bare IP from a net.Addr such as the one
// returned by transport.Session.RemoteAddr, for correlating an
// established connection back to a discovery.Peer.
func remoteIP(addr net.Addr) net.IP {
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

func nowMS() uint32 {
	return uint32(time.Now().UnixMilli())
}
