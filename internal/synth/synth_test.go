package synth

import (
	"testing"

	"inputshare/internal/ioport"
	"inputshare/internal/session"
	"inputshare/internal/wire"
)

func newTestPipeline(w, h int) (*Pipeline, *ioport.Loopback, *session.Session) {
	lb := ioport.NewLoopback(w, h)
	p := New(lb, lb)
	sess := session.New(nil, session.RoleTarget)
	return p, lb, sess
}

func TestSwitchScreenLeftEntrySetsCursorAndActive(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetRemoteScreen(1920, 1080)

	p.Apply(sess, wire.Frame{
		Header:       wire.Header{Type: wire.SwitchScreen},
		SwitchScreen: wire.SwitchScreenData{Edge: wire.EdgeLeft, Position: 540},
	})

	if sess.ControlState() != session.Remote {
		t.Fatal("expected ControlState REMOTE after SWITCH_SCREEN")
	}
	x, y := lb.CursorPos()
	if x != 0 || y != 540 {
		t.Errorf("got cursor (%d,%d), want (0,540)", x, y)
	}
}

func TestMouseMoveReturnTriggersDeactivation(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetRemoteScreen(1920, 1080)

	p.Apply(sess, wire.Frame{
		Header:       wire.Header{Type: wire.SwitchScreen},
		SwitchScreen: wire.SwitchScreenData{Edge: wire.EdgeLeft, Position: 540},
	})

	// Cursor at (0,540); dx=-1 pushes it back to the entry edge, which
	// must deactivate REMOTE and recenter without emitting anything
	// back over the wire (Apply has no wire side effects of its own).
	p.Apply(sess, wire.Frame{
		Header:    wire.Header{Type: wire.MouseMove},
		MouseMove: wire.MouseMoveData{DX: -1, DY: 0},
	})

	if sess.ControlState() != session.Local {
		t.Fatal("expected ControlState LOCAL after return-edge crossing")
	}
	x, y := lb.CursorPos()
	if x != 960 || y != 540 {
		t.Errorf("got cursor (%d,%d), want recenter (960,540)", x, y)
	}
}

func TestMouseMoveClampsToScreenBounds(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetRemoteScreen(1920, 1080)
	p.Apply(sess, wire.Frame{
		Header:       wire.Header{Type: wire.SwitchScreen},
		SwitchScreen: wire.SwitchScreenData{Edge: wire.EdgeTop, Position: 960},
	})

	p.Apply(sess, wire.Frame{
		Header:    wire.Header{Type: wire.MouseMove},
		MouseMove: wire.MouseMoveData{DX: 100000, DY: 100000},
	})

	x, y := lb.CursorPos()
	if x < 0 || x > 1919 || y < 0 || y > 1079 {
		t.Errorf("cursor escaped bounds: (%d,%d)", x, y)
	}
}

func TestMouseEventsDroppedWhenNotActive(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)

	p.Apply(sess, wire.Frame{
		Header:      wire.Header{Type: wire.MouseButton},
		MouseButton: wire.MouseButtonData{Button: wire.ButtonLeft, Pressed: true},
	})

	if len(lb.Applied) != 0 {
		t.Errorf("expected no applied events while inactive, got %d", len(lb.Applied))
	}
}

func TestKeyEventsAppliedWhenActive(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetControlState(session.Remote)

	p.Apply(sess, wire.Frame{
		Header: wire.Header{Type: wire.KeyPress},
		Key:    wire.KeyData{VK: 0x41, Scan: 30, Flags: 0},
	})

	if len(lb.Applied) != 1 || lb.Applied[0].VK != 0x41 || !lb.Applied[0].Pressed {
		t.Errorf("got %+v", lb.Applied)
	}
}

func TestScreenInfoStoresRemoteDimensionsWithoutActivating(t *testing.T) {
	p, _, sess := newTestPipeline(1920, 1080)

	p.Apply(sess, wire.Frame{
		Header:     wire.Header{Type: wire.ScreenInfo},
		ScreenInfo: wire.ScreenInfoData{Width: 2560, Height: 1440},
	})

	w, h := sess.RemoteScreen()
	if w != 2560 || h != 1440 {
		t.Errorf("got (%d,%d), want (2560,1440)", w, h)
	}
	if sess.ControlState() != session.Local {
		t.Error("SCREEN_INFO alone must not engage REMOTE")
	}
}

func TestSwitchScreenScalesPositionAcrossDifferentScreenSizes(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetRemoteScreen(3840, 2160) // remote is 2x local

	p.Apply(sess, wire.Frame{
		Header:       wire.Header{Type: wire.SwitchScreen},
		SwitchScreen: wire.SwitchScreenData{Edge: wire.EdgeRight, Position: 1080}, // half of remote's 2160
	})

	x, y := lb.CursorPos()
	if x != 1919 {
		t.Errorf("got x=%d, want 1919 (right edge)", x)
	}
	if y != 540 { // scaled: 1080 * 1080 / 2160 == 540
		t.Errorf("got y=%d, want 540 after scaling", y)
	}
}

func TestKeepaliveAndClipboardAreNoOps(t *testing.T) {
	p, lb, sess := newTestPipeline(1920, 1080)
	sess.SetControlState(session.Remote)

	p.Apply(sess, wire.Frame{Header: wire.Header{Type: wire.Keepalive}})
	p.Apply(sess, wire.Frame{Header: wire.Header{Type: wire.Clipboard}})

	if len(lb.Applied) != 0 {
		t.Errorf("expected no applied events for KEEPALIVE/CLIPBOARD, got %d", len(lb.Applied))
	}
}
