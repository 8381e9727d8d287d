package wire

import (
	"math"
	"testing"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	buf := Encode(f, 12345)
	out, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return out
}

func TestRoundTripMouseMoveBoundaryValues(t *testing.T) {
	in := Frame{
		Header: Header{Type: MouseMove},
		MouseMove: MouseMoveData{
			X: math.MinInt32, Y: math.MaxInt32,
			DX: math.MaxInt32, DY: math.MinInt32,
		},
	}
	out := roundTrip(t, in)
	if out.MouseMove != in.MouseMove {
		t.Errorf("got %+v, want %+v", out.MouseMove, in.MouseMove)
	}
	if out.Header.Version != Version || out.Header.Type != MouseMove {
		t.Errorf("unexpected header: %+v", out.Header)
	}
}

func TestRoundTripMouseButton(t *testing.T) {
	in := Frame{
		Header:      Header{Type: MouseButton},
		MouseButton: MouseButtonData{Button: ButtonX2, Pressed: true},
	}
	out := roundTrip(t, in)
	if out.MouseButton != in.MouseButton {
		t.Errorf("got %+v, want %+v", out.MouseButton, in.MouseButton)
	}
}

func TestRoundTripMouseScroll(t *testing.T) {
	in := Frame{
		Header:      Header{Type: MouseScroll},
		MouseScroll: MouseScrollData{DX: math.MinInt32, DY: math.MaxInt32},
	}
	out := roundTrip(t, in)
	if out.MouseScroll != in.MouseScroll {
		t.Errorf("got %+v, want %+v", out.MouseScroll, in.MouseScroll)
	}
}

func TestRoundTripKeyPressAndRelease(t *testing.T) {
	for _, typ := range []EventType{KeyPress, KeyRelease} {
		in := Frame{
			Header: Header{Type: typ},
			Key:    KeyData{VK: math.MaxUint32, Scan: 0, Flags: 0xDEADBEEF},
		}
		out := roundTrip(t, in)
		if out.Key != in.Key {
			t.Errorf("type %v: got %+v, want %+v", typ, out.Key, in.Key)
		}
	}
}

func TestRoundTripKeepaliveAndClipboard(t *testing.T) {
	for _, typ := range []EventType{Keepalive, Clipboard} {
		in := Frame{Header: Header{Type: typ}}
		out := roundTrip(t, in)
		if out.Header.Type != typ || out.Header.PayloadSize != 0 {
			t.Errorf("type %v: got header %+v", typ, out.Header)
		}
	}
}

func TestRoundTripScreenInfo(t *testing.T) {
	in := Frame{
		Header:     Header{Type: ScreenInfo},
		ScreenInfo: ScreenInfoData{Width: 1920, Height: 1080, X: math.MinInt32, Y: math.MaxInt32},
	}
	out := roundTrip(t, in)
	if out.ScreenInfo != in.ScreenInfo {
		t.Errorf("got %+v, want %+v", out.ScreenInfo, in.ScreenInfo)
	}
}

func TestRoundTripSwitchScreen(t *testing.T) {
	in := Frame{
		Header:       Header{Type: SwitchScreen},
		SwitchScreen: SwitchScreenData{Edge: EdgeBottom, Position: math.MaxInt32},
	}
	out := roundTrip(t, in)
	if out.SwitchScreen != in.SwitchScreen {
		t.Errorf("got %+v, want %+v", out.SwitchScreen, in.SwitchScreen)
	}
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	buf := Encode(Frame{Header: Header{Type: Keepalive}}, 0)
	buf[0] = 2 // corrupt version low byte
	if _, err := Decode(buf); err != ErrBadVersion {
		t.Errorf("got %v, want ErrBadVersion", err)
	}
}

func TestDecodeAcceptsMaxPayloadSize(t *testing.T) {
	hdr := make([]byte, HeaderSize)
	hdr[0] = 1 // version lo
	hdr[2] = byte(Keepalive)
	hdr[7] = 0xff
	hdr[8] = 0xff // payload_size = 65535, which is within bounds
	// MaxPayloadSize itself must be accepted; anything larger is not
	// representable in the uint16 payload_size field.
	if _, err := DecodeHeader(hdr); err != nil {
		t.Fatalf("65535-byte Keepalive header should decode, not reject on size: %v", err)
	}
}

func TestDecodeRejectsPayloadSmallerThanFixedSize(t *testing.T) {
	buf := Encode(Frame{Header: Header{Type: MouseMove}, MouseMove: MouseMoveData{}}, 0)
	short := buf[:HeaderSize+4] // declare size via header but truncate buffer
	short[7] = 4
	short[8] = 0
	if _, err := Decode(short); err != ErrPayloadTooSmall {
		t.Errorf("got %v, want ErrPayloadTooSmall", err)
	}
}

func TestDecodeUnknownTypeIsSoftError(t *testing.T) {
	buf := make([]byte, HeaderSize+3)
	buf[0] = 1
	buf[2] = 200 // unknown type
	buf[7] = 3
	buf[8] = 0
	copy(buf[HeaderSize:], []byte{1, 2, 3})

	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("unknown type should decode without error: %v", err)
	}
	if len(f.Unknown) != 3 {
		t.Errorf("expected unknown payload retained, got %v", f.Unknown)
	}
}

func TestEdgeOpposite(t *testing.T) {
	cases := map[Edge]Edge{
		EdgeLeft: EdgeRight, EdgeRight: EdgeLeft,
		EdgeTop: EdgeBottom, EdgeBottom: EdgeTop,
		EdgeNone: EdgeNone,
	}
	for in, want := range cases {
		if got := in.Opposite(); got != want {
			t.Errorf("Opposite(%v) = %v, want %v", in, got, want)
		}
	}
}
