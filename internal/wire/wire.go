// Package wire implements the framed binary protocol exchanged over a
// Session: a fixed header followed by one typed, little-endian payload.
package wire

import (
	"encoding/binary"
	"errors"
)

// Version is the only protocol version this codec accepts.
const Version uint16 = 1

// HeaderSize is the on-wire size of Header in bytes.
const HeaderSize = 2 + 1 + 4 + 2

// MaxPayloadSize is the largest payload_size the codec will accept.
const MaxPayloadSize = 65535

// EventType identifies the payload that follows a Header.
type EventType uint8

const (
	MouseMove    EventType = 1
	MouseButton  EventType = 2
	MouseScroll  EventType = 3
	KeyPress     EventType = 4
	KeyRelease   EventType = 5
	Clipboard    EventType = 6
	Keepalive    EventType = 7
	ScreenInfo   EventType = 8
	SwitchScreen EventType = 9
)

// MouseButtonID enumerates the button field of a MouseButton payload.
type MouseButtonID uint8

const (
	ButtonLeft   MouseButtonID = 1
	ButtonMiddle MouseButtonID = 2
	ButtonRight  MouseButtonID = 3
	ButtonX1     MouseButtonID = 4
	ButtonX2     MouseButtonID = 5
)

// Edge identifies one of the four screen boundaries.
type Edge uint8

const (
	EdgeNone   Edge = 0
	EdgeLeft   Edge = 1
	EdgeRight  Edge = 2
	EdgeTop    Edge = 3
	EdgeBottom Edge = 4
)

// Opposite returns the edge a controller exits through its mirror image
// on the target — the edge the target should treat as the entry point.
func (e Edge) Opposite() Edge {
	switch e {
	case EdgeLeft:
		return EdgeRight
	case EdgeRight:
		return EdgeLeft
	case EdgeTop:
		return EdgeBottom
	case EdgeBottom:
		return EdgeTop
	default:
		return EdgeNone
	}
}

// Header is the fixed 9-byte frame prefix, little-endian on the wire.
type Header struct {
	Version     uint16
	Type        EventType
	TimestampMS uint32
	PayloadSize uint16
}

// Frame is a decoded header plus its typed payload. Exactly one of the
// payload fields is meaningful, selected by Type; Unknown holds the raw
// bytes of a payload whose type this codec does not recognize.
type Frame struct {
	Header       Header
	MouseMove    MouseMoveData
	MouseButton  MouseButtonData
	MouseScroll  MouseScrollData
	Key          KeyData
	ScreenInfo   ScreenInfoData
	SwitchScreen SwitchScreenData
	Unknown      []byte
}

type MouseMoveData struct {
	X, Y   int32
	DX, DY int32
}

type MouseButtonData struct {
	Button  MouseButtonID
	Pressed bool
}

type MouseScrollData struct {
	DX, DY int32
}

type KeyData struct {
	VK    uint32
	Scan  uint32
	Flags uint32
}

type ScreenInfoData struct {
	Width, Height int32
	X, Y          int32
}

type SwitchScreenData struct {
	Edge     Edge
	Position int32
}

// fixedSize returns the minimum payload size for a known event type.
// Unknown types have no fixed size requirement — the header's declared
// size is trusted and the payload is skipped.
func fixedSize(t EventType) (int, bool) {
	switch t {
	case MouseMove:
		return 16, true
	case MouseButton:
		return 2, true
	case MouseScroll:
		return 8, true
	case KeyPress, KeyRelease:
		return 12, true
	case Clipboard:
		return 0, true
	case Keepalive:
		return 0, true
	case ScreenInfo:
		return 16, true
	case SwitchScreen:
		return 5, true
	default:
		return 0, false
	}
}

var (
	// ErrBadVersion is returned by Decode when the header's version field
	// does not match Version.
	ErrBadVersion = errors.New("wire: unsupported version")
	// ErrPayloadTooLarge is returned when payload_size exceeds MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("wire: payload size exceeds maximum")
	// ErrPayloadTooSmall is returned when payload_size is smaller than the
	// type's fixed payload size.
	ErrPayloadTooSmall = errors.New("wire: payload size smaller than type requires")
	// ErrShortBuffer is returned when the supplied buffer does not hold a
	// full header plus the declared payload.
	ErrShortBuffer = errors.New("wire: buffer shorter than declared frame")
)

// Encode serializes a Frame to wire bytes. The caller need not set
// Header.PayloadSize or Header.Version; Encode computes and overwrites
// them from the payload in use.
func Encode(f Frame, timestampMS uint32) []byte {
	var payload []byte

	switch f.Header.Type {
	case MouseMove:
		payload = make([]byte, 16)
		binary.LittleEndian.PutUint32(payload[0:4], uint32(f.MouseMove.X))
		binary.LittleEndian.PutUint32(payload[4:8], uint32(f.MouseMove.Y))
		binary.LittleEndian.PutUint32(payload[8:12], uint32(f.MouseMove.DX))
		binary.LittleEndian.PutUint32(payload[12:16], uint32(f.MouseMove.DY))
	case MouseButton:
		payload = make([]byte, 2)
		payload[0] = byte(f.MouseButton.Button)
		if f.MouseButton.Pressed {
			payload[1] = 1
		}
	case MouseScroll:
		payload = make([]byte, 8)
		binary.LittleEndian.PutUint32(payload[0:4], uint32(f.MouseScroll.DX))
		binary.LittleEndian.PutUint32(payload[4:8], uint32(f.MouseScroll.DY))
	case KeyPress, KeyRelease:
		payload = make([]byte, 12)
		binary.LittleEndian.PutUint32(payload[0:4], f.Key.VK)
		binary.LittleEndian.PutUint32(payload[4:8], f.Key.Scan)
		binary.LittleEndian.PutUint32(payload[8:12], f.Key.Flags)
	case Clipboard, Keepalive:
		payload = nil
	case ScreenInfo:
		payload = make([]byte, 16)
		binary.LittleEndian.PutUint32(payload[0:4], uint32(f.ScreenInfo.Width))
		binary.LittleEndian.PutUint32(payload[4:8], uint32(f.ScreenInfo.Height))
		binary.LittleEndian.PutUint32(payload[8:12], uint32(f.ScreenInfo.X))
		binary.LittleEndian.PutUint32(payload[12:16], uint32(f.ScreenInfo.Y))
	case SwitchScreen:
		payload = make([]byte, 5)
		payload[0] = byte(f.SwitchScreen.Edge)
		binary.LittleEndian.PutUint32(payload[1:5], uint32(f.SwitchScreen.Position))
	default:
		payload = f.Unknown
	}

	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint16(buf[0:2], Version)
	buf[2] = byte(f.Header.Type)
	binary.LittleEndian.PutUint32(buf[3:7], timestampMS)
	binary.LittleEndian.PutUint16(buf[7:9], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	return buf
}

// DecodeHeader parses just the 9-byte header prefix, validating version
// and size bounds but not yet touching the payload.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}

	h := Header{
		Version:     binary.LittleEndian.Uint16(buf[0:2]),
		Type:        EventType(buf[2]),
		TimestampMS: binary.LittleEndian.Uint32(buf[3:7]),
		PayloadSize: binary.LittleEndian.Uint16(buf[7:9]),
	}

	if h.Version != Version {
		return h, ErrBadVersion
	}
	if h.PayloadSize > MaxPayloadSize {
		return h, ErrPayloadTooLarge
	}
	if min, known := fixedSize(h.Type); known && int(h.PayloadSize) < min {
		return h, ErrPayloadTooSmall
	}

	return h, nil
}

// Decode parses a full frame (header + payload) from buf. buf must be
// exactly HeaderSize+header.PayloadSize bytes, as delivered by a single
// Session.RecvExact call driven by a header decoded with DecodeHeader.
func Decode(buf []byte) (Frame, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return Frame{}, err
	}

	payload := buf[HeaderSize:]
	if len(payload) != int(h.PayloadSize) {
		return Frame{}, ErrShortBuffer
	}

	f := Frame{Header: h}

	switch h.Type {
	case MouseMove:
		f.MouseMove = MouseMoveData{
			X:  int32(binary.LittleEndian.Uint32(payload[0:4])),
			Y:  int32(binary.LittleEndian.Uint32(payload[4:8])),
			DX: int32(binary.LittleEndian.Uint32(payload[8:12])),
			DY: int32(binary.LittleEndian.Uint32(payload[12:16])),
		}
	case MouseButton:
		f.MouseButton = MouseButtonData{
			Button:  MouseButtonID(payload[0]),
			Pressed: payload[1] != 0,
		}
	case MouseScroll:
		f.MouseScroll = MouseScrollData{
			DX: int32(binary.LittleEndian.Uint32(payload[0:4])),
			DY: int32(binary.LittleEndian.Uint32(payload[4:8])),
		}
	case KeyPress, KeyRelease:
		f.Key = KeyData{
			VK:    binary.LittleEndian.Uint32(payload[0:4]),
			Scan:  binary.LittleEndian.Uint32(payload[4:8]),
			Flags: binary.LittleEndian.Uint32(payload[8:12]),
		}
	case Clipboard, Keepalive:
		// No payload fields; reserved/empty.
	case ScreenInfo:
		f.ScreenInfo = ScreenInfoData{
			Width:  int32(binary.LittleEndian.Uint32(payload[0:4])),
			Height: int32(binary.LittleEndian.Uint32(payload[4:8])),
			X:      int32(binary.LittleEndian.Uint32(payload[8:12])),
			Y:      int32(binary.LittleEndian.Uint32(payload[12:16])),
		}
	case SwitchScreen:
		f.SwitchScreen = SwitchScreenData{
			Edge:     Edge(payload[0]),
			Position: int32(binary.LittleEndian.Uint32(payload[1:5])),
		}
	default:
		// Soft error: unknown type, payload retained but not interpreted.
		f.Unknown = append([]byte(nil), payload...)
	}

	return f, nil
}
