package capture

import "sync"

// vkName classifies a raw virtual-key code the way a CapturePort
// implementation is expected to normalize it (Windows VK_ numbering,
// which every platform backend maps its native codes onto before
// handing events to the core). Only the names the emergency-key
// allowlist cares about are classified; everything else returns "".
func vkName(vk uint32) string {
	switch vk {
	case 0x11, 0xA2, 0xA3:
		return "CTRL"
	case 0x12, 0xA4, 0xA5:
		return "ALT"
	case 0x10, 0xA0, 0xA1:
		return "SHIFT"
	case 0x5B, 0x5C:
		return "WIN"
	case 0x1B:
		return "ESC"
	case 0x09:
		return "TAB"
	case 0x2E:
		return "DELETE"
	case 0x91:
		return "SCROLLLOCK"
	case 0x73:
		return "F4"
	}
	return ""
}

// keyState tracks which classified keys are currently held, mirroring
// hotkey.Manager's currentState map but scoped to the small fixed set
// vkName recognizes.
type keyState struct {
	mu   sync.Mutex
	held map[string]bool
}

func newKeyState() *keyState {
	return &keyState{held: make(map[string]bool)}
}

func (k *keyState) update(name string, down bool) {
	if name == "" {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if down {
		k.held[name] = true
	} else {
		delete(k.held, name)
	}
}

func (k *keyState) isHeld(name string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.held[name]
}

// isEmergencyKey reports whether a key event must never be blocked or
// forwarded as-is to the target: Ctrl, Alt, Delete, ScrollLock, and
// Win are always exempt on their own; Esc, Tab, and F4 are exempt only
// as part of the composite chords the allowlist names (Ctrl+Shift+Esc,
// Ctrl+Alt+Esc, Alt+Tab, Alt+F4, Ctrl+Alt+Delete).
func isEmergencyKey(name string, held *keyState) bool {
	switch name {
	case "CTRL", "ALT", "DELETE", "SCROLLLOCK", "WIN":
		return true
	case "ESC":
		return held.isHeld("CTRL") && (held.isHeld("SHIFT") || held.isHeld("ALT"))
	case "TAB", "F4":
		return held.isHeld("ALT")
	}
	return false
}

// isEscapeHatch reports the dedicated Ctrl+Alt+Escape chord that forces
// REMOTE back to LOCAL regardless of activity or transport state.
func isEscapeHatch(name string, held *keyState) bool {
	return name == "ESC" && held.isHeld("CTRL") && held.isHeld("ALT")
}
