//go:build windows

package ioport

import (
	"fmt"

	"golang.org/x/sys/windows"
)

var user32 = windows.NewLazySystemDLL("user32.dll")

// probeUser32 checks that user32.dll is reachable, surfacing the real
// Win32 error through windows.Errno the way hotkey_windows.go inspects
// syscall.Errno after a failed SetWindowsHookEx call. It exists so a
// future low-level-hook implementation has a proven-working DLL handle
// to build on; this package does not install the hook itself (spec §1
// scopes the hook installation primitive out of the core).
func probeUser32() error {
	if err := user32.Load(); err != nil {
		return fmt.Errorf("ioport: user32.dll unavailable: %w", err)
	}
	return nil
}

// NativeCapturePort reports that no low-level keyboard/mouse hook is
// wired up yet on Windows, after confirming the DLL it would need is at
// least loadable.
func NativeCapturePort() (CapturePort, error) {
	if err := probeUser32(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("ioport: capture hook not implemented on windows")
}

// NativeSynthesizePort mirrors NativeCapturePort for the apply side.
func NativeSynthesizePort() (SynthesizePort, error) {
	if err := probeUser32(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("ioport: input synthesis not implemented on windows")
}

// NativeScreenProbe mirrors NativeCapturePort for resolution queries.
func NativeScreenProbe() (ScreenProbe, error) {
	if err := probeUser32(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("ioport: screen probe not implemented on windows")
}
