//go:build darwin

package ioport

import "fmt"

// NativeCapturePort reports that no CGEventTap hook is wired up yet on
// macOS. A real implementation would need Accessibility permission and a
// CFRunLoop-bound event tap, both outside this package's scope (see
// spec §1).
func NativeCapturePort() (CapturePort, error) {
	return nil, fmt.Errorf("ioport: capture not implemented on darwin")
}

// NativeSynthesizePort mirrors NativeCapturePort for the apply side.
func NativeSynthesizePort() (SynthesizePort, error) {
	return nil, fmt.Errorf("ioport: input synthesis not implemented on darwin")
}

// NativeScreenProbe mirrors NativeCapturePort for resolution queries.
func NativeScreenProbe() (ScreenProbe, error) {
	return nil, fmt.Errorf("ioport: screen probe not implemented on darwin")
}
