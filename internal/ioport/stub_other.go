//go:build !windows && !darwin

package ioport

import "fmt"

// NativeCapturePort returns an error on platforms this repo does not
// implement a raw-input hook for. The hook/injection primitives are
// explicitly out of scope for the core (see spec §1); this stub documents
// the contract boundary rather than papering over it.
func NativeCapturePort() (CapturePort, error) {
	return nil, fmt.Errorf("ioport: capture not supported on this platform")
}

// NativeSynthesizePort mirrors NativeCapturePort for the apply side.
func NativeSynthesizePort() (SynthesizePort, error) {
	return nil, fmt.Errorf("ioport: synthesis not supported on this platform")
}

// NativeScreenProbe mirrors NativeCapturePort for resolution queries.
func NativeScreenProbe() (ScreenProbe, error) {
	return nil, fmt.Errorf("ioport: screen probe not supported on this platform")
}
