// Package memzero wipes key material from memory on a best-effort basis.
package memzero

import "runtime"

// Zero overwrites each buffer with zeros.
//
//go:noinline
func Zero(bufs ...[]byte) {
	for _, b := range bufs {
		clear(b)
		runtime.KeepAlive(b)
	}
}
