//go:build !unix

package server

import (
	"errors"
	"syscall"
)

// Without a portable way to clear IPV6_V6ONLY here, defer to the "tcp"
// fallback, which the runtime already makes dual-stack where it can.
func dualStackControl(network, address string, c syscall.RawConn) error {
	return errors.New("dual-stack socket option not supported on this platform")
}
