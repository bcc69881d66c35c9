//go:build unix

package server

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

func dualStackControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0)
	})
	if err != nil {
		return err
	}
	if sockErr != nil {
		return fmt.Errorf("clear IPV6_V6ONLY on %s: %w", address, sockErr)
	}
	return nil
}
