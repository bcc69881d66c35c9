package server

import (
	"context"
	"errors"
	"net"
	"strconv"
	"syscall"
)

// listenDualStack binds the IPv6 wildcard with IPV6_V6ONLY cleared so one
// socket accepts both address families. If that is refused for any reason
// other than the port being taken, it falls back to the platform's default
// "tcp" listener, which may be IPv4 only.
func listenDualStack(ctx context.Context, port int) (net.Listener, error) {
	lc := net.ListenConfig{Control: dualStackControl}
	ln, err := lc.Listen(ctx, "tcp6", net.JoinHostPort("::", strconv.Itoa(port)))
	if err == nil {
		return ln, nil
	}
	if errors.Is(err, syscall.EADDRINUSE) {
		return nil, err
	}

	var fallback net.ListenConfig
	return fallback.Listen(ctx, "tcp", net.JoinHostPort("", strconv.Itoa(port)))
}
