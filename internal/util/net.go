package util

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

// CreateListener opens a TCP listening socket on the given address.
// Only TCP network types are supported; the serving layer owns the
// returned listener and is responsible for closing it.
func CreateListener(network, address string) (net.Listener, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("unsupported network type: %s, only 'tcp', 'tcp4', or 'tcp6' are supported", network)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on %s %s: %w", network, address, err)
	}
	return listener, nil
}

// IsAddrInUse reports whether err indicates that a listen address is
// already bound by another socket.
func IsAddrInUse(err error) bool {
	if err == nil {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(err, &sysErr) {
		if sysErr.Err == syscall.EADDRINUSE {
			return true
		}
	}
	// Fallback for wrapped error types that only present as a string,
	// e.g. *net.OpError chains.
	return strings.Contains(strings.ToLower(err.Error()), "address already in use")
}
