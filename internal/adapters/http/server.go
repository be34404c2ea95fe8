package httpadapter

import (
	"fmt"
	"net"

	"golang.org/x/net/netutil"
)

// Listen opens a TCP listener that accepts at most maxConns simultaneous
// connections. A non-positive maxConns leaves it uncapped.
func Listen(addr string, maxConns int) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if maxConns <= 0 {
		return ln, nil
	}
	return netutil.LimitListener(ln, maxConns), nil
}
