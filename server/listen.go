// File: server/listen.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"net"
	"syscall"
)

// listen binds cfg.ListenAddr, applying socket options before bind.
func listen(ctx context.Context, cfg *Config) (net.Listener, error) {
	lc := net.ListenConfig{}
	if cfg.ReuseAddr {
		lc.Control = func(_, _ string, rc syscall.RawConn) error {
			var serr error
			if err := rc.Control(func(fd uintptr) { serr = setReuseAddr(fd) }); err != nil {
				return err
			}
			return serr
		}
	}
	return lc.Listen(ctx, "tcp", cfg.ListenAddr)
}
