//go:build unix

// File: server/sockopt_unix.go
// Author: momentics <momentics@gmail.com>

package server

import "golang.org/x/sys/unix"

func setReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}
