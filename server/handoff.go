// File: server/handoff.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection hand-off file read by local clients to find the server.

package server

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// writeHandoff writes ServerIP and ServerPort lines to path, creating parent
// directories. It returns the IP it wrote.
func writeHandoff(path, advertiseIP string, addr net.Addr) (string, error) {
	port := 0
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}
	ip := advertiseIP
	if ip == "" {
		ip = LocalIPv4()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ip, fmt.Errorf("handoff: %w", err)
		}
	}
	content := fmt.Sprintf("ServerIP=%s\nServerPort=%d\n", ip, port)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return ip, fmt.Errorf("handoff: %w", err)
	}
	return ip, nil
}

// LocalIPv4 returns the first non-loopback IPv4 address of this host, or
// 127.0.0.1 when there is none.
func LocalIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return "127.0.0.1"
}
