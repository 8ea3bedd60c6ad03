// Package server wires configuration, logging, the key store, and the
// event loop together into one running process. Grounded on the
// teacher's StartTCPServer/InitServer (src/sever.go), adapted from its
// goroutine-accept-loop model to spec.md's single-threaded event loop.
package server

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"loopkv/internal/config"
	"loopkv/internal/eventloop"
	"loopkv/internal/store"

	"go.uber.org/zap"
)

// Server owns the listening socket and the event loop built around it.
type Server struct {
	cfg   *config.Config
	log   *zap.SugaredLogger
	store *store.Store
	loop  *eventloop.Loop
}

// New builds a Server bound to cfg.ListenAddr (host:port, the listen
// socket is created here so callers never touch raw fds directly).
func New(cfg *config.Config, log *zap.SugaredLogger, st *store.Store) (*Server, error) {
	fd, err := listenTCP(cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", cfg.ListenAddr, err)
	}
	loop, err := eventloop.New(cfg, st, log, fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("server: build event loop: %w", err)
	}
	log.Infof("listening on %s", cfg.ListenAddr)
	return &Server{cfg: cfg, log: log, store: st, loop: loop}, nil
}

// listenTCP creates a non-blocking IPv4 TCP listening socket bound to
// addr ("host:port" or ":port"), the way the teacher's StartTCPServer
// wraps net.Listen, but at the raw fd level since the event loop needs
// direct epoll control over the listening socket too.
func listenTCP(addr string) (int, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return 0, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return 0, err
	}

	var sa unix.SockaddrInet4
	sa.Port = port
	if host != "" {
		ip, ok := parseIPv4(host)
		if !ok {
			unix.Close(fd)
			return 0, fmt.Errorf("invalid listen host %q", host)
		}
		sa.Addr = ip
	}

	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return 0, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, err
	}
	return fd, nil
}

func splitHostPort(addr string) (host, port string, err error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("listen address %q missing port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

func parseIPv4(host string) ([4]byte, bool) {
	var out [4]byte
	parts := strings.Split(host, ".")
	if len(parts) != 4 {
		return out, false
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return out, false
		}
		out[i] = byte(n)
	}
	return out, true
}

// Run drives the event loop until Stop is called or a fatal error
// occurs.
func (s *Server) Run() error {
	return s.loop.Run()
}

// Stop requests a clean shutdown.
func (s *Server) Stop() {
	s.loop.Stop()
}

// Close releases the listening socket and epoll fd.
func (s *Server) Close() {
	s.loop.Close()
}

// MemStats logs current heap usage, wired into the process's periodic
// cron job (cmd/loopkv/main.go), mirroring the teacher's
// printMemoryStats.
func (s *Server) MemStats(alloc, totalAlloc, sys uint64, numGC uint32) {
	s.log.Infow("heap stats", "allocMB", alloc/1024/1024, "totalAllocMB", totalAlloc/1024/1024, "sysMB", sys/1024/1024, "numGC", numGC)
}
