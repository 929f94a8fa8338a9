//go:build !windows

package ipc

import (
	"errors"
	"net"
	"os"
	"path/filepath"
)

// Listen serves handler on a unix socket at endpoint. A stale socket file left
// by a crashed launch is replaced.
func Listen(endpoint string, handler Handler) (Server, error) {
	if endpoint == "" {
		return nil, errors.New("ipc socket path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(endpoint), 0o700); err != nil {
		return nil, err
	}
	if err := removeStaleSocket(endpoint); err != nil {
		return nil, err
	}

	listener, err := net.Listen("unix", endpoint)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(endpoint, 0o600); err != nil {
		_ = listener.Close()
		return nil, err
	}
	return serve(listener, handler, func() { _ = os.Remove(endpoint) }), nil
}

func Send(endpoint string, req Request) (*Response, error) {
	if endpoint == "" {
		return nil, errors.New("ipc socket path is empty")
	}
	conn, err := net.DialTimeout("unix", endpoint, dialTimeout)
	if err != nil {
		return nil, err
	}
	return roundTrip(conn, req)
}

func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return errors.New("ipc endpoint exists and is not a socket: " + path)
	}
	if conn, err := net.DialTimeout("unix", path, dialTimeout); err == nil {
		_ = conn.Close()
		return errors.New("another instance is listening on " + path)
	}
	return os.Remove(path)
}
