//go:build windows

package ipc

import (
	"github.com/Microsoft/go-winio"
)

// Listen serves handler on the named pipe. endpoint defaults to PipeName.
func Listen(endpoint string, handler Handler) (Server, error) {
	if endpoint == "" {
		endpoint = PipeName
	}
	config := &winio.PipeConfig{
		// Owner and local system only; the CLI runs as the same user.
		SecurityDescriptor: "D:P(A;;GA;;;OW)(A;;GA;;;SY)",
		MessageMode:        true,
		InputBufferSize:    65536,
		OutputBufferSize:   65536,
	}

	listener, err := winio.ListenPipe(endpoint, config)
	if err != nil {
		return nil, err
	}
	return serve(listener, handler, nil), nil
}

func Send(endpoint string, req Request) (*Response, error) {
	if endpoint == "" {
		endpoint = PipeName
	}
	timeout := dialTimeout
	conn, err := winio.DialPipe(endpoint, &timeout)
	if err != nil {
		return nil, err
	}
	return roundTrip(conn, req)
}
