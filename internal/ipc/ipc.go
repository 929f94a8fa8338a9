package ipc

import (
	"encoding/json"
	"net"
	"sync"
	"time"
)

// PipeName is the control endpoint on Windows. Other platforms use a unix socket path.
const PipeName = `\\.\pipe\AvvaDesktopIPC`

const dialTimeout = 5 * time.Second

const (
	ActionGetStatus  = "get_status"
	ActionPing       = "ping"
	ActionStopHelper = "stop_helper"
	ActionRun        = "run"
)

type Request struct {
	Action    string   `json:"action"`
	Program   string   `json:"program,omitempty"`
	Args      []string `json:"args,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Handler func(Request) Response

type Server interface {
	Close() error
}

func NewRequest(action string) Request {
	return Request{
		Action:    action,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func ErrorResponse(msg string) Response {
	return Response{Status: "error", Message: msg}
}

type server struct {
	listener net.Listener
	closeCh  chan struct{}
	once     sync.Once
	cleanup  func()
}

func serve(listener net.Listener, handler Handler, cleanup func()) *server {
	s := &server{listener: listener, closeCh: make(chan struct{}), cleanup: cleanup}
	go s.acceptLoop(handler)
	return s
}

func (s *server) acceptLoop(handler Handler) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		go handleConnection(conn, handler)
	}
}

func (s *server) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closeCh)
		err = s.listener.Close()
		if s.cleanup != nil {
			s.cleanup()
		}
	})
	return err
}

func roundTrip(conn net.Conn, req Request) (*Response, error) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Minute))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, err
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func handleConnection(conn net.Conn, handler Handler) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	var req Request
	if err := dec.Decode(&req); err != nil {
		_ = enc.Encode(ErrorResponse("invalid request"))
		return
	}

	resp := handler(req)
	if resp.Status == "" {
		resp.Status = "ok"
	}
	_ = enc.Encode(resp)
}
