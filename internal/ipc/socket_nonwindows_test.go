//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Socket paths are limited to ~104 bytes on darwin; t.TempDir can exceed that.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "avva")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "ctl.sock")
}

func TestSocketRoundTrip(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(req Request) Response {
		switch req.Action {
		case ActionPing:
			return Response{Message: "pong"}
		case ActionRun:
			return Response{Data: strings.Join(append([]string{req.Program}, req.Args...), " ")}
		}
		return ErrorResponse("unknown action")
	})
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != 0o600 {
		t.Fatalf("socket mode=%v", fi.Mode().Perm())
	}

	resp, err := Send(path, NewRequest(ActionPing))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != "ok" || resp.Message != "pong" {
		t.Fatalf("resp=%+v", resp)
	}

	req := NewRequest(ActionRun)
	req.Program = "echo"
	req.Args = []string{"a", "b"}
	resp, err = Send(path, req)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Data != "echo a b" {
		t.Fatalf("data=%v", resp.Data)
	}

	resp, err = Send(path, NewRequest("bogus"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.Status != "error" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestInvalidRequest(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(Request) Response { return Response{} })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	conn, err := net.Dial("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 256)
	n, _ := conn.Read(buf)
	if !strings.Contains(string(buf[:n]), "invalid request") {
		t.Fatalf("reply=%q", buf[:n])
	}
}

func TestCloseRemovesSocket(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(Request) Response { return Response{} })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("socket still present: %v", err)
	}
	if _, err := Send(path, NewRequest(ActionPing)); err == nil {
		t.Fatal("send to closed server should fail")
	}
}

func TestStaleSocketReplaced(t *testing.T) {
	path := socketPath(t)
	l, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	// Leave the file behind as a crashed process would.
	l.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = l.Close()

	srv, err := Listen(path, func(Request) Response { return Response{Message: "fresh"} })
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	defer srv.Close()
	resp, err := Send(path, NewRequest(ActionPing))
	if err != nil || resp.Message != "fresh" {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
}

func TestSecondListenerRefused(t *testing.T) {
	path := socketPath(t)
	srv, err := Listen(path, func(Request) Response { return Response{} })
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	if _, err := Listen(path, func(Request) Response { return Response{} }); err == nil {
		t.Fatal("second Listen should fail while the first is serving")
	}
}

func TestListenEmptyPath(t *testing.T) {
	if _, err := Listen("", func(Request) Response { return Response{} }); err == nil {
		t.Fatal("expected error")
	}
}
