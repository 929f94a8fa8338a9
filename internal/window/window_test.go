package window

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"
	"time"

	"avva-desktop/internal/config"
	"avva-desktop/internal/sidecar"
)

func TestStatusTooltip(t *testing.T) {
	code := 3
	cases := []struct {
		st   sidecar.Status
		want string
	}{
		{sidecar.Status{Name: "avva-core", Running: true, Pid: 42}, "Avva - avva-core running (pid 42)"},
		{sidecar.Status{Name: "avva-core", ExitCode: &code}, "Avva - avva-core exited (code 3)"},
		{sidecar.Status{Name: "avva-core"}, "Avva - avva-core not started"},
	}
	for _, c := range cases {
		if got := statusTooltip("", c.st); got != c.want {
			t.Fatalf("tooltip=%q want=%q", got, c.want)
		}
	}
}

func TestStatusTitle(t *testing.T) {
	if got := statusTitle("Avva", sidecar.Status{Running: true}); got != "Avva" {
		t.Fatalf("title=%q", got)
	}
	if got := statusTitle("Avva", sidecar.Status{}); got != "Avva (offline)" {
		t.Fatalf("title=%q", got)
	}
}

func TestStateOf(t *testing.T) {
	zero, one := 0, 1
	if stateOf(sidecar.Status{Running: true}) != iconRunning {
		t.Fatal("running")
	}
	if stateOf(sidecar.Status{ExitCode: &zero}) != iconExited {
		t.Fatal("clean exit")
	}
	if stateOf(sidecar.Status{ExitCode: &one}) != iconFailed {
		t.Fatal("failed exit")
	}
}

func TestIconBytesHeader(t *testing.T) {
	b := iconBytes(iconRunning)
	if len(b) != 22+40+16*16*4+16*4 {
		t.Fatalf("len=%d", len(b))
	}
	var hdr struct {
		Reserved, Type, Count uint16
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &hdr); err != nil {
		t.Fatal(err)
	}
	if hdr.Type != 1 || hdr.Count != 1 {
		t.Fatalf("header=%+v", hdr)
	}
	if bytes.Equal(b, iconBytes(iconFailed)) {
		t.Fatal("states should render differently")
	}
}

func TestHeadlessReturnsOnCancel(t *testing.T) {
	w := New(config.WindowConfig{Headless: true}, func() sidecar.Status { return sidecar.Status{} }, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("headless window did not return")
	}
}
