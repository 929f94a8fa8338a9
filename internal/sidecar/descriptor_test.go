package sidecar

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveFindsExactlyOneBinaryPerPlatform(t *testing.T) {
	for platform := range targetTriples {
		goos, goarch, _ := strings.Cut(platform, "/")
		t.Run(platform, func(t *testing.T) {
			dir := t.TempDir()
			names, err := Candidates("avva-core", goos, goarch)
			if err != nil {
				t.Fatalf("Candidates: %v", err)
			}
			if len(names) != 2 {
				t.Fatalf("candidates=%v", names)
			}
			// Development layout only.
			devPath := filepath.Join(dir, names[1])
			if err := os.WriteFile(devPath, []byte("bin"), 0o755); err != nil {
				t.Fatal(err)
			}

			got, err := Descriptor{Name: "avva-core", Dir: dir}.resolveFor(goos, goarch)
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			if filepath.Base(got) != names[1] {
				t.Fatalf("resolved %s want %s", got, names[1])
			}
		})
	}
}

func TestCandidatesNaming(t *testing.T) {
	names, err := Candidates("avva-core", "windows", "amd64")
	if err != nil {
		t.Fatal(err)
	}
	if names[0] != "avva-core.exe" || names[1] != "avva-core-x86_64-pc-windows-msvc.exe" {
		t.Fatalf("windows candidates=%v", names)
	}
	names, err = Candidates("avva-core", "darwin", "arm64")
	if err != nil {
		t.Fatal(err)
	}
	if names[0] != "avva-core" || names[1] != "avva-core-aarch64-apple-darwin" {
		t.Fatalf("darwin candidates=%v", names)
	}
}

func TestResolvePrefersInstalledLayout(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"avva-core", "avva-core-x86_64-unknown-linux-gnu"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("bin"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Descriptor{Name: "avva-core", Dir: dir}.resolveFor("linux", "amd64")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if filepath.Base(got) != "avva-core" {
		t.Fatalf("resolved %s, want installed layout", got)
	}
}

func TestResolveMissingBinary(t *testing.T) {
	_, err := Descriptor{Name: "avva-core", Dir: t.TempDir()}.resolveFor("linux", "amd64")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v, want ResolutionError", err)
	}
	if rerr.Name != "avva-core" {
		t.Fatalf("name=%q", rerr.Name)
	}
}

func TestResolveIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "avva-core"), 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := Descriptor{Name: "avva-core", Dir: dir}.resolveFor("linux", "amd64")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v, want ResolutionError", err)
	}
}

func TestResolveUnsupportedPlatform(t *testing.T) {
	_, err := Descriptor{Name: "avva-core", Dir: t.TempDir()}.resolveFor("plan9", "386")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v, want ResolutionError", err)
	}
}

func TestResolveChecksHash(t *testing.T) {
	dir := t.TempDir()
	content := []byte("helper-v1")
	if err := os.WriteFile(filepath.Join(dir, "avva-core"), content, 0o755); err != nil {
		t.Fatal(err)
	}
	good := fmt.Sprintf("sha256:%x", sha256.Sum256(content))

	if _, err := (Descriptor{Name: "avva-core", Dir: dir, SHA256: good}).resolveFor("linux", "amd64"); err != nil {
		t.Fatalf("resolve with matching hash: %v", err)
	}

	_, err := Descriptor{Name: "avva-core", Dir: dir, SHA256: "00ff"}.resolveFor("linux", "amd64")
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v, want ResolutionError", err)
	}
	if !strings.Contains(rerr.Error(), "sha256 mismatch") {
		t.Fatalf("error=%q", rerr.Error())
	}
}

func TestResolveEmptyName(t *testing.T) {
	_, err := Descriptor{Dir: t.TempDir()}.Resolve()
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("err=%v, want ResolutionError", err)
	}
}
