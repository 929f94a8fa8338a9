package sidecar

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"avva-desktop/pkg/utils"
)

// Descriptor identifies a helper program bundled next to the application.
type Descriptor struct {
	// Name is the logical program name without platform suffix, e.g. "avva-core".
	Name string
	// Dir is the directory searched for the binary. Empty means the directory
	// of the running executable.
	Dir  string
	Args []string
	Env  map[string]string
	// SHA256 optionally pins the binary contents.
	SHA256 string
}

var targetTriples = map[string]string{
	"linux/amd64":   "x86_64-unknown-linux-gnu",
	"linux/arm64":   "aarch64-unknown-linux-gnu",
	"linux/386":     "i686-unknown-linux-gnu",
	"linux/arm":     "armv7-unknown-linux-gnueabihf",
	"darwin/amd64":  "x86_64-apple-darwin",
	"darwin/arm64":  "aarch64-apple-darwin",
	"windows/amd64": "x86_64-pc-windows-msvc",
	"windows/386":   "i686-pc-windows-msvc",
	"windows/arm64": "aarch64-pc-windows-msvc",
}

// TargetTriple returns the bundling target triple for a GOOS/GOARCH pair.
func TargetTriple(goos, goarch string) (string, bool) {
	t, ok := targetTriples[goos+"/"+goarch]
	return t, ok
}

// Candidates lists the file names a helper may be bundled under, in lookup order:
// the installed layout (suffix stripped) first, then the development layout.
func Candidates(name, goos, goarch string) ([]string, error) {
	triple, ok := TargetTriple(goos, goarch)
	if !ok {
		return nil, fmt.Errorf("unsupported platform %s/%s", goos, goarch)
	}
	ext := ""
	if goos == "windows" {
		ext = ".exe"
	}
	return []string{
		name + ext,
		name + "-" + triple + ext,
	}, nil
}

// Resolve returns the absolute path of the helper binary for the current platform.
func (d Descriptor) Resolve() (string, error) {
	return d.resolveFor(runtime.GOOS, runtime.GOARCH)
}

func (d Descriptor) resolveFor(goos, goarch string) (string, error) {
	if d.Name == "" {
		return "", &ResolutionError{Name: d.Name, Reason: "empty helper name"}
	}

	dir := d.Dir
	if dir == "" {
		exeDir, err := executableDir()
		if err != nil {
			return "", &ResolutionError{Name: d.Name, Reason: "locate executable directory", Err: err}
		}
		dir = exeDir
	}

	names, err := Candidates(d.Name, goos, goarch)
	if err != nil {
		return "", &ResolutionError{Name: d.Name, Dir: dir, Reason: "no target triple", Err: err}
	}

	for _, n := range names {
		p := filepath.Join(dir, n)
		fi, err := os.Stat(p)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		if d.SHA256 != "" {
			ok, err := utils.VerifyFileHash(abs, d.SHA256)
			if err != nil {
				return "", &ResolutionError{Name: d.Name, Dir: dir, Reason: "hash check", Err: err}
			}
			if !ok {
				return "", &ResolutionError{Name: d.Name, Dir: dir, Reason: "sha256 mismatch for " + n}
			}
		}
		return abs, nil
	}
	return "", &ResolutionError{Name: d.Name, Dir: dir, Reason: fmt.Sprintf("none of %v found", names)}
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
