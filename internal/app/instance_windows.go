//go:build windows

package app

import (
	"errors"

	"golang.org/x/sys/windows"
)

// acquireInstanceLock prevents a second application, and so a second helper,
// in the same user session.
func acquireInstanceLock(string) (func(), error) {
	name, err := windows.UTF16PtrFromString(`Local\AvvaDesktop`)
	if err != nil {
		return nil, err
	}

	// CreateMutex returns a valid handle together with ERROR_ALREADY_EXISTS
	// when another instance owns the name.
	h, err := windows.CreateMutex(nil, false, name)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if h != 0 {
			_ = windows.CloseHandle(h)
		}
		return nil, errors.New("application already running in this session")
	}
	if err != nil {
		return nil, err
	}

	return func() {
		_ = windows.CloseHandle(h)
	}, nil
}
