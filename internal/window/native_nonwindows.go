//go:build !windows

package window

import (
	"log"

	"avva-desktop/internal/config"
)

func newNative(_ config.WindowConfig, _ StatusFunc, logger *log.Logger) Window {
	if logger != nil {
		logger.Printf("window: native tray is only supported on windows, running headless")
	}
	return Headless{}
}
