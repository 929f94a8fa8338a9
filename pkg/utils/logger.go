package utils

import (
	"io"
	"log"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logger writing to a size-rotated file. The returned
// closer must be closed on shutdown to release the file handle.
func NewLogger(filePath string, maxSizeMB, maxBackups int) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, nil, err
	}
	w := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	return log.New(w, "avva-desktop ", log.LstdFlags|log.LUTC), w, nil
}
