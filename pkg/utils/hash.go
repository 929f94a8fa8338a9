package utils

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"
)

// VerifyFileHash reports whether the SHA-256 of filePath equals expectedHash.
// An optional "sha256:" prefix and upper-case hex are accepted.
func VerifyFileHash(filePath, expectedHash string) (bool, error) {
	expectedHash = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(expectedHash)), "sha256:")

	got, err := FileSHA256(filePath)
	if err != nil {
		return false, err
	}
	return got == expectedHash, nil
}

func FileSHA256(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
