package infra

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// atomicWriteFile writes data to a temp file unique to this process and renames it into place.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// copyFile copies a file from src to dst using atomic write pattern.
// Writes to temp file first, syncs, then renames to avoid corruption.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".racingplus-copy-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}

	// Sync to disk before rename
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}

// isNewerVersion compares two dotted version strings, returns true if candidate > current.
// A leading "v" and any pre-release suffix ("-beta.1") are ignored.
func isNewerVersion(candidate, current string) bool {
	if current == "" {
		return true
	}

	candidateParts := versionParts(candidate)
	currentParts := versionParts(current)

	maxLen := len(candidateParts)
	if len(currentParts) > maxLen {
		maxLen = len(currentParts)
	}

	for i := 0; i < maxLen; i++ {
		var a, b int
		if i < len(candidateParts) {
			a = candidateParts[i]
		}
		if i < len(currentParts) {
			b = currentParts[i]
		}
		if a > b {
			return true
		}
		if a < b {
			return false
		}
	}

	return false // Equal versions
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	fields := strings.Split(v, ".")
	parts := make([]int, len(fields))
	for i, f := range fields {
		parts[i], _ = strconv.Atoi(f)
	}
	return parts
}
