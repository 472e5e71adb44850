//go:build !unix

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// acquireLock creates path exclusively. A stale file left by a crash has to
// be removed by hand.
func acquireLock(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("another deleterr process holds %s", path)
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}
	f.Close()
	return func() { _ = os.Remove(path) }, nil
}
