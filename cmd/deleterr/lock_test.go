//go:build unix

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "deleterr.lock")

	unlock, err := acquireLock(path)
	require.NoError(t, err)

	_, err = acquireLock(path)
	assert.ErrorContains(t, err, "another deleterr process")

	unlock()
	unlock2, err := acquireLock(path)
	require.NoError(t, err)
	unlock2()
}
