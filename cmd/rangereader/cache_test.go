package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStatReportsEntriesAndBytes(t *testing.T) {
	root := t.TempDir()
	scope := filepath.Join(root, "deadbeef")
	require.NoError(t, os.MkdirAll(scope, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(scope, "0_4095.range"), make([]byte, 4096), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(scope, "4096_8191.range"), make([]byte, 4096), 0o600))

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "stat", root})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "deadbeef")
	assert.Contains(t, out.String(), "entries=2")
	assert.Contains(t, out.String(), "bytes=8192")
}

func TestCacheStatOnEmptyDirReportsNoSources(t *testing.T) {
	root := t.TempDir()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"cache", "stat", root})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "no cached sources")
}
