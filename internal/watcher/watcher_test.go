package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcher_SignalsAfterWriteSettles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD"), 0600))

	w, err := New(Config{Path: path, DebounceDur: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ch, err := w.Start()
	require.NoError(t, err)

	// A burst of writes settles into one signal.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("graph LR"), 0600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("no change signal after external write")
	}

	// Quiet period: no second signal pending.
	select {
	case <-ch:
		t.Fatal("burst must coalesce into a single signal")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD"), 0600))

	w, err := New(Config{Path: path, DebounceDur: 30 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = w.Stop() }()

	ch, err := w.Start()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.mmd"), []byte("x"), 0600))

	select {
	case <-ch:
		t.Fatal("writes to unrelated files must not signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsClean(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "diagram.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD"), 0600))

	w, err := New(DefaultConfig(path))
	require.NoError(t, err)

	_, err = w.Start()
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}
