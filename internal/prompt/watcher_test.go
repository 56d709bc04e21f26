package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critic: version one\n"), 0644))

	lib, err := NewLibrary()
	require.NoError(t, err)

	w, err := NewWatcher(lib, path)
	require.NoError(t, err)
	w.debounceDur = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	out, err := lib.Render(Critic, nil)
	require.NoError(t, err)
	assert.Equal(t, "version one", out)

	require.NoError(t, os.WriteFile(path, []byte("critic: version two\n"), 0644))

	assert.Eventually(t, func() bool {
		out, err := lib.Render(Critic, nil)
		return err == nil && out == "version two"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("critic: mine\n"), 0644))

	lib, err := NewLibrary()
	require.NoError(t, err)

	w, err := NewWatcher(lib, path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("critic: other\n"), 0644))
	time.Sleep(100 * time.Millisecond)

	out, err := lib.Render(Critic, nil)
	require.NoError(t, err)
	assert.Equal(t, "mine", out)
}

func TestWatcherStopWithoutStart(t *testing.T) {
	ignore := goleak.IgnoreCurrent()
	defer goleak.VerifyNone(t, ignore)

	lib, err := NewLibrary()
	require.NoError(t, err)

	w, err := NewWatcher(lib, filepath.Join(t.TempDir(), "prompts.yaml"))
	require.NoError(t, err)

	// Never started; Stop must still release the fsnotify watcher.
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcherStopIdempotent(t *testing.T) {
	lib, err := NewLibrary()
	require.NoError(t, err)

	w, err := NewWatcher(lib, filepath.Join(t.TempDir(), "prompts.yaml"))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
