package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/watch"
)

func newFollowedFile(t *testing.T, opts FileOptions) (string, *watch.State, *File) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	state := watch.NewState()
	file, err := NewFile(path, state, opts)
	require.NoError(t, err)
	t.Cleanup(func() { file.Close() })

	return path, state, file
}

func TestFile(t *testing.T) {
	t.Run("write bumps the version", func(t *testing.T) {
		path, state, _ := newFollowedFile(t, FileOptions{Debounce: 10 * time.Millisecond})
		observer := state.Subscribe()

		require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		v, ok, err := observer.WaitContext(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Greater(t, v, uint64(1))
	})

	t.Run("rename over the file bumps the version", func(t *testing.T) {
		path, state, _ := newFollowedFile(t, FileOptions{Debounce: 10 * time.Millisecond})
		observer := state.Subscribe()

		tmp := path + ".tmp"
		require.NoError(t, os.WriteFile(tmp, []byte("a: 3\n"), 0o600))
		require.NoError(t, os.Rename(tmp, path))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, ok, err := observer.WaitContext(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("burst of writes bumps once", func(t *testing.T) {
		path, state, _ := newFollowedFile(t, FileOptions{Debounce: 200 * time.Millisecond})

		for i := range 20 {
			require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
		}

		require.Eventually(t, func() bool {
			return state.Version() >= 2
		}, 5*time.Second, 10*time.Millisecond)

		time.Sleep(400 * time.Millisecond)
		assert.Equal(t, uint64(2), state.Version())
	})

	t.Run("change while a fired flush waits for the lock", func(t *testing.T) {
		path, state, file := newFollowedFile(t, FileOptions{Debounce: 20 * time.Millisecond})
		event := fsnotify.Event{Name: path, Op: fsnotify.Write}

		file.handleEvent(event)

		// the first timer fires and its flush blocks on the lock
		file.mu.Lock()
		time.Sleep(60 * time.Millisecond)
		file.scheduleLocked()
		file.mu.Unlock()

		require.Eventually(t, func() bool {
			return state.Version() >= 2
		}, 5*time.Second, 5*time.Millisecond)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, uint64(2), state.Version())
	})

	t.Run("ignores other files", func(t *testing.T) {
		path, state, _ := newFollowedFile(t, FileOptions{Debounce: 10 * time.Millisecond})
		observer := state.Subscribe()

		other := filepath.Join(filepath.Dir(path), "other.yaml")
		require.NoError(t, os.WriteFile(other, []byte("b: 1\n"), 0o600))

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		_, ok, err := observer.WaitContext(ctx)
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, uint64(1), state.Version())
	})

	t.Run("close on stop", func(t *testing.T) {
		_, state, file := newFollowedFile(t, FileOptions{CloseOnStop: true})
		observer := state.Subscribe()

		require.NoError(t, file.Close())
		require.NoError(t, file.Close())

		v, ok := observer.Wait()
		assert.False(t, ok)
		assert.Equal(t, watch.Closed, v)
	})

	t.Run("close leaves the state open by default", func(t *testing.T) {
		_, state, file := newFollowedFile(t, FileOptions{})

		require.NoError(t, file.Close())
		assert.Equal(t, uint64(1), state.Version())
	})

	t.Run("missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "config.yaml")

		_, err := NewFile(path, watch.NewState(), FileOptions{})
		assert.Error(t, err)
	})

	t.Run("absolute path", func(t *testing.T) {
		_, _, file := newFollowedFile(t, FileOptions{})
		assert.True(t, filepath.IsAbs(file.Path()))
	})
}
