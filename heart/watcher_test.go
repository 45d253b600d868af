package heart

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heartpredict/ml"
)

func copyFixture(t *testing.T, name, dst string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dst, data, 0o600))
}

func startWatcher(t *testing.T, path string, store *Store) <-chan error {
	t.Helper()
	load := func() (*Predictor, error) {
		return LoadPredictor(ml.DecisionTreeType, path)
	}
	w, err := NewWatcher(path, store, load, zap.NewNop())
	require.NoError(t, err)

	reloads := make(chan error, 8)
	w.OnReload = func(err error) { reloads <- err }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return reloads
}

func waitReload(t *testing.T, reloads <-chan error) error {
	t.Helper()
	select {
	case err := <-reloads:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
		return nil
	}
}

func TestWatcherSwapsValidModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heart.json")
	copyFixture(t, "heart_tree.json", path)
	initial, err := LoadPredictor(ml.DecisionTreeType, path)
	require.NoError(t, err)
	store := NewStore(initial)

	reloads := startWatcher(t, path, store)
	copyFixture(t, "heart_tree.json", path)

	require.NoError(t, waitReload(t, reloads))
	assert.NotSame(t, initial, store.Current())
}

func TestWatcherKeepsModelOnCorruptArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heart.json")
	copyFixture(t, "heart_tree.json", path)
	initial, err := LoadPredictor(ml.DecisionTreeType, path)
	require.NoError(t, err)
	store := NewStore(initial)

	reloads := startWatcher(t, path, store)
	require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o600))

	assert.Error(t, waitReload(t, reloads))
	assert.Same(t, initial, store.Current())

	result, err := store.Current().Predict(context.Background(), DefaultInput())
	require.NoError(t, err)
	assert.Equal(t, MessageNoFailure, result.Message)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heart.json")
	copyFixture(t, "heart_tree.json", path)
	initial, err := LoadPredictor(ml.DecisionTreeType, path)
	require.NoError(t, err)
	store := NewStore(initial)

	reloads := startWatcher(t, path, store)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case <-reloads:
		t.Fatal("unexpected reload")
	case <-time.After(3 * reloadDelay):
	}
	assert.Same(t, initial, store.Current())
}
