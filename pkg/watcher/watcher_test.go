package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckChanged(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "catalogue.csv")
	later := filepath.Join(dir, "later.csv")
	require.NoError(t, os.WriteFile(existing, []byte("id,foodName\n"), 0o644))

	s := NewService(existing, later)
	assert.Empty(t, s.CheckChanged(), "baseline is not a change")

	// Explicit mtimes avoid depending on filesystem timestamp granularity.
	next := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(existing, next, next))
	assert.Equal(t, []string{existing}, s.CheckChanged())
	assert.Empty(t, s.CheckChanged())

	require.NoError(t, os.WriteFile(later, []byte("x"), 0o644))
	assert.Equal(t, []string{later}, s.CheckChanged())

	require.NoError(t, os.Remove(later))
	assert.Empty(t, s.CheckChanged())
	require.NoError(t, os.WriteFile(later, []byte("y"), 0o644))
	assert.Equal(t, []string{later}, s.CheckChanged(), "recreated file")
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.csv")
	s := NewService(path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 1)
	go s.Run(ctx, 10*time.Millisecond, func(ctx context.Context, p string) {
		select {
		case got <- p:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("id\n"), 0o644))
	select {
	case p := <-got:
		assert.Equal(t, path, p)
	case <-time.After(2 * time.Second):
		t.Fatal("change not reported")
	}
}
