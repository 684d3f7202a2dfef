package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyEvent(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "notes.txt", "hello")
	hidden := writeFile(t, dir, ".notes.txt", "hidden")
	image := writeFile(t, dir, "photo.png", "png")
	sub := filepath.Join(dir, "sub.txt")
	require.NoError(t, os.Mkdir(sub, 0o755))

	supports := func(name string) bool {
		ext := filepath.Ext(name)
		return ext == ".txt" || ext == ".md"
	}

	tests := []struct {
		name     string
		path     string
		op       fsnotify.Op
		expected watchAction
	}{
		{"create file", file, fsnotify.Create, watchIngest},
		{"write file", file, fsnotify.Write, watchIngest},
		{"remove file", filepath.Join(dir, "gone.txt"), fsnotify.Remove, watchRemove},
		{"rename file", filepath.Join(dir, "old.txt"), fsnotify.Rename, watchRemove},
		{"chmod ignored", file, fsnotify.Chmod, watchIgnore},
		{"hidden ignored", hidden, fsnotify.Create, watchIgnore},
		{"unsupported ignored", image, fsnotify.Write, watchIgnore},
		{"directory ignored", sub, fsnotify.Create, watchIgnore},
		{"vanished before stat", filepath.Join(dir, "tmp.txt"), fsnotify.Create, watchIgnore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := fsnotify.Event{Name: tt.path, Op: tt.op}
			assert.Equal(t, tt.expected, classifyEvent(ev, supports))
		})
	}
}

func TestPathDocumentID_Stable(t *testing.T) {
	a := pathDocumentID("/docs/a.txt")
	assert.Equal(t, a, pathDocumentID("/docs/a.txt"))
	assert.NotEqual(t, a, pathDocumentID("/docs/b.txt"))
}

func TestFolderWatcher_Debounces(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "france.txt", parisText)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fw := newFolderWatcher(rootCmd, time.Second)
	fw.now = func() time.Time { return clock }
	ctx := context.Background()

	fw.queue(fsnotify.Event{Name: path, Op: fsnotify.Create})
	fw.queue(fsnotify.Event{Name: path, Op: fsnotify.Write})
	assert.Len(t, fw.pending, 1)

	fw.flush(ctx, false)
	assert.Len(t, fw.pending, 1, "still inside the quiet period")

	clock = clock.Add(2 * time.Second)
	fw.flush(ctx, false)
	assert.Empty(t, fw.pending)

	doc, err := env.docs.GetDocument(ctx, pathDocumentID(path))
	require.NoError(t, err)
	assert.True(t, doc.Processed)

	require.NoError(t, os.Remove(path))
	fw.queue(fsnotify.Event{Name: path, Op: fsnotify.Remove})
	fw.flush(ctx, true)

	_, err = env.docs.GetDocument(ctx, pathDocumentID(path))
	assert.Error(t, err)
}

func TestWatchCmd_NotADirectory(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	path := writeFile(t, env.dir, "file.txt", "x")

	_, err := executeCommand("watch", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestWatchCmd_ScansAndWatches(t *testing.T) {
	env, cleanup := setupTestServices(t)
	defer cleanup()

	writeFile(t, env.dir, "existing.txt", "Existing text about rivers.")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := executeCommandContext(ctx, "watch", "--debounce", "50ms", env.dir)
		done <- err
	}()

	countDocs := func() int {
		docs, err := env.docs.ListDocuments(context.Background())
		if err != nil {
			return -1
		}
		return len(docs)
	}

	require.Eventually(t, func() bool { return countDocs() == 1 }, 5*time.Second, 20*time.Millisecond)

	// Give the watcher a moment to register before creating the file.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, env.dir, "new.md", "# New\n\nFresh text about mountains.")
	require.Eventually(t, func() bool { return countDocs() == 2 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
