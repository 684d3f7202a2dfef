package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest files as they change in a folder",
	Long: `Watch a folder and index supported files when they are created or
modified. Removed files are deleted from the index. Hidden files and
subfolders are ignored.

Each file gets a document id derived from its absolute path, so editing a
file replaces its previous chunks. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

// Flags for the watch command.
var (
	watchScan     bool
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().BoolVar(&watchScan, "scan", true, "Ingest existing files before watching")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond,
		"Quiet period before a changed file is ingested")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	if fileExtractor == nil {
		return errors.New("text extractor not configured")
	}

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving %s: %w", args[0], err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	fw := newFolderWatcher(cmd, watchDebounce)
	ctx := cmd.Context()

	if watchScan {
		fw.scan(ctx, dir)
	}

	cmd.Printf("Watching %s (Ctrl-C to stop)\n", dir)
	return fw.run(ctx, w.Events, w.Errors)
}

// watchAction is what a filesystem event asks for.
type watchAction int

const (
	watchIgnore watchAction = iota
	watchIngest
	watchRemove
)

// classifyEvent maps an event to an action. Directories, hidden files and
// unsupported extensions are ignored.
func classifyEvent(ev fsnotify.Event, supports func(string) bool) watchAction {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || !supports(name) {
		return watchIgnore
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return watchRemove
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil || !info.Mode().IsRegular() {
			return watchIgnore
		}
		return watchIngest
	default:
		return watchIgnore
	}
}

// pathDocumentID derives a stable document id from an absolute path.
func pathDocumentID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String()
}

type pendingChange struct {
	action watchAction
	due    time.Time
}

// folderWatcher debounces events and applies them from a single goroutine.
type folderWatcher struct {
	cmd      *cobra.Command
	debounce time.Duration
	pending  map[string]pendingChange
	now      func() time.Time
}

func newFolderWatcher(cmd *cobra.Command, debounce time.Duration) *folderWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &folderWatcher{
		cmd:      cmd,
		debounce: debounce,
		pending:  make(map[string]pendingChange),
		now:      time.Now,
	}
}

// scan ingests the supported files already in dir.
func (fw *folderWatcher) scan(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("watch: reading %s: %v", dir, err)
		return
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if classifyEvent(fsnotify.Event{Name: path, Op: fsnotify.Create}, fileExtractor.Supports) == watchIngest {
			fw.apply(ctx, path, watchIngest)
		}
	}
}

func (fw *folderWatcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) error {
	ticker := time.NewTicker(fw.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			fw.queue(ev)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case <-ticker.C:
			fw.flush(ctx, false)
		}
	}
}

// queue records an event; a later event for the same path wins.
func (fw *folderWatcher) queue(ev fsnotify.Event) {
	action := classifyEvent(ev, fileExtractor.Supports)
	if action == watchIgnore {
		return
	}
	logger.Debug("watch: %s %s", ev.Op, ev.Name)
	fw.pending[ev.Name] = pendingChange{action: action, due: fw.now().Add(fw.debounce)}
}

// flush applies every change whose quiet period has passed, or all of them when force is set.
func (fw *folderWatcher) flush(ctx context.Context, force bool) {
	now := fw.now()
	for path, change := range fw.pending {
		if !force && now.Before(change.due) {
			continue
		}
		delete(fw.pending, path)
		fw.apply(ctx, path, change.action)
	}
}

func (fw *folderWatcher) apply(ctx context.Context, path string, action watchAction) {
	id := pathDocumentID(path)

	switch action {
	case watchIngest:
		doc, text, err := prepareDocument(ctx, path, id)
		if err != nil {
			fw.cmd.PrintErrf("Skipping %s: %v\n", path, err)
			return
		}
		n, err := ingestionService.Process(ctx, doc, text)
		if err != nil {
			fw.cmd.PrintErrf("Failed %s: %v\n", doc.Filename, err)
			return
		}
		fw.cmd.Printf("Indexed %s: %d chunks\n", doc.Filename, n)
	case watchRemove:
		removed, err := ingestionService.Delete(ctx, id)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				fw.cmd.PrintErrf("Failed to remove %s: %v\n", path, err)
			}
			return
		}
		fw.cmd.Printf("Removed %s (%d entries)\n", filepath.Base(path), removed)
	}
}
