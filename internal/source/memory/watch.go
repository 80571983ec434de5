package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "servicecalls/internal/log"
	"servicecalls/internal/source"
)

// Watch reloads the store from path whenever the file is written or created.
// The directory is watched so that editors which save through a rename are
// picked up when the new file appears. Renames and removals of path are
// ignored; the current dataset stays until a file is there again. Sessions created after a reload see the new dataset; engines
// that already loaded keep theirs. Watch returns once the watcher is
// installed; it stops when ctx is done.
func (s *Store) Watch(ctx context.Context, path string, loc *time.Location, logger *applog.Logger) error {
	if logger == nil {
		logger = applog.Default(applog.ComponentSource)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve records file: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != abs || (!evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create)) {
					continue
				}
				s.reload(ctx, abs, loc, logger)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WarnContext(ctx, "Records file watcher error", applog.FieldError, err.Error())
			}
		}
	}()
	return nil
}

func (s *Store) reload(ctx context.Context, path string, loc *time.Location, logger *applog.Logger) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.DebugContext(ctx, "Records file gone, keeping the current dataset")
			return
		}
		logger.WarnContext(ctx, "Records file reload failed", applog.FieldError, err.Error())
		return
	}
	defer f.Close()

	records, err := source.DecodeRecords(f, loc)
	if err != nil {
		// Half-written files fail to decode; the next write event retries.
		logger.WarnContext(ctx, "Records file reload failed", applog.FieldError, err.Error())
		return
	}
	n, _ := s.ReplaceRecords(ctx, records)
	logger.InfoContext(ctx, "Records file reloaded", applog.FieldRecordCount, n)
}
