package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skill-engine/pkg/logger"
	"github.com/pkg/errors"
)

// maxWatchDepth covers <root>, <root>/<skill> and <root>/<skill>/references.
const maxWatchDepth = 2

// Watcher clears a Service's caches whenever the catalog on disk changes.
type Watcher struct {
	root    string
	service *Service
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching root for catalog changes.
func NewWatcher(root string, service *Service) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}

	w := &Watcher{root: filepath.Clean(root), service: service, watcher: fw}
	if err := w.addTree(w.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return errors.Wrapf(err, "failed to walk %s", dir)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.depth(path) > maxWatchDepth {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return errors.Wrapf(err, "failed to watch %s", path)
		}
		return nil
	})
}

// Run processes events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	log := logger.G(ctx).WithField("root", w.root)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						log.WithError(err).Warn("failed to watch new directory")
					}
				}
			}

			log.WithField("file", event.Name).WithField("op", event.Op.String()).Debug("skill catalog changed, clearing cache")
			w.service.ClearCache()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("skill catalog watcher error")
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
