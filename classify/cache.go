package classify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache event names passed to Metrics.CacheEvent.
const (
	CacheHit    = "hit"
	CacheMiss   = "miss"
	CacheReload = "reload"
	CacheEvict  = "evict"
)

// modelSource hands out a classifier for a choice. The bool reports whether
// the classifier came from memory.
type modelSource interface {
	Get(ctx context.Context, choice ModelChoice) (Classifier, bool, error)
	Close() error
}

// directSource reads the artifact from disk on every call.
type directSource struct {
	paths  map[ModelChoice]string
	loader Loader
}

func (s *directSource) Get(ctx context.Context, choice ModelChoice) (Classifier, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, ok := s.paths[choice]
	if !ok {
		return nil, false, fmt.Errorf("%w: no artifact configured for %s", ErrArtifactNotFound, choice)
	}
	model, err := s.loader(path)
	return model, false, err
}

func (s *directSource) Close() error { return nil }

type cacheEntry struct {
	model   Classifier
	modTime time.Time
	size    int64
}

// ModelCache keeps recently used classifiers in an LRU keyed by model
// choice. An entry is reused only while the artifact's mod time and size
// are unchanged; with watching enabled, file system events evict entries
// as soon as an artifact is rewritten or removed.
type ModelCache struct {
	entries *lru.Cache[ModelChoice, cacheEntry]
	paths   map[ModelChoice]string
	byPath  map[string]ModelChoice
	loader  Loader
	metrics Metrics
	logger  *zap.Logger
	loads   singleflight.Group

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func newModelCache(paths map[ModelChoice]string, loader Loader, opts CacheOptions, metrics Metrics, logger *zap.Logger) (*ModelCache, error) {
	size := opts.Size
	if size <= 0 {
		size = len(AllModelChoices)
	}
	entries, err := lru.New[ModelChoice, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &ModelCache{
		entries: entries,
		paths:   paths,
		byPath:  make(map[string]ModelChoice, len(paths)),
		loader:  loader,
		metrics: metrics,
		logger:  logger,
		done:    make(chan struct{}),
	}
	for choice, path := range paths {
		c.byPath[filepath.Clean(path)] = choice
	}

	if opts.Watch {
		if err := c.watch(); err != nil {
			return nil, fmt.Errorf("watch model artifacts: %w", err)
		}
	}
	return c, nil
}

// Get returns the classifier for choice, reloading it when the artifact
// changed on disk. The bool reports a cache hit.
func (c *ModelCache) Get(ctx context.Context, choice ModelChoice) (Classifier, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	path, ok := c.paths[choice]
	if !ok {
		return nil, false, fmt.Errorf("%w: no artifact configured for %s", ErrArtifactNotFound, choice)
	}

	info, err := os.Stat(path)
	if err != nil {
		c.evict(choice)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, false, err
	}

	if entry, ok := c.entries.Get(choice); ok {
		if entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			c.metrics.CacheEvent(CacheHit)
			return entry.model, true, nil
		}
		c.entries.Remove(choice)
		c.metrics.CacheEvent(CacheReload)
	} else {
		c.metrics.CacheEvent(CacheMiss)
	}

	v, err, _ := c.loads.Do(choice.Slug(), func() (interface{}, error) {
		model, err := c.loader(path)
		if err != nil {
			return nil, err
		}
		c.entries.Add(choice, cacheEntry{model: model, modTime: info.ModTime(), size: info.Size()})
		c.logger.Debug("model loaded", zap.String("model", choice.String()), zap.String("path", path))
		return model, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(Classifier), false, nil
}

// Len reports the number of cached classifiers.
func (c *ModelCache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached classifier.
func (c *ModelCache) Purge() {
	c.entries.Purge()
}

func (c *ModelCache) evict(choice ModelChoice) {
	if c.entries.Remove(choice) {
		c.metrics.CacheEvent(CacheEvict)
	}
}

func (c *ModelCache) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dirs := make(map[string]struct{})
	for path := range c.byPath {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return multierr.Append(err, watcher.Close())
		}
	}

	c.watcher = watcher
	c.wg.Add(1)
	go c.watchLoop()
	return nil
}

func (c *ModelCache) watchLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			choice, ok := c.byPath[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			c.logger.Info("model artifact changed",
				zap.String("model", choice.String()),
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()))
			c.evict(choice)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("model watcher error", zap.Error(err))
		}
	}
}

// Close stops the watcher and drops all cached classifiers.
func (c *ModelCache) Close() error {
	var err error
	if c.watcher != nil {
		close(c.done)
		err = c.watcher.Close()
		c.wg.Wait()
		c.watcher = nil
	}
	c.entries.Purge()
	return err
}
