package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/ingestion"
)

const defaultSettle = 500 * time.Millisecond

type changeType int

const (
	changeUpdated changeType = iota + 1
	changeRemoved
)

func (t changeType) String() string {
	switch t {
	case changeUpdated:
		return "updated"
	case changeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// fileChange is a pending re-ingest of one file.
type fileChange struct {
	Type changeType
	Path string
}

// classifyEvent maps a filesystem event to a file change. Directories,
// hidden files and chmod-only events yield nothing.
func classifyEvent(ev fsnotify.Event) (fileChange, bool) {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return fileChange{}, false
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		return fileChange{Type: changeRemoved, Path: ev.Name}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(ev.Name)
		if err != nil {
			return fileChange{Type: changeRemoved, Path: ev.Name}, true
		}
		if info.IsDir() {
			return fileChange{}, false
		}
		return fileChange{Type: changeUpdated, Path: ev.Name}, true
	default:
		return fileChange{}, false
	}
}

// pendingChanges collects the latest change per file and releases the ones
// that have been quiet for the settle period.
type pendingChanges struct {
	settle time.Duration
	mu     sync.Mutex
	byPath map[string]pendingChange
}

type pendingChange struct {
	change fileChange
	seen   time.Time
}

func newPendingChanges(settle time.Duration) *pendingChanges {
	return &pendingChanges{settle: settle, byPath: make(map[string]pendingChange)}
}

func (p *pendingChanges) Put(ch fileChange, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byPath[ch.Path] = pendingChange{change: ch, seen: now}
}

// Due removes and returns the changes last seen at least settle before now.
func (p *pendingChanges) Due(now time.Time) []fileChange {
	p.mu.Lock()
	defer p.mu.Unlock()

	var due []fileChange
	for path, pc := range p.byPath {
		if now.Sub(pc.seen) >= p.settle {
			due = append(due, pc.change)
			delete(p.byPath, path)
		}
	}
	return due
}

// Knowledge is the part of the App the watcher drives.
type Knowledge interface {
	Add(ctx context.Context, source core.Source, scope core.Scope, opts ...ingestion.IngestOption) (*ingestion.Result, error)
	Delete(ctx context.Context, scope core.Scope) (int, error)
}

// applyChange deletes the entries of the file under scope and, unless the
// file is gone, ingests it again. A failure after the delete leaves the file
// unindexed until its next change. The result is nil for removed files.
func applyChange(ctx context.Context, kb Knowledge, scope core.Scope, ch fileChange) (*ingestion.Result, error) {
	fileScope := scope.With(core.MetaURL, ch.Path)
	n, err := kb.Delete(ctx, fileScope)
	if err != nil {
		return nil, fmt.Errorf("deleting %s: %w", ch.Path, err)
	}
	slog.Debug("removed previous entries", "path", ch.Path, "count", n)
	if ch.Type == changeRemoved {
		return nil, nil
	}
	res, err := kb.Add(ctx, core.NewSource(ch.Path, ""), scope)
	if err != nil {
		return nil, fmt.Errorf("ingesting %s: %w", ch.Path, err)
	}
	return res, nil
}

// watchDirs adds root and every non-hidden directory below it to w.
func watchDirs(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func watchCommand(c *cli.Context) error {
	scope, err := requireScope(c)
	if err != nil {
		return err
	}
	root := c.Args().First()
	if root == "" {
		return errors.New("a directory to watch is required")
	}
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watchDirs(watcher, root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	settle := c.Duration("settle")
	pending := newPendingChanges(settle)
	ticker := time.NewTicker(max(settle/2, 10*time.Millisecond))
	defer ticker.Stop()

	slog.Info("watching directory", "path", root, "scope", scope.String())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !strings.HasPrefix(fi.Name(), ".") {
					if err := watchDirs(watcher, ev.Name); err != nil {
						slog.Warn("failed to watch directory", "path", ev.Name, "err", err)
					}
				}
			}
			if ch, ok := classifyEvent(ev); ok {
				pending.Put(ch, time.Now())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "err", err)
		case now := <-ticker.C:
			for _, ch := range pending.Due(now) {
				slog.Info("file changed", "path", ch.Path, "change", ch.Type)
				res, err := applyChange(ctx, app, scope, ch)
				if err != nil {
					slog.Warn("failed to apply change", "path", ch.Path, "err", err)
					continue
				}
				if res != nil {
					printResult(c.App.Writer, res, false)
				}
			}
		}
	}
}
