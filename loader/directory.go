package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/groundwork/core"
)

// ErrResolverRequired is returned when a directory loader has no resolver for its files.
var ErrResolverRequired = errors.New("directory loader requires a resolver")

// DirectoryLoader walks a directory and loads every file through the loader
// the resolver selects for it.
type DirectoryLoader struct {
	opts options
}

// NewDirectoryLoader creates a directory loader. WithResolver is required.
func NewDirectoryLoader(opts ...Option) *DirectoryLoader {
	return &DirectoryLoader{opts: newOptions("directory-loader", opts)}
}

// Load walks source.Identifier and concatenates the records of every file.
// Files that fail to load are reported in LoadResult.Failures.
func (l *DirectoryLoader) Load(ctx context.Context, source core.Source) (*core.LoadResult, error) {
	if l.opts.resolver == nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConfiguration, ErrResolverRequired)
	}
	root := source.Identifier
	files, err := l.walk(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoad, err)
	}

	perFile, failures, err := fanOut(ctx, l.opts.workers, files, l.opts.logger,
		func(ctx context.Context, path string) ([]core.LoadedRecord, error) {
			ld, kind, err := l.opts.resolver.LoaderForPath(path)
			if err != nil {
				return nil, err
			}
			res, err := ld.Load(ctx, core.NewSource(path, kind))
			if err != nil {
				return nil, err
			}
			return res.Records, nil
		})
	if err != nil {
		return nil, err
	}

	var records []core.LoadedRecord
	for _, recs := range perFile {
		records = append(records, recs...)
	}
	l.opts.logger.Info("loaded directory", "path", root, "files", len(files),
		"records", len(records), "failed", len(failures))

	return &core.LoadResult{
		SourceID: core.SourceID(root, contents(records)...),
		Records:  records,
		Failures: failures,
	}, nil
}

// walk lists the files to load in lexical order, skipping dot-files and
// dot-directories.
func (l *DirectoryLoader) walk(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if !l.opts.recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if l.opts.extensions != nil && !l.opts.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}
