// Package batch dispatches a per-file job across one container or a
// directory tree of containers with bounded parallelism.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job processes one container file.
type Job func(ctx context.Context, path string) error

// Options controls discovery and dispatch.
type Options struct {
	// Model is a filename to exclude from discovery, the convention for
	// the data-model container the rewriter must never touch.
	Model string

	// Jobs caps concurrent workers. Zero means one.
	Jobs int
}

// FileError records a per-file failure.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Result summarises a run.
type Result struct {
	Processed int
	Failed    []FileError
}

// OK reports whether every file succeeded.
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// Run applies job to root. A file path runs a single job; a directory is
// walked for *.pbix files (excluding the model file and temp artifacts)
// and jobs run concurrently up to the configured limit. Per-file
// failures are collected, never fatal to the rest of the batch.
func Run(ctx context.Context, root string, opts Options, job Job) (Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return Result{}, fmt.Errorf("resolving path: %w", err)
	}

	if !info.IsDir() {
		res := Result{Processed: 1}
		if err := job(ctx, root); err != nil {
			res.Failed = append(res.Failed, FileError{Path: root, Err: err})
		}
		return res, nil
	}

	paths, err := Discover(root, opts.Model)
	if err != nil {
		return Result{}, err
	}

	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	var mu sync.Mutex
	res := Result{Processed: len(paths)}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := job(ctx, path); err != nil {
				mu.Lock()
				res.Failed = append(res.Failed, FileError{Path: path, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}

// Discover walks a tree collecting report containers, excluding the
// model file and temp artifacts.
func Discover(root, model string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		name := d.Name()
		if !strings.EqualFold(filepath.Ext(name), ".pbix") {
			return nil
		}
		if model != "" && name == model {
			return nil
		}
		// Leftover temp artifacts from an interrupted write.
		if strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), " Temp") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return paths, nil
}
