// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/auspexhq/auspex/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

func workers(maxWorkers int) int {
	if maxWorkers > 0 {
		return maxWorkers
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// run fans files out over a bounded pool, appending results under a mutex.
// Failed files land in errs and never contribute a result.
func run[T any](files []string, maxWorkers int, fn func(string) (T, error), onProgress ProgressFunc, errs *ProcessingErrors) []T {
	if len(files) == 0 {
		return nil
	}

	results := make([]T, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(workers(maxWorkers))
	for _, path := range files {
		p.Go(func() {
			result, err := fn(path)
			if onProgress != nil {
				onProgress()
			}
			if err != nil {
				if errs != nil {
					errs.Add(path, err)
				}
				return
			}
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		})
	}
	p.Wait()

	return results
}

// MapFilesN processes files with a configurable worker count, calling fn
// for each file with a dedicated parser. If maxWorkers is <= 0, defaults
// to 2x NumCPU. Results are returned in arbitrary order; per-file errors
// are silently skipped. Use MapFilesCollectErrors when errors matter.
func MapFilesN[T any](files []string, maxWorkers int, fn func(*parser.Parser, string) (T, error)) []T {
	return run(files, maxWorkers, func(path string) (T, error) {
		psr := parser.New()
		defer psr.Close()
		return fn(psr, path)
	}, nil, nil)
}

// MapFilesCollectErrors processes files in parallel and collects all errors.
func MapFilesCollectErrors[T any](files []string, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	return MapFilesCollectErrorsWithProgress(files, fn, nil)
}

// MapFilesCollectErrorsWithProgress processes files in parallel with a
// progress callback and collects per-file errors.
func MapFilesCollectErrorsWithProgress[T any](files []string, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	errs := &ProcessingErrors{}
	results := run(files, 0, func(path string) (T, error) {
		psr := parser.New()
		defer psr.Close()
		return fn(psr, path)
	}, onProgress, errs)

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ForEachFile processes files in parallel, calling fn for each file.
// No parser is provided; use this for non-AST, in-memory per-file work.
func ForEachFile[T any](files []string, fn func(string) (T, error)) []T {
	return run(files, 0, fn, nil, nil)
}

// ForEachFileN processes files with a configurable worker count.
// If maxWorkers is <= 0, defaults to 2x NumCPU.
func ForEachFileN[T any](files []string, maxWorkers int, fn func(string) (T, error), onProgress ProgressFunc) []T {
	return run(files, maxWorkers, fn, onProgress, nil)
}

// ForEachFileCollectErrors processes files in parallel and collects all errors.
func ForEachFileCollectErrors[T any](files []string, fn func(string) (T, error)) ([]T, *ProcessingErrors) {
	errs := &ProcessingErrors{}
	results := run(files, 0, fn, nil, errs)
	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// MapFilesWithContext processes files in parallel with context cancellation
// support. Files not yet started when the context is cancelled are recorded
// as context errors; individual file failures never stop the pool.
func MapFilesWithContext[T any](ctx context.Context, files []string, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]T, 0, len(files))
	errs := &ProcessingErrors{}
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(workers(0)).WithContext(ctx)
	for _, path := range files {
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				errs.Add(path, ctx.Err())
				return ctx.Err()
			default:
			}

			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, path)
			if err != nil {
				errs.Add(path, err)
				return nil
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = p.Wait() // Context errors are already captured in errs

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
