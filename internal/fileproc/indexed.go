package fileproc

import (
	"context"
	"runtime"

	"github.com/driftscan/driftscan/pkg/analyzer"
	"github.com/driftscan/driftscan/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// MapFilesIndexed processes files in parallel like MapFiles, but assigns
// results directly into a pre-sized slice by index instead of appending
// under a mutex, preserving input order and avoiding lock contention.
// A failed file leaves its slot at the zero value of T.
func MapFilesIndexed[T any](ctx context.Context, files []string, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := runtime.NumCPU() * DefaultWorkerMultiplier
	results := make([]T, len(files))
	errs := &ProcessingErrors{}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		idx := i
		filePath := path
		p.Go(func(ctx context.Context) error {
			defer func() {
				if tracker != nil {
					tracker.Tick(filePath)
				}
			}()

			select {
			case <-ctx.Done():
				errs.Add(filePath, ctx.Err())
				return ctx.Err()
			default:
			}

			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, filePath)
			if err != nil {
				errs.Add(filePath, err)
				return nil
			}

			results[idx] = result
			return nil
		})
	}
	_ = p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ForEachFileIndexed is the non-parser counterpart to MapFilesIndexed, for
// operations that don't need an AST (e.g. SATD scanning).
func ForEachFileIndexed[T any](ctx context.Context, files []string, fn func(string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	maxWorkers := runtime.NumCPU() * DefaultWorkerMultiplier
	results := make([]T, len(files))
	errs := &ProcessingErrors{}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	for i, path := range files {
		idx := i
		filePath := path
		p.Go(func(ctx context.Context) error {
			defer func() {
				if tracker != nil {
					tracker.Tick(filePath)
				}
			}()

			select {
			case <-ctx.Done():
				errs.Add(filePath, ctx.Err())
				return ctx.Err()
			default:
			}

			result, err := fn(filePath)
			if err != nil {
				errs.Add(filePath, err)
				return nil
			}

			results[idx] = result
			return nil
		})
	}
	_ = p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}
