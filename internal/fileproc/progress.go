package fileproc

import (
	"runtime"
	"sync"

	"github.com/driftscan/driftscan/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProgressFunc is called after each file is processed. Unlike the
// context-carried analyzer.Tracker used by MapFiles/ForEachFile, this is a
// plain per-call callback for analyzers with their own progress reporting
// (duplicates, ownership).
type ProgressFunc func()

// MapFilesWithProgress processes files in parallel with an optional
// per-file progress callback, using 2x NumCPU workers.
func MapFilesWithProgress[T any](files []string, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc) []T {
	return MapFilesN(files, runtime.NumCPU()*DefaultWorkerMultiplier, fn, onProgress)
}

// MapFilesN processes files with a configurable worker count. If
// maxWorkers <= 0, defaults to 2x NumCPU.
func MapFilesN[T any](files []string, maxWorkers int, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc) []T {
	if len(files) == 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	results := make([]T, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for _, path := range files {
		filePath := path
		p.Go(func() {
			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, filePath)
			if onProgress != nil {
				onProgress()
			}
			if err != nil {
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

// ForEachFileWithProgress is the non-parser counterpart to
// MapFilesWithProgress.
func ForEachFileWithProgress[T any](files []string, fn func(string) (T, error), onProgress ProgressFunc) []T {
	return ForEachFileN(files, runtime.NumCPU()*DefaultWorkerMultiplier, fn, onProgress, nil)
}

// ForEachFileN processes files with a configurable worker count, an
// optional per-file progress callback, and an optional error callback.
// Used where the worker count must be capped below NumCPU*2 (e.g. native
// git blame, which opens one process per file).
func ForEachFileN[T any](files []string, maxWorkers int, fn func(string) (T, error), onProgress ProgressFunc, onError func(path string, err error)) []T {
	if len(files) == 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	results := make([]T, 0, len(files))
	var mu sync.Mutex

	p := pool.New().WithMaxGoroutines(maxWorkers)
	for _, path := range files {
		filePath := path
		p.Go(func() {
			result, err := fn(filePath)
			if onProgress != nil {
				onProgress()
			}
			if err != nil {
				if onError != nil {
					onError(filePath, err)
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
