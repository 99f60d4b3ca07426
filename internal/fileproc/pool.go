package fileproc

import (
	"context"
	"runtime"

	"github.com/driftscan/driftscan/pkg/analyzer"
	"github.com/driftscan/driftscan/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// parserPool is a fixed-size pool of reusable parsers, one roughly per
// worker, to avoid allocating a new tree-sitter parser per file.
type parserPool struct {
	parsers chan *parser.Parser
}

func newParserPool(size int) *parserPool {
	p := &parserPool{parsers: make(chan *parser.Parser, size)}
	for i := 0; i < size; i++ {
		p.parsers <- parser.New()
	}
	return p
}

func (p *parserPool) get() *parser.Parser {
	return <-p.parsers
}

func (p *parserPool) put(psr *parser.Parser) {
	p.parsers <- psr
}

func (p *parserPool) close() {
	close(p.parsers)
	for psr := range p.parsers {
		psr.Close()
	}
}

// MapFilesPooled processes files in parallel like MapFiles, but draws
// parsers from a shared pool sized to the worker count instead of creating
// one per file. Preferable to MapFiles for large file sets.
func MapFilesPooled[T any](ctx context.Context, files []string, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
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

	parserPl := newParserPool(maxWorkers)
	defer parserPl.close()

	var success []T
	successIdx := make([]bool, len(files))

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

			psr := parserPl.get()
			defer parserPl.put(psr)

			result, err := fn(psr, filePath)
			if err != nil {
				errs.Add(filePath, err)
				return nil
			}

			results[idx] = result
			successIdx[idx] = true
			return nil
		})
	}
	_ = p.Wait()

	success = make([]T, 0, len(files))
	for i, ok := range successIdx {
		if ok {
			success = append(success, results[i])
		}
	}

	if !errs.HasErrors() {
		return success, nil
	}
	return success, errs
}
