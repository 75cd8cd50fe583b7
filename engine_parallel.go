package hilite

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jward/hilite/internal/props"
)

// highlightParallel classifies jobs on a worker pool and commits the
// results serially:
//
//	Phase A (parallel): parse and classify each file into memory.
//	Phase B (serial):   replace the file's stored annotations and snapshot.
//
// Workers share the Registry, whose tables and embedded parsers are safe
// for concurrent use. Only the committing goroutine writes to SQLite.
func (e *Engine) highlightParallel(ctx context.Context, jobs []fileJob) []error {
	if len(jobs) == 0 {
		return nil
	}

	// ---- Phase A: Parallel classification ----
	numWorkers := max(min(runtime.NumCPU(), len(jobs)), 1)

	workCh := make(chan fileJob, len(jobs))
	for _, job := range jobs {
		workCh <- job
	}
	close(workCh)

	type result struct {
		job  fileJob
		anns []props.Annotation
		err  error
	}
	resultCh := make(chan result, len(jobs))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range workCh {
				res, err := Highlight(ctx, e.reg, job.filetype, job.src, e.opts...)
				if err != nil {
					resultCh <- result{job: job, err: err}
					continue
				}
				resultCh <- result{job: job, anns: res.Annotations}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase B: Serial commit ----
	var errs []error
	for res := range resultCh {
		if res.err != nil {
			errs = append(errs, fmt.Errorf("highlight %s: %w", res.job.path, res.err))
			continue
		}
		if err := e.commit(res.job, res.anns); err != nil {
			errs = append(errs, fmt.Errorf("commit %s: %w", res.job.path, err))
		}
	}
	return errs
}
