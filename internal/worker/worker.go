// Package worker runs the periodic maintenance sweeps.  Each job runs on its
// own ticker; a run executes inline, so runs of the same job never overlap
// and ticks missed while a run is in progress are dropped.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUnknownJob is returned by RunOnce for a name that is not registered.
var ErrUnknownJob = errors.New("unknown job")

// Job is a named sweep.  Run returns how many records it changed.
type Job struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) (int64, error)
}

// Runner owns a fixed set of jobs.
type Runner struct {
	jobs map[string]Job
	wg   sync.WaitGroup
}

// NewRunner registers jobs by name.  A later job replaces an earlier one
// with the same name.
func NewRunner(jobs ...Job) *Runner {
	r := &Runner{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name] = j
	}
	return r
}

// Names lists the registered jobs in alphabetical order.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for n := range r.jobs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunOnce executes one job by name.
func (r *Runner) RunOnce(ctx context.Context, name string) (int64, error) {
	j, ok := r.jobs[name]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownJob, name)
	}
	return r.exec(ctx, j)
}

// Start launches every job with a positive interval and returns
// immediately.  The loops stop when ctx is cancelled; Wait blocks until
// they have.
func (r *Runner) Start(ctx context.Context) {
	for _, j := range r.jobs {
		if j.Every <= 0 {
			continue
		}
		r.wg.Add(1)
		go func(j Job) {
			defer r.wg.Done()
			t := time.NewTicker(j.Every)
			defer t.Stop()
			log.Printf("worker: %s scheduled every %s", j.Name, j.Every)
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					_, _ = r.exec(ctx, j)
				}
			}
		}(j)
	}
}

// Wait blocks until all loops started by Start have returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) exec(ctx context.Context, j Job) (int64, error) {
	ctx, span := otel.Tracer("quickreserve/worker").Start(ctx, "job."+j.Name)
	defer span.End()

	start := time.Now()
	n, err := j.Run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("worker: %s failed after %s: %v", j.Name, time.Since(start), err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("job.affected", n))
	if n > 0 {
		log.Printf("worker: %s affected %d records", j.Name, n)
	}
	return n, nil
}
