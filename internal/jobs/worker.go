package jobs

import (
	"context"
	"log"
	"time"
)

const (
	defaultPollInterval = 5 * time.Second
	maxBackoffFactor    = 8
)

// JobProcessor drains one batch of queued work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker polls a JobProcessor until its context ends. Consecutive failed
// batches stretch the wait up to maxBackoffFactor poll intervals.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
}

func NewWorker(processor JobProcessor, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Worker{processor: processor, pollInterval: pollInterval}
}

// Run processes one batch immediately and keeps polling until ctx is done.
// A batch in flight sees the same ctx, so it ends early on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	log.Printf("worker: started with poll interval %v", w.pollInterval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("worker: stopped")
			return nil
		case <-timer.C:
		}

		if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
			failures++
			log.Printf("worker: error processing jobs (attempt %d): %v", failures, err)
		} else {
			failures = 0
		}
		timer.Reset(w.nextDelay(failures))
	}
}

func (w *Worker) nextDelay(failures int) time.Duration {
	factor := 1
	for i := 0; i < failures && factor < maxBackoffFactor; i++ {
		factor *= 2
	}
	return w.pollInterval * time.Duration(factor)
}
