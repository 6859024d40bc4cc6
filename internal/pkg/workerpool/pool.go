package workerpool

import (
	"context"
	"sync"

	"github.com/mfellner/advicebuilder/internal/pkg/logger"
)

type Job func(ctx context.Context)

type WorkerPool struct {
	queue chan Job
	log   *logger.Logger
	wg    sync.WaitGroup
}

func NewWorkerPool(ctx context.Context, log *logger.Logger, workerCount int, queueSize int) *WorkerPool {
	if log == nil {
		log = logger.Nop()
	}

	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
		log:   log.With("component", "workerpool"),
	}

	for i := 0; i < workerCount; i++ {
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.log.Debug("worker received shutdown signal")
			return
		case job, ok := <-p.queue:
			if !ok {
				// queue closed
				return
			}
			p.wg.Add(1)
			job(ctx)
			p.wg.Done()
		}
	}
}

func (p *WorkerPool) Submit(job Job) {
	select {
	case p.queue <- job:
		// job submitted successfully
	default:
		p.log.Warn("worker pool queue full: job dropped")
	}
}

func (p *WorkerPool) Shutdown(ctx context.Context) {
	close(p.queue)

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		p.log.Warn("worker pool shutdown timed out")
	case <-done:
		p.log.Info("worker pool shutdown complete")
	}
}
