// Package worker runs background duration probes for indexed tracks.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/ewilliams-labs/emotune/internal/adapters/audiofile"
	"github.com/ewilliams-labs/emotune/internal/core/domain"
	"github.com/ewilliams-labs/emotune/internal/core/ports"
	"github.com/ewilliams-labs/emotune/internal/logging"
	"github.com/ewilliams-labs/emotune/internal/metrics"
)

// Job asks for the duration of one track's file.
type Job struct {
	TrackID string
	Path    string
}

// ProbeFunc measures an audio file in seconds.
type ProbeFunc func(path string) (float64, error)

const probeWriteTimeout = 5 * time.Second

// Pool manages background workers for duration probes.
type Pool struct {
	store   ports.TrackRepository
	catalog *domain.Catalog
	probe   ProbeFunc
	jobs    chan Job
	wg      sync.WaitGroup

	// ctx is cancelled by Shutdown; queued jobs are then discarded.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

var _ ports.ProbeScheduler = (*Pool)(nil)

// NewPool creates a pool with the given queue size. Workers are started by
// Start.
func NewPool(store ports.TrackRepository, catalog *domain.Catalog, queueSize int) *Pool {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:   store,
		catalog: catalog,
		probe:   audiofile.ProbeDuration,
		jobs:    make(chan Job, queueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if p.ctx.Err() != nil {
					metrics.RecordProbe("cancelled")
					continue
				}
				p.processJob(job)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to drain.
func (p *Pool) Stop() {
	p.close()
	p.wg.Wait()
}

// Shutdown closes the queue and discards jobs that have not started. It waits
// for in-flight probes until ctx is done and returns ctx.Err() if they are
// still running then.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.close()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

// Submit queues a job without blocking. Jobs are dropped when the queue is
// full or the pool has stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		metrics.RecordProbe("dropped")
		logging.Warn().Str("track_id", job.TrackID).Msg("probe queue full, dropping job")
		return false
	}
}

// Schedule implements ports.ProbeScheduler.
func (p *Pool) Schedule(trackID, path string) {
	p.Submit(Job{TrackID: trackID, Path: path})
}

func (p *Pool) processJob(job Job) {
	seconds, err := p.probe(job.Path)
	if err != nil || seconds <= 0 {
		metrics.RecordProbe("error")
		logging.Debug().Err(err).Str("track_id", job.TrackID).Str("path", job.Path).Msg("duration probe failed")
		return
	}

	if p.ctx.Err() != nil {
		metrics.RecordProbe("cancelled")
		return
	}
	ctx, cancel := context.WithTimeout(p.ctx, probeWriteTimeout)
	defer cancel()
	if err := p.store.UpdateTrackDuration(ctx, job.TrackID, seconds); err != nil {
		metrics.RecordProbe("error")
		logging.Warn().Err(err).Str("track_id", job.TrackID).Msg("failed to store track duration")
		return
	}
	p.catalog.SetDuration(job.TrackID, seconds)
	metrics.RecordProbe("ok")
	logging.Debug().Str("track_id", job.TrackID).Float64("seconds", seconds).Msg("track duration probed")
}
