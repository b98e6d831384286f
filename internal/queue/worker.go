package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/metrics"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// ErrQueueFull is returned when the job buffer is full.
var ErrQueueFull = errors.New("enrollment queue is full")

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("enrollment queue is stopped")

const (
	queueSize    = 100
	jobRetention = time.Hour
)

// Enroller sends an enrollment sample to a user's profile.
type Enroller interface {
	Enroll(ctx context.Context, username, wavPath string) (*azure.ProcessingResult, error)
}

// NormalizeFunc converts an uploaded file into an Azure-ready WAV in tempDir.
type NormalizeFunc func(ctx context.Context, inputPath, tempDir string) (string, error)

// WorkerPool manages a pool of workers processing enrollment jobs
type WorkerPool struct {
	jobQueue    chan *EnrollJob
	workerCount int
	enroller    Enroller
	normalize   NormalizeFunc
	tempDir     string
	jobs        *registry
	metrics     *metrics.Metrics
	log         *logrus.Entry

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	workerCount int,
	enroller Enroller,
	normalize NormalizeFunc,
	tempDir string,
	m *metrics.Metrics,
	log *logrus.Entry,
) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if m == nil {
		m = metrics.New(nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		jobQueue:    make(chan *EnrollJob, queueSize),
		workerCount: workerCount,
		enroller:    enroller,
		normalize:   normalize,
		tempDir:     tempDir,
		jobs:        newRegistry(jobRetention),
		metrics:     m,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start() {
	wp.log.Infof("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Enqueue adds a job to the queue without blocking
func (wp *WorkerPool) Enqueue(job *EnrollJob) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return ErrStopped
	}

	job.Status = types.StatusQueued
	wp.jobs.add(job)

	select {
	case wp.jobQueue <- job:
	default:
		wp.jobs.update(job.ID, func(j *EnrollJob) {
			j.Status = types.StatusFailed
			j.Error = ErrQueueFull.Error()
		})
		return ErrQueueFull
	}

	wp.metrics.SetEnrollQueueLength(len(wp.jobQueue))
	wp.log.Infof("Job %s enqueued (user: %s)", job.ID, job.Username)
	return nil
}

// Get returns a snapshot of a job.
func (wp *WorkerPool) Get(id string) (EnrollJob, bool) {
	return wp.jobs.get(id)
}

// Prune forgets finished jobs older than the retention period.
func (wp *WorkerPool) Prune() int {
	return wp.jobs.prune(time.Now())
}

// Stop stops accepting jobs and waits for the workers to drain the queue.
// When ctx ends first, in-flight jobs are cancelled.
func (wp *WorkerPool) Stop(ctx context.Context) error {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobQueue)
	}
	wp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.cancel()
		return nil
	case <-ctx.Done():
		wp.cancel()
		<-done
		return ctx.Err()
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()
	log := wp.log.WithField("worker", id)
	log.Debug("Worker started")

	for job := range wp.jobQueue {
		wp.metrics.SetEnrollQueueLength(len(wp.jobQueue))

		// Panic recovery
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("PANIC processing job %s: %v\n%s", job.ID, r, string(debug.Stack()))
					wp.finish(job.ID, nil, fmt.Errorf("worker panic: %v", r))
					wp.cleanupTempFile(job.FilePath)
				}
			}()

			wp.processJob(log, job)
		}()
	}
}

// processJob normalizes the sample and enrolls it
func (wp *WorkerPool) processJob(log *logrus.Entry, job *EnrollJob) {
	log.Infof("Processing job %s", job.ID)
	wp.jobs.update(job.ID, func(j *EnrollJob) { j.Status = types.StatusProcessing })
	defer wp.cleanupTempFile(job.FilePath)

	// Step 1: Normalize audio
	normalizedPath, err := wp.normalize(wp.ctx, job.FilePath, wp.tempDir)
	if err != nil {
		log.Errorf("Audio normalization failed for job %s: %v", job.ID, err)
		wp.finish(job.ID, nil, fmt.Errorf("audio normalization failed: %w", err))
		return
	}
	if normalizedPath != job.FilePath {
		defer wp.cleanupTempFile(normalizedPath)
	}

	// Step 2: Enroll with Azure
	result, err := wp.enroller.Enroll(wp.ctx, job.Username, normalizedPath)
	if err != nil {
		log.Errorf("Enrollment failed for job %s: %v", job.ID, err)
		wp.finish(job.ID, nil, fmt.Errorf("enrollment failed: %w", err))
		return
	}

	wp.finish(job.ID, result, nil)
	log.Infof("Job %s completed (user: %s)", job.ID, job.Username)
}

func (wp *WorkerPool) finish(id string, result *azure.ProcessingResult, err error) {
	status := types.StatusCompleted
	if err != nil {
		status = types.StatusFailed
	}
	wp.jobs.update(id, func(j *EnrollJob) {
		j.Status = status
		j.Result = result
		if err != nil {
			j.Error = err.Error()
		}
	})
	wp.metrics.EnrollJobFinished(status)
}

// cleanupTempFile removes a temporary file
func (wp *WorkerPool) cleanupTempFile(filePath string) {
	if filePath == "" {
		return
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		wp.log.Warnf("Failed to cleanup temp file %s: %v", filePath, err)
	}
}
