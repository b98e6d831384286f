package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/logging"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

type fakeEnroller struct {
	mu    sync.Mutex
	calls []string
	err   error
	// panicFirst makes the first call panic.
	panicFirst bool
	block      chan struct{}
}

func (f *fakeEnroller) Enroll(ctx context.Context, username, wavPath string) (*azure.ProcessingResult, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, username+":"+filepath.Base(wavPath))
	first := len(f.calls) == 1
	f.mu.Unlock()
	if f.panicFirst && first {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &azure.ProcessingResult{EnrollmentStatus: azure.EnrollmentEnrolled}, nil
}

// copyNormalize writes the normalized file next to the input.
func copyNormalize(_ context.Context, inputPath, tempDir string) (string, error) {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", err
	}
	out := filepath.Join(tempDir, "normalized_"+filepath.Base(inputPath))
	return out, os.WriteFile(out, data, 0644)
}

func writeUpload(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("audio"), 0644))
	return p
}

func waitFinished(t *testing.T, wp *WorkerPool, id string) EnrollJob {
	t.Helper()
	var job EnrollJob
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = wp.Get(id)
		return ok && (job.Status == types.StatusCompleted || job.Status == types.StatusFailed)
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestWorkerPool_ProcessesJobs(t *testing.T) {
	dir := t.TempDir()
	enroller := &fakeEnroller{}
	wp := NewWorkerPool(2, enroller, copyNormalize, dir, nil, logging.Discard())
	wp.Start()

	upload := writeUpload(t, dir, "upload.webm")
	require.NoError(t, wp.Enqueue(NewEnrollJob("job-1", "alice", upload)))

	job := waitFinished(t, wp, "job-1")
	assert.Equal(t, types.StatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, azure.EnrollmentEnrolled, job.Result.EnrollmentStatus)
	assert.Equal(t, []string{"alice:normalized_upload.webm"}, enroller.calls)

	require.NoError(t, wp.Stop(context.Background()))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded and normalized files are removed")
}

func TestWorkerPool_Failures(t *testing.T) {
	dir := t.TempDir()

	enroller := &fakeEnroller{err: errors.New("quota exceeded")}
	wp := NewWorkerPool(1, enroller, copyNormalize, dir, nil, logging.Discard())
	wp.Start()
	defer wp.Stop(context.Background())

	require.NoError(t, wp.Enqueue(NewEnrollJob("job-1", "alice", writeUpload(t, dir, "a.wav"))))
	job := waitFinished(t, wp, "job-1")
	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "quota exceeded")

	badNormalize := func(context.Context, string, string) (string, error) {
		return "", errors.New("ffmpeg missing")
	}
	wp2 := NewWorkerPool(1, &fakeEnroller{}, badNormalize, dir, nil, logging.Discard())
	wp2.Start()
	defer wp2.Stop(context.Background())

	require.NoError(t, wp2.Enqueue(NewEnrollJob("job-2", "bob", writeUpload(t, dir, "b.wav"))))
	job = waitFinished(t, wp2, "job-2")
	assert.Contains(t, job.Error, "audio normalization failed")
}

func TestWorkerPool_RecoversFromPanic(t *testing.T) {
	dir := t.TempDir()
	wp := NewWorkerPool(1, &fakeEnroller{panicFirst: true}, copyNormalize, dir, nil, logging.Discard())
	wp.Start()

	require.NoError(t, wp.Enqueue(NewEnrollJob("job-1", "alice", writeUpload(t, dir, "a.wav"))))
	job := waitFinished(t, wp, "job-1")
	assert.Equal(t, types.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "worker panic")

	// the worker is still alive
	require.NoError(t, wp.Enqueue(NewEnrollJob("job-2", "alice", writeUpload(t, dir, "b.wav"))))
	assert.Equal(t, types.StatusCompleted, waitFinished(t, wp, "job-2").Status)

	require.NoError(t, wp.Stop(context.Background()))
}

func TestWorkerPool_Stop(t *testing.T) {
	dir := t.TempDir()
	enroller := &fakeEnroller{block: make(chan struct{})}
	wp := NewWorkerPool(1, enroller, copyNormalize, dir, nil, logging.Discard())
	wp.Start()

	require.NoError(t, wp.Enqueue(NewEnrollJob("job-1", "alice", writeUpload(t, dir, "a.wav"))))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, wp.Stop(ctx), context.DeadlineExceeded)

	job, ok := wp.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, types.StatusFailed, job.Status, "the blocked job is cancelled")

	assert.ErrorIs(t, wp.Enqueue(NewEnrollJob("job-2", "alice", "")), ErrStopped)
	assert.NoError(t, wp.Stop(context.Background()), "stopping twice is fine")
}

func TestWorkerPool_QueueFull(t *testing.T) {
	// no workers started, so nothing drains the queue
	wp := NewWorkerPool(1, &fakeEnroller{}, copyNormalize, t.TempDir(), nil, logging.Discard())
	for i := 0; i < queueSize; i++ {
		require.NoError(t, wp.Enqueue(NewEnrollJob(fmt.Sprintf("job-%d", i), "u", "")))
	}
	err := wp.Enqueue(NewEnrollJob("overflow", "u", ""))
	assert.ErrorIs(t, err, ErrQueueFull)

	job, ok := wp.Get("overflow")
	require.True(t, ok)
	assert.Equal(t, types.StatusFailed, job.Status)
}

func TestRegistry_Prune(t *testing.T) {
	r := newRegistry(time.Hour)
	old := NewEnrollJob("old", "u", "")
	old.Status = types.StatusCompleted
	old.UpdatedAt = time.Now().Add(-2 * time.Hour)
	running := NewEnrollJob("running", "u", "")
	running.Status = types.StatusProcessing
	running.UpdatedAt = time.Now().Add(-2 * time.Hour)
	r.add(old)
	r.add(running)

	assert.Equal(t, 1, r.prune(time.Now()))
	_, ok := r.get("old")
	assert.False(t, ok)
	_, ok = r.get("running")
	assert.True(t, ok)
}
