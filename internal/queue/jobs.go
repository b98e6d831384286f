package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/types"
)

// EnrollJob represents an enrollment sample waiting to be sent to Azure
type EnrollJob struct {
	ID        string                  `json:"id"`
	Username  string                  `json:"username"`
	FilePath  string                  `json:"-"`
	Status    string                  `json:"status"`
	Error     string                  `json:"error,omitempty"`
	Result    *azure.ProcessingResult `json:"result,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// NewEnrollJob creates a new job with default values
func NewEnrollJob(id, username, filePath string) *EnrollJob {
	now := time.Now()
	return &EnrollJob{
		ID:        id,
		Username:  username,
		FilePath:  filePath,
		Status:    types.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// registry keeps jobs so their status can be polled. Finished jobs are
// dropped after retention.
type registry struct {
	mu        sync.RWMutex
	jobs      map[string]*EnrollJob
	retention time.Duration
}

func newRegistry(retention time.Duration) *registry {
	return &registry{
		jobs:      make(map[string]*EnrollJob),
		retention: retention,
	}
}

// add stores a copy of job; later changes go through update.
func (r *registry) add(job *EnrollJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
}

// update applies fn to the job under the lock.
func (r *registry) update(id string, fn func(job *EnrollJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
		job.UpdatedAt = time.Now()
	}
}

// get returns a copy of the job.
func (r *registry) get(id string) (EnrollJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return EnrollJob{}, false
	}
	return *job, true
}

// prune drops finished jobs last updated before now minus the retention.
func (r *registry) prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		finished := job.Status == types.StatusCompleted || job.Status == types.StatusFailed
		if finished && now.Sub(job.UpdatedAt) > r.retention {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}
