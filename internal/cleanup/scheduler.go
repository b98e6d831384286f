// Package cleanup periodically removes stale temporary files and expired
// in-memory state.
package cleanup

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Task is an extra sweep run on every tick. It returns how many items it
// removed.
type Task struct {
	Name string
	Run  func() int
}

// Scheduler handles cleanup of temporary files
type Scheduler struct {
	tempDir  string
	interval time.Duration
	maxAge   time.Duration
	tasks    []Task
	log      *logrus.Entry
	now      func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewScheduler creates a new cleanup scheduler
func NewScheduler(tempDir string, intervalMinutes, maxAgeHours int, log *logrus.Entry, tasks ...Task) *Scheduler {
	if intervalMinutes <= 0 {
		intervalMinutes = 60
	}
	return &Scheduler{
		tempDir:  tempDir,
		interval: time.Duration(intervalMinutes) * time.Minute,
		maxAge:   time.Duration(maxAgeHours) * time.Hour,
		tasks:    tasks,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a first cleanup and then one every interval
func (s *Scheduler) Start() {
	s.log.Info("Running initial cleanup...")
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce()
			case <-s.stopChan:
				return
			}
		}
	}()

	s.log.Infof("Cleanup scheduler started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop stops the cleanup scheduler
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info("Cleanup scheduler stopped")
	})
}

// RunOnce cleans the temp directory and runs every task.
func (s *Scheduler) RunOnce() {
	s.cleanOldFiles()
	for _, t := range s.tasks {
		if n := t.Run(); n > 0 {
			s.log.Infof("Cleanup %s: %d removed", t.Name, n)
		}
	}
}

// cleanOldFiles removes files older than maxAge from the temp directory
func (s *Scheduler) cleanOldFiles() {
	now := s.now()

	var deletedCount int
	var deletedSize int64

	err := filepath.WalkDir(s.tempDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil // Skip what we can't access and directories
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= s.maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.log.Warnf("Failed to delete old file %s: %v", path, err)
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		s.log.Debugf("Deleted old temp file: %s (age: %s, size: %dKB)",
			filepath.Base(path), age.Round(time.Minute), info.Size()/1024)
		return nil
	})
	if err != nil {
		s.log.Warnf("Error during cleanup: %v", err)
	}

	if deletedCount > 0 {
		s.log.Infof("Cleanup complete: %d files deleted, %.2fMB freed",
			deletedCount, float64(deletedSize)/(1024*1024))
	}
}

// EnsureTempDirExists creates the temp directory if it doesn't exist
func EnsureTempDirExists(tempDir string) error {
	return os.MkdirAll(tempDir, 0755)
}
