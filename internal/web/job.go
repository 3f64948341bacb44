package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/replyforge/replyforge/internal/responder"
)

type JobStatus string

const (
	JobStatusRunning JobStatus = "running"
	JobStatusStopped JobStatus = "stopped"
	JobStatusError   JobStatus = "error"
)

// MonitorJob is one background run of the responder loop.
type MonitorJob struct {
	ID        string
	Status    JobStatus
	StartedAt time.Time
	StoppedAt time.Time
	Error     string

	Cycles    int
	Processed int
	Replied   int
	Fallback  int
	Failed    int

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

func (j *MonitorJob) Context() context.Context { return j.ctx }

// RecordCycle folds one cycle's summary into the job totals.
func (j *MonitorJob) RecordCycle(summary responder.Summary) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.Cycles++
	j.Processed += summary.Processed
	j.Replied += summary.Replied
	j.Fallback += summary.Fallback
	j.Failed += summary.Failed
}

func (j *MonitorJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status == JobStatusRunning {
		j.Status = JobStatusStopped
		j.StoppedAt = time.Now()
		j.cancel()
	}
}

// Fail marks the job dead with an error message.
func (j *MonitorJob) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status == JobStatusRunning {
		j.Status = JobStatusError
		j.Error = msg
		j.StoppedAt = time.Now()
		j.cancel()
	}
}

// Snapshot returns the job state for JSON responses.
func (j *MonitorJob) Snapshot() map[string]interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()

	return map[string]interface{}{
		"id":         j.ID,
		"status":     j.Status,
		"started_at": j.StartedAt,
		"stopped_at": j.StoppedAt,
		"error":      j.Error,
		"cycles":     j.Cycles,
		"processed":  j.Processed,
		"replied":    j.Replied,
		"fallback":   j.Fallback,
		"failed":     j.Failed,
	}
}

// JobManager tracks the monitor loop. Only one loop may run at a time.
type JobManager struct {
	mu     sync.Mutex
	active *MonitorJob
}

func NewJobManager() *JobManager {
	return &JobManager{}
}

// Start creates a running job, or returns nil if one is already running.
func (jm *JobManager) Start() *MonitorJob {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if jm.active != nil && jm.active.Status == JobStatusRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	jm.active = &MonitorJob{
		ID:        uuid.New().String(),
		Status:    JobStatusRunning,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	return jm.active
}

// Active returns the current job, running or not, or nil if none started yet.
func (jm *JobManager) Active() *MonitorJob {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	return jm.active
}

// StopActive stops the running job and reports whether there was one.
func (jm *JobManager) StopActive() bool {
	jm.mu.Lock()
	job := jm.active
	jm.mu.Unlock()

	if job == nil || job.Status != JobStatusRunning {
		return false
	}
	job.Stop()
	return true
}
