package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Job tracks one fold iteration of a run.
type Job struct {
	ID          string
	KFold       int
	Status      JobStatus
	Phase       string
	StartTime   time.Time
	EndTime     *time.Time
	Error       error
	Description string
	Logs        []string
	cancelFunc  func()
	now         func() time.Time
	mu          sync.RWMutex
}

type Manager struct {
	RunID string
	jobs  map[string]*Job
	order []string
	now   func() time.Time
	mu    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		RunID: uuid.NewString(),
		jobs:  make(map[string]*Job),
		now:   time.Now,
	}
}

// CreateJob registers a pending job for iteration k.
func (m *Manager) CreateJob(k int, description string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := &Job{
		ID:          uuid.NewString(),
		KFold:       k,
		Status:      JobPending,
		Description: description,
		Logs:        []string{},
		now:         m.now,
	}

	m.jobs[job.ID] = job
	m.order = append(m.order, job.ID)
	return job
}

func (m *Manager) GetJob(jobID string) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, exists := m.jobs[jobID]
	return job, exists
}

// ListJobs returns jobs ordered by fold, then creation.
func (m *Manager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.order))
	for _, id := range m.order {
		jobs = append(jobs, m.jobs[id])
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].KFold < jobs[j].KFold })
	return jobs
}

func (m *Manager) CancelJob(jobID string) error {
	job, exists := m.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job %s not found", jobID)
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	if job.Status != JobRunning {
		return fmt.Errorf("job %s is not running", jobID)
	}

	if job.cancelFunc != nil {
		job.cancelFunc()
	}
	job.Status = JobCancelled
	job.finish()
	return nil
}

// Counts tallies jobs by status.
func (m *Manager) Counts() map[JobStatus]int {
	counts := make(map[JobStatus]int)
	for _, job := range m.ListJobs() {
		counts[job.GetStatus()]++
	}
	return counts
}

// Start marks the job running.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobRunning
	j.StartTime = j.now()
}

func (j *Job) SetStatus(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	if status == JobCompleted || status == JobFailed || status == JobCancelled {
		j.finish()
	}
}

// SetPhase records the step the job is executing and logs it.
func (j *Job) SetPhase(phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Phase = phase
	j.appendLog(phase)
}

func (j *Job) AddLog(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.appendLog(message)
}

func (j *Job) appendLog(message string) {
	timestamp := j.now().Format("15:04:05")
	j.Logs = append(j.Logs, fmt.Sprintf("[%s] %s", timestamp, message))
}

func (j *Job) SetError(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Error = err
	j.Status = JobFailed
	j.finish()
}

func (j *Job) SetCancelFunc(cancelFunc func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelFunc = cancelFunc
}

func (j *Job) finish() {
	if j.EndTime == nil {
		now := j.now()
		j.EndTime = &now
	}
}

func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

func (j *Job) GetPhase() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Phase
}

func (j *Job) GetError() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Error
}

// Duration is the time between Start and the end of the job, or until now
// while it is still running. It is zero before Start.
func (j *Job) Duration() time.Duration {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.StartTime.IsZero() {
		return 0
	}
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return j.now().Sub(j.StartTime)
}

func (j *Job) GetLogs() []string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.Logs))
	copy(logs, j.Logs)
	return logs
}
