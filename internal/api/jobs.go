package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khanhnv2901/seca-probe/internal/domain/scan"
)

// Job states
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobDone      = "done"
	JobCancelled = "cancelled"
	JobError     = "error"
)

// ScanRequest is the body of POST /api/v1/scans
type ScanRequest struct {
	Host        string `json:"host"`
	StartPort   int    `json:"start_port"`
	EndPort     int    `json:"end_port"`
	Concurrency int    `json:"concurrency,omitempty"`
	TimeoutMS   int    `json:"timeout_ms,omitempty"`
}

// Job tracks one asynchronous scan
type Job struct {
	ID         string        `json:"id"`
	Status     string        `json:"status"`
	Request    ScanRequest   `json:"request"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	ReportID   string        `json:"report_id,omitempty"`
	Address    string        `json:"address,omitempty"`
	Summary    *scan.Summary `json:"summary,omitempty"`
	OpenPorts  []int         `json:"open_ports,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Finished reports whether the job reached a terminal state
func (j Job) Finished() bool {
	return j.Status == JobDone || j.Status == JobCancelled || j.Status == JobError
}

type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	subscribers map[chan Job]struct{}
	maxJobs     int // Maximum number of jobs to keep in memory
	dropped     atomic.Int64
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewJobManager() *JobManager {
	m := &JobManager{
		jobs:        make(map[string]*Job),
		subscribers: make(map[chan Job]struct{}),
		maxJobs:     1000, // Default: keep last 1000 jobs
		stop:        make(chan struct{}),
	}
	// Start cleanup goroutine to remove old finished jobs
	go m.cleanupLoop(5 * time.Minute)
	return m
}

// Close stops the cleanup loop
func (m *JobManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *JobManager) CreateJob(req ScanRequest) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := &Job{
		ID:        generateID("job"),
		Status:    JobPending,
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	m.broadcast(*job)
	copy := *job
	return &copy
}

func (m *JobManager) UpdateJob(id string, update func(*Job)) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	update(job)
	m.broadcast(*job)
	copy := *job
	return &copy
}

func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[id]; ok {
		copy := *job
		return &copy
	}
	return nil
}

// ListJobs returns up to limit jobs, newest first
func (m *JobManager) ListJobs(limit int) []Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.jobs) {
		limit = len(m.jobs)
	}
	jobs := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, *job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
		}
		return jobs[i].ID > jobs[j].ID
	})

	return jobs[:limit]
}

func (m *JobManager) Subscribe() (chan Job, func()) {
	ch := make(chan Job, 32)
	m.mu.Lock()
	m.subscribers[ch] = struct{}{}
	m.mu.Unlock()
	return ch, func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
}

// Dropped returns how many updates were discarded because a subscriber was too slow
func (m *JobManager) Dropped() int64 {
	return m.dropped.Load()
}

// broadcast must be called with m.mu held
func (m *JobManager) broadcast(job Job) {
	for ch := range m.subscribers {
		select {
		case ch <- job:
		default:
			m.dropped.Add(1)
		}
	}
}

func generateID(prefix string) string {
	// Use cryptographically secure random ID to prevent enumeration attacks
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func (m *JobManager) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.prune()
		case <-m.stop:
			return
		}
	}
}

// prune removes the oldest finished jobs while more than maxJobs are kept
func (m *JobManager) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.jobs) <= m.maxJobs {
		return
	}

	type jobWithTime struct {
		id   string
		time time.Time
	}
	var finished []jobWithTime
	for id, job := range m.jobs {
		if !job.Finished() {
			continue
		}
		finishTime := job.CreatedAt
		if job.FinishedAt != nil {
			finishTime = *job.FinishedAt
		}
		finished = append(finished, jobWithTime{id: id, time: finishTime})
	}

	// Sort oldest first
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].time.Before(finished[j].time)
	})

	toRemove := min(len(m.jobs)-m.maxJobs, len(finished))
	for i := 0; i < toRemove; i++ {
		delete(m.jobs, finished[i].id)
	}
}

// SetMaxJobs configures the maximum number of jobs to retain in memory
func (m *JobManager) SetMaxJobs(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if max > 0 {
		m.maxJobs = max
	}
}
