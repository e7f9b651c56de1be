package metrics

import (
	"sync"
)

// Metrics tracks pipeline counters
type Metrics struct {
	mu sync.RWMutex

	jobsCreated          int64
	jobsReused           int64
	jobsCompleted        int64
	jobsFailed           int64
	deliveriesSucceeded  int64
	deliveriesFailed     int64
	failureNotifications int64
	filesArchived        int64
	filesCleaned         int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncrementJobsCreated increments the created-jobs counter
func (m *Metrics) IncrementJobsCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsCreated++
}

// IncrementJobsReused increments the deduplicated-requests counter
func (m *Metrics) IncrementJobsReused() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsReused++
}

// IncrementJobsCompleted increments the completed-jobs counter
func (m *Metrics) IncrementJobsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsCompleted++
}

// IncrementJobsFailed increments the failed-jobs counter
func (m *Metrics) IncrementJobsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobsFailed++
}

// IncrementDeliveriesSucceeded increments the successful-deliveries counter
func (m *Metrics) IncrementDeliveriesSucceeded() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveriesSucceeded++
}

// IncrementDeliveriesFailed increments the failed-delivery-attempts counter
func (m *Metrics) IncrementDeliveriesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveriesFailed++
}

// IncrementFailureNotifications increments the failure-notices counter
func (m *Metrics) IncrementFailureNotifications() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureNotifications++
}

// IncrementFilesArchived increments the archived-artifacts counter
func (m *Metrics) IncrementFilesArchived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesArchived++
}

// IncrementFilesCleaned increments the cleaned-artifacts counter
func (m *Metrics) IncrementFilesCleaned() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesCleaned++
}

// GetSnapshot returns a snapshot of all counters
func (m *Metrics) GetSnapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"jobs_created":          m.jobsCreated,
		"jobs_reused":           m.jobsReused,
		"jobs_completed":        m.jobsCompleted,
		"jobs_failed":           m.jobsFailed,
		"deliveries_succeeded":  m.deliveriesSucceeded,
		"deliveries_failed":     m.deliveriesFailed,
		"failure_notifications": m.failureNotifications,
		"files_archived":        m.filesArchived,
		"files_cleaned":         m.filesCleaned,
	}
}
