package core

import "time"

// QueueStats represents runtime observability state for a workload queue.
type QueueStats struct {
	// RegistryID is the scheduler id, or -1 for queues not in the registry
	// (the default queue and prepared tasks).
	RegistryID int
	ID         string
	Name       string
	Pending    int
	Budget     time.Duration
	State      string // idle, attached or detached
	Cancelled  bool
	Executed   uint64
	Drains     uint64
}

// RunnerStats represents runtime observability state for a task runner.
type RunnerStats struct {
	Name     string
	Type     string
	Pending  int
	Running  int
	Rejected int64
	Closed   bool
}

// PoolStats represents runtime observability state for a worker pool.
type PoolStats struct {
	ID      string
	Workers int
	Queued  int
	Active  int
	Running bool
}
