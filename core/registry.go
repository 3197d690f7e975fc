package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps integer ids to workload queues so unrelated call sites can
// extend, pause or cancel a long-running batch by id.
//
// Ids come from a monotonic counter and are never handed out twice, even
// after release. An id either maps to a live queue or is absent.
type Registry struct {
	mu     sync.RWMutex
	queues map[int]*WorkloadQueue
	nextID int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[int]*WorkloadQueue)}
}

// allocate reserves the next free id.
func (r *Registry) allocate() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for {
		id := r.nextID
		r.nextID++
		if _, taken := r.queues[id]; !taken {
			return id
		}
	}
}

// Add stores q under a fresh id and returns the id.
func (r *Registry) Add(q *WorkloadQueue) int {
	id := r.allocate()
	r.Put(id, q)
	return id
}

// Put stores q under id and returns the queue it displaced, if any.
// Automatic ids continue past any explicit id.
func (r *Registry) Put(id int, q *WorkloadQueue) *WorkloadQueue {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.queues[id]
	r.queues[id] = q
	if id >= r.nextID {
		r.nextID = id + 1
	}
	return prev
}

// Get returns the queue stored under id, or ErrUnknownQueue.
func (r *Registry) Get(id int) (*WorkloadQueue, error) {
	q, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("queue %d: %w", id, ErrUnknownQueue)
	}
	return q, nil
}

// Lookup returns the queue stored under id and whether it exists.
func (r *Registry) Lookup(id int) (*WorkloadQueue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[id]
	return q, ok
}

// Release removes id and returns the queue it held.
func (r *Registry) Release(id int) (*WorkloadQueue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[id]
	delete(r.queues, id)
	return q, ok
}

// Contains reports whether id maps to a queue.
func (r *Registry) Contains(id int) bool {
	_, ok := r.Lookup(id)
	return ok
}

// Len returns the number of registered queues.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// IDs returns the registered ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.queues))
	for id := range r.queues {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Each calls fn for every registered queue in ascending id order.
func (r *Registry) Each(fn func(id int, q *WorkloadQueue)) {
	for _, id := range r.IDs() {
		if q, ok := r.Lookup(id); ok {
			fn(id, q)
		}
	}
}
