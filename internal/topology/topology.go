package topology

import (
	"sort"
	"sync"
)

// State is the in-memory registry of live Citus nodes, grouped by role, plus
// the one-shot initial-provisioning flag. All mutation happens on the event
// processing path; the status server reads concurrently through Snapshot.
type State struct {
	mu           sync.RWMutex
	masters      map[string]struct{}
	coordinators map[string]struct{}
	workers      map[string]struct{}
	provisioned  bool
}

// Snapshot is a point-in-time copy of the three role sets. Slices are sorted
// and never nil.
type Snapshot struct {
	Masters      []string
	Coordinators []string
	Workers      []string
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		masters:      make(map[string]struct{}),
		coordinators: make(map[string]struct{}),
		workers:      make(map[string]struct{}),
	}
}

// AddMaster records a master node.
func (s *State) AddMaster(name string) {
	s.mu.Lock()
	s.masters[name] = struct{}{}
	s.mu.Unlock()
}

// AddCoordinator records a coordinator node.
func (s *State) AddCoordinator(name string) {
	s.mu.Lock()
	s.coordinators[name] = struct{}{}
	s.mu.Unlock()
}

// AddWorker records a worker node.
func (s *State) AddWorker(name string) {
	s.mu.Lock()
	s.workers[name] = struct{}{}
	s.mu.Unlock()
}

// RemoveMaster forgets a master node. Reports whether it was present.
func (s *State) RemoveMaster(name string) bool {
	return s.remove(s.masters, name)
}

// RemoveCoordinator forgets a coordinator node. Reports whether it was present.
func (s *State) RemoveCoordinator(name string) bool {
	return s.remove(s.coordinators, name)
}

// RemoveWorker forgets a worker node. Reports whether it was present.
func (s *State) RemoveWorker(name string) bool {
	return s.remove(s.workers, name)
}

func (s *State) remove(set map[string]struct{}, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, present := set[name]
	delete(set, name)
	return present
}

// WorkerCount returns the number of registered workers.
func (s *State) WorkerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workers)
}

// MarkProvisioned flips the initial-provisioning flag. Reports whether this
// call was the one that flipped it; the flag never reverts.
func (s *State) MarkProvisioned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provisioned {
		return false
	}
	s.provisioned = true
	return true
}

// Provisioned reports whether initial provisioning has run.
func (s *State) Provisioned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provisioned
}

// Snapshot returns a sorted copy of all three role sets.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Masters:      sortedKeys(s.masters),
		Coordinators: sortedKeys(s.coordinators),
		Workers:      sortedKeys(s.workers),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
