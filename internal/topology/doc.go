// Package topology provides the concurrent-safe in-memory registry of live
// Citus nodes, grouped into three disjoint role sets (masters, coordinators,
// workers), plus the one-shot initial-provisioning flag.
//
// # Contract
//
// The reconciler is the sole writer; it mutates the sets on the single event
// processing path. The status server reads concurrently through Snapshot. All
// methods are safe for concurrent use via sync.RWMutex.
//
// # Methods
//
//	AddMaster / AddCoordinator / AddWorker(name string)
//	  - Records a node in its role set. Idempotent.
//
//	RemoveMaster / RemoveCoordinator / RemoveWorker(name string) bool
//	  - Forgets a node. Reports whether it was present, so the reconciler
//	    can skip cleanup queries for nodes it never registered.
//
//	WorkerCount() int
//	  - Number of registered workers; compared against the minimum-worker
//	    threshold by the reconciler.
//
//	MarkProvisioned() bool
//	  - Flips the initial-provisioning flag false→true. Returns true only on
//	    the call that flipped it. The flag never reverts.
//
//	Snapshot() Snapshot
//	  - Point-in-time copy of the three sets, sorted, never nil. The status
//	    endpoint serializes this directly.
package topology
