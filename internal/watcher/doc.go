// Package watcher consumes the pod lifecycle event stream and dispatches
// recognized events to the topology reconciler.
//
// # Contract
//
// The Watcher:
//  1. Watches pods (core/v1) in the configured namespace
//  2. Drops events that are not ADDED or DELETED, and pods whose role label
//     is absent or unrecognized
//  3. Dispatches each (kind, role, pod name) tuple through an exhaustive
//     switch to the Reconciler interface, sequentially — one event is
//     processed end to end, including blocking readiness retries, before the
//     next is read
//
// # Failure handling
//
// Readiness errors are caught at this boundary: logged, event dropped, loop
// continues. Any other handler error terminates Start and the process; the
// orchestration layer restarts it and the fresh watch replays current state,
// which is the sole recovery mechanism. Closed or failed watch connections
// are reconnected after a fixed 5s delay.
package watcher
