// Package reconciler implements the topology state machine: the ordered
// sequence of registration, coordinator binding, provisioning and
// deregistration steps triggered by each pod lifecycle event.
//
// # Ordering
//
// Within one event: readiness gating precedes all state mutation and query
// issuance; set mutation precedes the dependent queries; the worker replay on
// master/coordinator add iterates the worker set as it stands at that
// instant.
//
// # Failure semantics
//
// A *readiness.Error from the gate propagates to the dispatcher, which logs
// it and drops the event — the node stays unregistered until the platform
// emits another event for it. Any other error (query execution,
// provisioning) propagates out of the watcher and is fatal to the process;
// recovery is a restart plus watch replay.
//
// # Known asymmetry
//
// Worker deregistration cleans up masters only. Coordinators keep their
// node-registry entries for removed workers; this mirrors the deployed
// behavior and is pinned by TestRemoveWorker_SkipsCoordinators.
package reconciler
