package reconciler

import (
	"context"

	"go.uber.org/zap"

	"github.com/eea/citus-manager/internal/config"
	"github.com/eea/citus-manager/internal/topology"
)

// Queries issued against the managed Citus instances. Host and port bind via
// named parameters; the reconciler never interpolates values into SQL text.
const (
	setCoordinatorHostQuery = `SELECT citus_set_coordinator_host(@host)`
	addNodeQuery            = `SELECT master_add_node(@host, @port)`
	removeNodeQuery         = `DELETE FROM pg_dist_shard_placement WHERE nodename = @host AND nodeport = @port;
SELECT master_remove_node(@host, @port)`
)

// ReadinessGate blocks until a pod reports ready, or fails definitively.
type ReadinessGate interface {
	AwaitReady(ctx context.Context, pod string) error
}

// QueryExecutor resolves pod hostnames and executes parameterized SQL.
type QueryExecutor interface {
	ResolveHost(node, service string) string
	Execute(ctx context.Context, target, service, query string, params map[string]any) error
}

// Provisioner applies declarative setup templates to nodes.
type Provisioner interface {
	ProvisionMaster(ctx context.Context, pod string) error
	ProvisionCoordinator(ctx context.Context, pod string) error
	ProvisionWorker(ctx context.Context, pod string) error
	ProvisionAll(ctx context.Context) error
}

// Reconciler is the topology state machine. It owns all mutation of the
// topology state and drives registration, coordinator binding, provisioning
// and deregistration in response to pod lifecycle events. It runs on the
// single event-processing path; handlers are never invoked concurrently.
type Reconciler struct {
	logger *zap.Logger
	cfg    *config.Config
	state  *topology.State
	gate   ReadinessGate
	db     QueryExecutor
	prov   Provisioner
}

// New creates a Reconciler.
func New(cfg *config.Config, state *topology.State, gate ReadinessGate, db QueryExecutor, prov Provisioner, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		logger: logger.Named("reconciler"),
		cfg:    cfg,
		state:  state,
		gate:   gate,
		db:     db,
		prov:   prov,
	}
}

// AddWorker gates readiness, registers the worker, announces it to every
// known master and coordinator, and runs the threshold-gated provisioning
// branch: the first time the worker count reaches the minimum, all nodes are
// bulk-provisioned exactly once; afterwards each new worker is provisioned
// individually.
func (r *Reconciler) AddWorker(ctx context.Context, pod string) error {
	if err := r.gate.AwaitReady(ctx, pod); err != nil {
		return err
	}
	r.logger.Info("Registering worker", zap.String("pod", pod))
	r.state.AddWorker(pod)

	if err := r.execForWorker(ctx, pod, addNodeQuery, true); err != nil {
		return err
	}

	if r.state.WorkerCount() < r.cfg.MinimumWorkers {
		return nil
	}
	if r.state.MarkProvisioned() {
		return r.prov.ProvisionAll(ctx)
	}
	return r.prov.ProvisionWorker(ctx, pod)
}

// RemoveWorker forgets the worker and cleans up its shard placements and
// registry entry on every known master. A worker that was never registered
// is a no-op: no query is issued. Cleanup deliberately skips coordinators;
// their registry entries are left in place.
func (r *Reconciler) RemoveWorker(ctx context.Context, pod string) error {
	if !r.state.RemoveWorker(pod) {
		r.logger.Info("Ignoring delete for unregistered worker", zap.String("pod", pod))
		return nil
	}
	r.logger.Info("Unregistering worker", zap.String("pod", pod))
	return r.execForWorker(ctx, pod, removeNodeQuery, false)
}

// AddMaster gates readiness, registers the master, points the master's
// coordinator-host setting at itself, provisions it when the worker quorum
// exists, and replays registration of every currently known worker so the
// new master learns about them. Workers added concurrently are covered by
// their own events, not by the replay.
func (r *Reconciler) AddMaster(ctx context.Context, pod string) error {
	if err := r.gate.AwaitReady(ctx, pod); err != nil {
		return err
	}
	r.logger.Info("Registering master", zap.String("pod", pod))
	r.state.AddMaster(pod)

	if err := r.setCoordinatorHost(ctx, pod, r.cfg.MasterService); err != nil {
		return err
	}
	if r.state.WorkerCount() >= r.cfg.MinimumWorkers {
		if err := r.prov.ProvisionMaster(ctx, pod); err != nil {
			return err
		}
	}
	return r.replayWorkers(ctx)
}

// RemoveMaster forgets the master. Local bookkeeping only; no cluster-side
// query is issued.
func (r *Reconciler) RemoveMaster(ctx context.Context, pod string) error {
	r.state.RemoveMaster(pod)
	r.logger.Info("Unregistered master", zap.String("pod", pod))
	return nil
}

// AddCoordinator mirrors AddMaster for the coordinator role.
func (r *Reconciler) AddCoordinator(ctx context.Context, pod string) error {
	if err := r.gate.AwaitReady(ctx, pod); err != nil {
		return err
	}
	r.logger.Info("Registering coordinator", zap.String("pod", pod))
	r.state.AddCoordinator(pod)

	if err := r.setCoordinatorHost(ctx, pod, r.cfg.CoordinatorService); err != nil {
		return err
	}
	if r.state.WorkerCount() >= r.cfg.MinimumWorkers {
		if err := r.prov.ProvisionCoordinator(ctx, pod); err != nil {
			return err
		}
	}
	return r.replayWorkers(ctx)
}

// RemoveCoordinator forgets the coordinator. Local bookkeeping only.
func (r *Reconciler) RemoveCoordinator(ctx context.Context, pod string) error {
	r.state.RemoveCoordinator(pod)
	r.logger.Info("Unregistered coordinator", zap.String("pod", pod))
	return nil
}

// setCoordinatorHost binds a master or coordinator's coordinator-routing
// target to its own resolved hostname.
func (r *Reconciler) setCoordinatorHost(ctx context.Context, pod, service string) error {
	params := map[string]any{
		"host": r.db.ResolveHost(pod, service),
		"port": r.cfg.PostgresPort,
	}
	return r.db.Execute(ctx, pod, service, setCoordinatorHostQuery, params)
}

// execForWorker runs a query with the worker's resolved host/port bound,
// against every known master and, when includeCoordinators is set, every
// known coordinator. Worker cleanup passes false: deregistration only runs
// against masters.
func (r *Reconciler) execForWorker(ctx context.Context, worker, query string, includeCoordinators bool) error {
	params := map[string]any{
		"host": r.db.ResolveHost(worker, r.cfg.WorkerService),
		"port": r.cfg.PostgresPort,
	}

	snap := r.state.Snapshot()
	for _, master := range snap.Masters {
		if err := r.db.Execute(ctx, master, r.cfg.MasterService, query, params); err != nil {
			return err
		}
	}
	if !includeCoordinators {
		return nil
	}
	for _, coordinator := range snap.Coordinators {
		if err := r.db.Execute(ctx, coordinator, r.cfg.CoordinatorService, query, params); err != nil {
			return err
		}
	}
	return nil
}

// replayWorkers re-runs the worker registration handler for every worker in
// the set at this instant. A readiness failure during replay propagates and
// aborts the remainder; the already-registered master or coordinator stays
// in the topology.
func (r *Reconciler) replayWorkers(ctx context.Context) error {
	for _, worker := range r.state.Snapshot().Workers {
		if err := r.AddWorker(ctx, worker); err != nil {
			return err
		}
	}
	return nil
}
