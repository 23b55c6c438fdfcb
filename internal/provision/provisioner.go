// Package provision applies declarative per-role setup templates to Citus
// nodes. Templates are YAML documents mounted from a ConfigMap, one per role,
// each listing the SQL statements that bring a freshly registered node to its
// desired configuration.
package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/eea/citus-manager/internal/config"
	"github.com/eea/citus-manager/internal/topology"
)

// Template file names under Config.TemplateDir, one per role.
const (
	MasterTemplate      = "master.setup"
	CoordinatorTemplate = "coordinator.setup"
	WorkerTemplate      = "worker.setup"
)

// Template is the on-disk shape of a provisioning template.
type Template struct {
	Statements []string `json:"statements"`
}

// QueryExecutor is the slice of the db handler the provisioner needs.
type QueryExecutor interface {
	ResolveHost(node, service string) string
	Execute(ctx context.Context, target, service, query string, params map[string]any) error
}

// Provisioner loads role templates and executes them on nodes. Templates are
// re-read on every call, so ConfigMap updates take effect without a watcher.
type Provisioner struct {
	logger *zap.Logger
	cfg    *config.Config
	db     QueryExecutor
	state  *topology.State
}

// New creates a Provisioner reading templates from cfg.TemplateDir.
func New(cfg *config.Config, db QueryExecutor, state *topology.State, logger *zap.Logger) *Provisioner {
	return &Provisioner{
		logger: logger.Named("provision"),
		cfg:    cfg,
		db:     db,
		state:  state,
	}
}

// ProvisionMaster applies the master template to one master pod.
func (p *Provisioner) ProvisionMaster(ctx context.Context, pod string) error {
	return p.apply(ctx, pod, MasterTemplate, p.cfg.MasterService)
}

// ProvisionCoordinator applies the coordinator template to one coordinator pod.
func (p *Provisioner) ProvisionCoordinator(ctx context.Context, pod string) error {
	return p.apply(ctx, pod, CoordinatorTemplate, p.cfg.CoordinatorService)
}

// ProvisionWorker applies the worker template to one worker pod.
func (p *Provisioner) ProvisionWorker(ctx context.Context, pod string) error {
	return p.apply(ctx, pod, WorkerTemplate, p.cfg.WorkerService)
}

// ProvisionAll applies the role templates to every node currently in the
// topology. Runs once, when the worker set first reaches the configured
// minimum.
func (p *Provisioner) ProvisionAll(ctx context.Context) error {
	snap := p.state.Snapshot()
	p.logger.Info("Provisioning all nodes",
		zap.Int("masters", len(snap.Masters)),
		zap.Int("coordinators", len(snap.Coordinators)),
		zap.Int("workers", len(snap.Workers)),
	)

	for _, pod := range snap.Masters {
		if err := p.ProvisionMaster(ctx, pod); err != nil {
			return err
		}
	}
	for _, pod := range snap.Coordinators {
		if err := p.ProvisionCoordinator(ctx, pod); err != nil {
			return err
		}
	}
	for _, pod := range snap.Workers {
		if err := p.ProvisionWorker(ctx, pod); err != nil {
			return err
		}
	}
	return nil
}

// apply loads the template and runs its statements on the pod, with the
// pod's own resolved host and the database port bound as @host/@port.
func (p *Provisioner) apply(ctx context.Context, pod, template, service string) error {
	tpl, err := p.load(template)
	if err != nil {
		return err
	}
	if len(tpl.Statements) == 0 {
		p.logger.Debug("Template has no statements", zap.String("template", template))
		return nil
	}

	p.logger.Info("Provisioning node",
		zap.String("pod", pod),
		zap.String("template", template),
		zap.Int("statements", len(tpl.Statements)),
	)

	params := map[string]any{
		"host": p.db.ResolveHost(pod, service),
		"port": p.cfg.PostgresPort,
	}
	for _, stmt := range tpl.Statements {
		if err := p.db.Execute(ctx, pod, service, stmt, params); err != nil {
			return fmt.Errorf("provision %s: %w", pod, err)
		}
	}
	return nil
}

func (p *Provisioner) load(template string) (*Template, error) {
	path := filepath.Join(p.cfg.TemplateDir, template)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}
	tpl := &Template{}
	if err := yaml.Unmarshal(data, tpl); err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	return tpl, nil
}
