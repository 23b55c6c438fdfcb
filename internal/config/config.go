// Package config holds the environment-driven configuration surface for the
// membership manager: the watched namespace, the role label contract, per-role
// service scopes, the worker threshold, Postgres connection settings, and the
// provisioning template directory.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Role identifies which part of the Citus topology a pod belongs to.
type Role string

const (
	RoleMaster      Role = "master"
	RoleCoordinator Role = "coordinator"
	RoleWorker      Role = "worker"
)

// Config is the full configuration surface. Values come from environment
// variables (FromEnv); cmd/manager layers CLI flag overrides on top.
type Config struct {
	// Namespace is the Kubernetes namespace whose pods are watched.
	Namespace string

	// RoleLabelKey is the pod label whose value identifies the Citus role.
	RoleLabelKey string

	// MasterLabel, CoordinatorLabel and WorkerLabel are the recognized
	// values of RoleLabelKey. Any other value is ignored.
	MasterLabel      string
	CoordinatorLabel string
	WorkerLabel      string

	// MasterService, CoordinatorService and WorkerService name the headless
	// services that give pods of each role a stable network identity.
	MasterService      string
	CoordinatorService string
	WorkerService      string

	// MinimumWorkers gates provisioning: no master, coordinator or bulk
	// provisioning happens until this many workers are registered.
	MinimumWorkers int

	// Postgres connection settings for the managed database instances.
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDatabase string

	// TemplateDir is the directory holding the per-role provisioning
	// templates (master.setup, coordinator.setup, worker.setup).
	TemplateDir string

	// StatusAddr is the bind address of the read-only status HTTP server.
	StatusAddr string
}

// FromEnv builds a Config from environment variables, applying defaults for
// everything except the namespace, which is required.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Namespace:          os.Getenv("NAMESPACE"),
		RoleLabelKey:       envOr("ROLE_LABEL_KEY", "citusType"),
		MasterLabel:        envOr("MASTER_LABEL", "citus-master"),
		CoordinatorLabel:   envOr("COORDINATOR_LABEL", "citus-coordinator"),
		WorkerLabel:        envOr("WORKER_LABEL", "citus-worker"),
		MasterService:      envOr("MASTER_SERVICE", "citus-master"),
		CoordinatorService: envOr("COORDINATOR_SERVICE", "citus-coordinator"),
		WorkerService:      envOr("WORKER_SERVICE", "citus-worker"),
		PostgresUser:       envOr("PG_USER", "postgres"),
		PostgresPassword:   os.Getenv("PG_PASSWORD"),
		PostgresDatabase:   envOr("PG_DATABASE", "postgres"),
		TemplateDir:        envOr("PROVISION_TEMPLATE_DIR", "/etc/citus-config"),
		StatusAddr:         envOr("STATUS_ADDR", ":5000"),
	}

	if cfg.Namespace == "" {
		return nil, fmt.Errorf("NAMESPACE must be set")
	}

	var err error
	if cfg.MinimumWorkers, err = envIntOr("MINIMUM_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.PostgresPort, err = envIntOr("PG_PORT", 5432); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RoleForLabels extracts the Citus role from a pod's label map. The second
// return value is false when the label is absent or its value is not one of
// the three recognized role labels.
func (c *Config) RoleForLabels(labels map[string]string) (Role, bool) {
	switch labels[c.RoleLabelKey] {
	case c.MasterLabel:
		return RoleMaster, true
	case c.CoordinatorLabel:
		return RoleCoordinator, true
	case c.WorkerLabel:
		return RoleWorker, true
	}
	return "", false
}

// ServiceFor returns the service scope that resolves hosts for the role.
func (c *Config) ServiceFor(role Role) string {
	switch role {
	case RoleMaster:
		return c.MasterService
	case RoleCoordinator:
		return c.CoordinatorService
	default:
		return c.WorkerService
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}
