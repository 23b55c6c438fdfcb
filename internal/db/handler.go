// Package db is the query-execution collaborator: it resolves a pod's stable
// hostname within a service scope and executes parameterized SQL against the
// database instance running in that pod.
package db

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/eea/citus-manager/internal/config"
)

// Handler executes parameterized statements against Citus pods. It keeps one
// connection pool per (pod, service) target, created lazily on first use.
type Handler struct {
	logger *zap.Logger
	cfg    *config.Config

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewHandler creates a Handler with no open pools.
func NewHandler(cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		logger: logger.Named("db"),
		cfg:    cfg,
		pools:  make(map[string]*pgxpool.Pool),
	}
}

// ResolveHost returns the stable DNS name of a pod behind a headless service:
// <pod>.<service>.<namespace>.svc.cluster.local.
func (h *Handler) ResolveHost(node, service string) string {
	return fmt.Sprintf("%s.%s.%s.svc.cluster.local", node, service, h.cfg.Namespace)
}

// Execute runs a parameterized query against the database in the target pod.
// The query may contain several semicolon-separated statements; they run in
// order inside a single transaction. Parameters bind to @name placeholders.
func (h *Handler) Execute(ctx context.Context, target, service, query string, params map[string]any) error {
	pool, err := h.pool(ctx, target, service)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction on %s: %w", target, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, stmt := range SplitStatements(query) {
		h.logger.Debug("Executing statement",
			zap.String("target", target),
			zap.String("statement", stmt),
		)
		if _, err := tx.Exec(ctx, stmt, pgx.NamedArgs(params)); err != nil {
			return fmt.Errorf("execute on %s: %w", target, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit on %s: %w", target, err)
	}
	return nil
}

// Close drains every open pool. Called once at shutdown.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, pool := range h.pools {
		pool.Close()
		delete(h.pools, key)
	}
}

func (h *Handler) pool(ctx context.Context, target, service string) (*pgxpool.Pool, error) {
	key := target + "/" + service

	h.mu.Lock()
	defer h.mu.Unlock()
	if pool, ok := h.pools[key]; ok {
		return pool, nil
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		h.cfg.PostgresUser,
		h.cfg.PostgresPassword,
		h.ResolveHost(target, service),
		h.cfg.PostgresPort,
		h.cfg.PostgresDatabase,
	)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", target, err)
	}
	h.pools[key] = pool
	return pool, nil
}

// SplitStatements splits a possibly compound query into individual
// statements, dropping empty fragments.
func SplitStatements(query string) []string {
	var stmts []string
	for _, part := range strings.Split(query, ";") {
		if part = strings.TrimSpace(part); part != "" {
			stmts = append(stmts, part)
		}
	}
	return stmts
}
