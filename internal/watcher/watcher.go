package watcher

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/eea/citus-manager/internal/config"
	"github.com/eea/citus-manager/internal/readiness"
)

const (
	// reconnectDelay paces watch re-establishment after a closed or failed
	// watch connection.
	reconnectDelay = 5 * time.Second

	// Pacing for event handling. Generous: the limiter only smooths bursts
	// after a reconnect replays the namespace, it never drops events.
	eventRateLimit = 100
	eventRateBurst = 200
)

// Reconciler is the set of topology transitions the dispatcher can invoke,
// one per (event kind, role) pair.
type Reconciler interface {
	AddMaster(ctx context.Context, pod string) error
	RemoveMaster(ctx context.Context, pod string) error
	AddCoordinator(ctx context.Context, pod string) error
	RemoveCoordinator(ctx context.Context, pod string) error
	AddWorker(ctx context.Context, pod string) error
	RemoveWorker(ctx context.Context, pod string) error
}

// Watcher consumes the pod lifecycle event stream for one namespace and
// dispatches each recognized event to the reconciler, sequentially, one
// event at a time.
type Watcher struct {
	logger         *zap.Logger
	client         kubernetes.Interface
	cfg            *config.Config
	rec            Reconciler
	limiter        *rate.Limiter
	reconnectDelay time.Duration
}

// New creates a Watcher.
func New(client kubernetes.Interface, cfg *config.Config, rec Reconciler, logger *zap.Logger) *Watcher {
	return &Watcher{
		logger:         logger.Named("watcher"),
		client:         client,
		cfg:            cfg,
		rec:            rec,
		limiter:        rate.NewLimiter(eventRateLimit, eventRateBurst),
		reconnectDelay: reconnectDelay,
	}
}

// Start watches pods until the context is cancelled (returns nil) or a
// handler fails with something other than a readiness error (returns that
// error, fatal to the process). Closed or failed watch connections are
// re-established after a fixed delay; the platform replays current state on
// reconnect.
func (w *Watcher) Start(ctx context.Context) error {
	w.logger.Info("Starting pod watch", zap.String("namespace", w.cfg.Namespace))

	for {
		err := w.watchPods(ctx)
		if ctx.Err() != nil {
			w.logger.Info("Pod watch stopped")
			return nil
		}
		if err != nil {
			return err
		}
		w.logger.Warn("Pod watch closed, reconnecting",
			zap.Duration("delay", w.reconnectDelay))
		select {
		case <-ctx.Done():
			w.logger.Info("Pod watch stopped")
			return nil
		case <-time.After(w.reconnectDelay):
		}
	}
}

// watchPods opens one watch connection and processes its events. Returns nil
// when the connection ends (the caller reconnects) and an error only for
// fatal handler failures.
func (w *Watcher) watchPods(ctx context.Context) error {
	watcher, err := w.client.CoreV1().Pods(w.cfg.Namespace).Watch(ctx, metav1.ListOptions{})
	if err != nil {
		w.logger.Error("Failed to open pod watch", zap.Error(err))
		return nil
	}
	defer watcher.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.ResultChan():
			if !ok {
				return nil
			}
			if err := w.handleEvent(ctx, event); err != nil {
				return err
			}
		}
	}
}

// handleEvent classifies one raw event and dispatches it. Events that are
// not pod ADDED/DELETED, or whose pod carries no recognized role label, are
// dropped with a log line. Readiness errors are caught here: the event is
// dropped and the loop continues.
func (w *Watcher) handleEvent(ctx context.Context, event watch.Event) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil // context cancelled, Start unwinds
	}

	if event.Type != watch.Added && event.Type != watch.Deleted {
		return nil
	}
	pod, ok := event.Object.(*corev1.Pod)
	if !ok {
		w.logger.Debug("Ignoring non-pod watch object", zap.String("type", string(event.Type)))
		return nil
	}

	role, ok := w.cfg.RoleForLabels(pod.Labels)
	if !ok {
		w.logger.Debug("Ignoring pod without recognized role label",
			zap.String("pod", pod.Name))
		return nil
	}

	w.logger.Info("Pod event",
		zap.String("type", string(event.Type)),
		zap.String("pod", pod.Name),
		zap.String("role", string(role)),
	)

	err := w.dispatch(ctx, event.Type, role, pod.Name)
	var readyErr *readiness.Error
	if errors.As(err, &readyErr) {
		w.logger.Error("Dropping event after readiness failure",
			zap.String("pod", pod.Name),
			zap.String("role", string(role)),
			zap.Error(readyErr),
		)
		return nil
	}
	return err
}

// dispatch routes a classified (event kind, role) pair to its transition.
// The switch is exhaustive over the recognized kinds and roles; adding a
// role means adding arms here and fails to compile until the Reconciler
// interface grows with it.
func (w *Watcher) dispatch(ctx context.Context, kind watch.EventType, role config.Role, pod string) error {
	switch kind {
	case watch.Added:
		switch role {
		case config.RoleMaster:
			return w.rec.AddMaster(ctx, pod)
		case config.RoleCoordinator:
			return w.rec.AddCoordinator(ctx, pod)
		case config.RoleWorker:
			return w.rec.AddWorker(ctx, pod)
		}
	case watch.Deleted:
		switch role {
		case config.RoleMaster:
			return w.rec.RemoveMaster(ctx, pod)
		case config.RoleCoordinator:
			return w.rec.RemoveCoordinator(ctx, pod)
		case config.RoleWorker:
			return w.rec.RemoveWorker(ctx, pod)
		}
	}
	return nil
}
