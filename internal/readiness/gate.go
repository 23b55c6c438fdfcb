// Package readiness gates topology registration on pod readiness: a node may
// only join the topology once every container in its pod reports ready.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// DefaultRetryInterval is the fixed delay between readiness polls after a
// retryable backend failure.
const DefaultRetryInterval = 5 * time.Second

// Error is the definitive readiness failure: the pod is missing, the API
// rejected the request with a non-retryable status, or the pod exists but its
// containers are not all ready. The dispatcher catches it, logs it, and drops
// the event; the node stays unregistered until a later event re-triggers
// gating.
type Error struct {
	Pod    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pod %s not ready: %v", e.Pod, e.Err)
	}
	return fmt.Sprintf("pod %s not ready: %s", e.Pod, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Gate polls the pod-status API until a pod is ready.
type Gate struct {
	logger    *zap.Logger
	client    kubernetes.Interface
	namespace string
	interval  time.Duration
}

// NewGate creates a Gate polling pods in the given namespace.
func NewGate(client kubernetes.Interface, namespace string, logger *zap.Logger) *Gate {
	return &Gate{
		logger:    logger.Named("readiness"),
		client:    client,
		namespace: namespace,
		interval:  DefaultRetryInterval,
	}
}

// AwaitReady blocks until the named pod reports every container ready.
// Transient backend failures (API unreachable, server-side errors) are
// retried indefinitely at a fixed interval. Anything definitive — pod not
// found, any other API status, or a pod whose containers are not all ready —
// returns *Error without further retries: re-gating relies on the platform
// emitting a later event for the same pod.
func (g *Gate) AwaitReady(ctx context.Context, pod string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := g.client.CoreV1().Pods(g.namespace).Get(ctx, pod, metav1.GetOptions{})
		switch {
		case err == nil:
			if reason, ready := containersReady(p); !ready {
				return &Error{Pod: pod, Reason: reason}
			}
			g.logger.Info("Pod ready", zap.String("pod", pod))
			return nil

		case retryable(err):
			g.logger.Warn("Pod status query failed, retrying",
				zap.String("pod", pod),
				zap.Duration("interval", g.interval),
				zap.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(g.interval):
			}

		default:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &Error{Pod: pod, Err: err}
		}
	}
}

// containersReady reports whether every container status is ready. A pod
// with no container statuses counts as ready, matching the platform's view
// before the kubelet has reported anything to wait on.
func containersReady(pod *corev1.Pod) (string, bool) {
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return fmt.Sprintf("container %s not ready", cs.Name), false
		}
	}
	return "", true
}

// retryable classifies backend failures worth polling through: transport
// errors that never reached the API server, and server-side failures that a
// healthy API server would not return. Definitive statuses (NotFound,
// Forbidden, ...) are not retried.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false // surfaced as-is by the caller, not a readiness verdict
	}
	if apierrors.IsTimeout(err) ||
		apierrors.IsServerTimeout(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsTooManyRequests(err) ||
		apierrors.IsInternalError(err) {
		return true
	}
	var statusErr *apierrors.StatusError
	return !errors.As(err, &statusErr)
}
