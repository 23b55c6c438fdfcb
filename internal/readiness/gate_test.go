package readiness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/eea/citus-manager/internal/testutil"
)

func newTestGate(client *fake.Clientset) *Gate {
	g := NewGate(client, "citus", zap.NewNop())
	g.interval = 10 * time.Millisecond
	return g
}

func TestAwaitReady_ReadyPod(t *testing.T) {
	client := fake.NewSimpleClientset(testutil.MakePod("w1", "citus", "citus-worker", true))
	g := newTestGate(client)

	err := g.AwaitReady(context.Background(), "w1")
	require.NoError(t, err)
}

func TestAwaitReady_NotReadyPod(t *testing.T) {
	client := fake.NewSimpleClientset(testutil.MakePod("w1", "citus", "citus-worker", false))
	g := newTestGate(client)

	err := g.AwaitReady(context.Background(), "w1")
	require.Error(t, err)

	var readyErr *Error
	require.ErrorAs(t, err, &readyErr)
	assert.Equal(t, "w1", readyErr.Pod)
	assert.Contains(t, readyErr.Reason, "citus")
}

func TestAwaitReady_PartialReadiness(t *testing.T) {
	pod := testutil.MakePod("w1", "citus", "citus-worker", true)
	pod.Status.ContainerStatuses = append(pod.Status.ContainerStatuses,
		corev1.ContainerStatus{Name: "sidecar", Ready: false})
	client := fake.NewSimpleClientset(pod)
	g := newTestGate(client)

	var readyErr *Error
	err := g.AwaitReady(context.Background(), "w1")
	require.ErrorAs(t, err, &readyErr)
	assert.Contains(t, readyErr.Reason, "sidecar")
}

func TestAwaitReady_NoContainerStatuses(t *testing.T) {
	pod := testutil.MakePod("w1", "citus", "citus-worker", true)
	pod.Status.ContainerStatuses = nil
	client := fake.NewSimpleClientset(pod)
	g := newTestGate(client)

	// No container statuses counts as ready, matching the source system.
	require.NoError(t, g.AwaitReady(context.Background(), "w1"))
}

func TestAwaitReady_PodNotFound(t *testing.T) {
	client := fake.NewSimpleClientset()
	g := newTestGate(client)

	err := g.AwaitReady(context.Background(), "missing")
	var readyErr *Error
	require.ErrorAs(t, err, &readyErr)
	assert.Equal(t, "missing", readyErr.Pod)
	assert.True(t, apierrors.IsNotFound(readyErr.Err))
}

func TestAwaitReady_RetriesTransientErrors(t *testing.T) {
	client := fake.NewSimpleClientset(testutil.MakePod("w1", "citus", "citus-worker", true))

	var attempts atomic.Int32
	client.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if attempts.Add(1) <= 2 {
			return true, nil, apierrors.NewInternalError(fmt.Errorf("etcd hiccup"))
		}
		return false, nil, nil // fall through to the tracker
	})

	g := newTestGate(client)
	err := g.AwaitReady(context.Background(), "w1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempts.Load(), int32(3))
}

func TestAwaitReady_RetriesTransportErrors(t *testing.T) {
	client := fake.NewSimpleClientset(testutil.MakePod("w1", "citus", "citus-worker", true))

	var attempts atomic.Int32
	client.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		if attempts.Add(1) == 1 {
			return true, nil, errors.New("connection refused")
		}
		return false, nil, nil
	})

	g := newTestGate(client)
	require.NoError(t, g.AwaitReady(context.Background(), "w1"))
}

func TestAwaitReady_DefinitiveStatusNotRetried(t *testing.T) {
	client := fake.NewSimpleClientset()

	var attempts atomic.Int32
	client.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		attempts.Add(1)
		return true, nil, apierrors.NewForbidden(
			schema.GroupResource{Resource: "pods"}, "w1", errors.New("rbac denied"))
	})

	g := newTestGate(client)
	err := g.AwaitReady(context.Background(), "w1")

	var readyErr *Error
	require.ErrorAs(t, err, &readyErr)
	assert.Equal(t, int32(1), attempts.Load(), "definitive API statuses must not be retried")
}

func TestAwaitReady_ContextCancelled(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("get", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(errors.New("down"))
	})

	g := newTestGate(client)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := g.AwaitReady(ctx, "w1")
	require.Error(t, err)

	var readyErr *Error
	assert.False(t, errors.As(err, &readyErr), "cancellation is not a readiness failure")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestErrorFormatting(t *testing.T) {
	withErr := &Error{Pod: "w1", Err: errors.New("gone")}
	assert.Contains(t, withErr.Error(), "w1")
	assert.Contains(t, withErr.Error(), "gone")
	assert.Equal(t, "gone", errors.Unwrap(withErr).Error())

	withReason := &Error{Pod: "w2", Reason: "container citus not ready"}
	assert.Contains(t, withReason.Error(), "container citus not ready")
}
