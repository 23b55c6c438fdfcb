// Package testutil provides shared test helpers for the citus-manager
// project: pod builders and a default test configuration.
package testutil

import (
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/eea/citus-manager/internal/config"
)

// TestConfig returns a Config with the defaults used across package tests.
func TestConfig() *config.Config {
	return &config.Config{
		Namespace:          "citus",
		RoleLabelKey:       "citusType",
		MasterLabel:        "citus-master",
		CoordinatorLabel:   "citus-coordinator",
		WorkerLabel:        "citus-worker",
		MasterService:      "citus-master",
		CoordinatorService: "citus-coordinator",
		WorkerService:      "citus-worker",
		MinimumWorkers:     2,
		PostgresPort:       5432,
		PostgresUser:       "postgres",
		PostgresDatabase:   "postgres",
		TemplateDir:        "/etc/citus-config",
		StatusAddr:         ":5000",
	}
}

// MakePod builds a pod with the given name, role label value and container
// readiness. An empty roleLabel leaves the pod unlabeled.
func MakePod(name, namespace, roleLabel string, ready bool) *corev1.Pod {
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "citus", Ready: ready},
			},
		},
	}
	if roleLabel != "" {
		pod.Labels = map[string]string{"citusType": roleLabel}
	}
	return pod
}
