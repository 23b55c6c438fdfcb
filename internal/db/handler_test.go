package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eea/citus-manager/internal/testutil"
)

func TestResolveHost(t *testing.T) {
	h := NewHandler(testutil.TestConfig(), zap.NewNop())

	host := h.ResolveHost("citus-worker-0", "citus-worker")
	assert.Equal(t, "citus-worker-0.citus-worker.citus.svc.cluster.local", host)
}

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{
			name:     "single statement",
			query:    "SELECT master_add_node(@host, @port)",
			expected: []string{"SELECT master_add_node(@host, @port)"},
		},
		{
			name: "compound statement",
			query: `DELETE FROM pg_dist_shard_placement WHERE nodename = @host AND nodeport = @port;
SELECT master_remove_node(@host, @port)`,
			expected: []string{
				"DELETE FROM pg_dist_shard_placement WHERE nodename = @host AND nodeport = @port",
				"SELECT master_remove_node(@host, @port)",
			},
		},
		{
			name:     "trailing semicolon",
			query:    "SELECT 1;",
			expected: []string{"SELECT 1"},
		},
		{
			name:     "blank fragments dropped",
			query:    " ; SELECT 1 ; ; ",
			expected: []string{"SELECT 1"},
		},
		{
			name:     "empty query",
			query:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SplitStatements(tt.query))
		})
	}
}

func TestClose(t *testing.T) {
	h := NewHandler(testutil.TestConfig(), zap.NewNop())

	// No pools opened yet; Close must be safe to call regardless.
	require.NotPanics(t, h.Close)
	require.NotPanics(t, h.Close)
}
