// citus-manager keeps a Citus cluster's node registry consistent with the
// live set of database pods in a Kubernetes namespace.
//
// Usage:
//
//	citus-manager run
//	citus-manager status --addr http://localhost:5000
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "citus-manager",
		Short:   "Citus cluster membership manager",
		Long:    "citus-manager watches Citus database pods and keeps the cluster's\nnode registry consistent with the pods that are actually running.",
		Version: version,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
