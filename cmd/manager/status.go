package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eea/citus-manager/internal/status"
)

func statusCmd() *cobra.Command {
	var (
		addr      string
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registered topology",
		Long: `Query a running manager's status endpoint and print the registered
masters, coordinator and workers.

Examples:
  # Query the default local endpoint
  citus-manager status

  # Output as JSON
  citus-manager status -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(addr, outputFmt)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:5000", "Base URL of the manager's status endpoint.")
	cmd.Flags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json")

	return cmd
}

func runStatus(addr, outputFmt string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(addr + "/registered")
	if err != nil {
		return fmt.Errorf("failed to query status endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var registered status.RegisteredResponse
	if err := json.NewDecoder(resp.Body).Decode(&registered); err != nil {
		return fmt.Errorf("failed to decode status response: %w", err)
	}

	if outputFmt == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(registered)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tCOUNT\tNODES")
	printRow(tw, "masters", registered.Masters)
	printRow(tw, "coordinator", registered.Coordinator)
	printRow(tw, "workers", registered.Workers)
	return tw.Flush()
}

func printRow(tw *tabwriter.Writer, role string, nodes []string) {
	if len(nodes) == 0 {
		fmt.Fprintf(tw, "%s\t0\t-\n", role)
		return
	}
	fmt.Fprintf(tw, "%s\t%d\t%s\n", role, len(nodes), strings.Join(nodes, ", "))
}
