// Package main implements reviewctl, the CLI for driving review sessions
// through the reviewd HTTP server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reviewd/internal/apiclient"
)

var (
	// serverURL is the base URL for the reviewd HTTP server
	serverURL string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reviewctl",
	Short: "CLI for reviewd review sessions",
	Long: `reviewctl starts and steers code review sessions on a reviewd server.

A server runs one session at a time. Commands that take an optional session ID
act on the current session when it is omitted.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "reviewd server URL")
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check reviewd server health",
	Long: `Check the health status of the reviewd HTTP server.

Examples:
  reviewctl health
  reviewctl health --server http://localhost:8080`,
	Args: cobra.NoArgs,
	RunE: runHealth,
}

func newClient() *apiclient.Client {
	return apiclient.New(serverURL, nil)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	status, err := newClient().Health(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", serverURL, err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Server Status: %s\n", status)
	fmt.Fprintf(out, "Server URL: %s\n", serverURL)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
