package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthURL string

	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check that a synthesis server answers on /health",
		Args:  cobra.NoArgs,
		RunE:  healthcheck,
	}
)

func init() {
	healthcheckCmd.Flags().StringVar(&healthURL, "url", "http://localhost:8080", "Base URL of the server")
}

// healthcheck performs a health check on a synthesis server
func healthcheck(cmd *cobra.Command, _ []string) error {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: HTTP %d", resp.StatusCode)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Health check passed")
	return nil
}
