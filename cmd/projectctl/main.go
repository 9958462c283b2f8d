// Package main implements the projectctl CLI for manual operations against
// the projectd HTTP server.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the projectd HTTP server
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
	Use:   "projectctl",
	Short: "CLI for projectd HTTP server operations",
	Long: `projectctl is a command-line interface for interacting with the projectd
HTTP server. It registers projects, switches the active project, triggers
indexing, and checks daemon health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:9090", "projectd server URL")
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(switchCmd)
	rootCmd.AddCommand(currentCmd)
	rootCmd.AddCommand(indexCmd)
}

// healthCmd checks daemon health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check projectd daemon health",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := doRequest(http.MethodGet, "/health", nil)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

// listCmd lists registered projects
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := doRequest(http.MethodGet, "/api/v1/projects", nil)
		if err != nil {
			return err
		}

		var records []struct {
			ID             string `json:"id"`
			Name           string `json:"name"`
			SourcePath     string `json:"source_path"`
			TrainingStatus string `json:"training_status"`
		}
		if err := json.Unmarshal(body, &records); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSOURCE")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Name, r.TrainingStatus, r.SourcePath)
		}
		return w.Flush()
	},
}

// registerCmd registers a new project
var registerCmd = &cobra.Command{
	Use:   "register <name> <source-path>",
	Short: "Register a new project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]string{
			"name":        args[0],
			"source_path": args[1],
		}
		body, _, err := doRequest(http.MethodPost, "/api/v1/projects", payload)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

// switchCmd switches the active project
var switchCmd = &cobra.Command{
	Use:   "switch <project-id>",
	Short: "Switch the active project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := doRequest(http.MethodPost, "/api/v1/projects/"+args[0]+"/switch", nil)
		if err != nil {
			return err
		}

		var result struct {
			Success  bool   `json:"success"`
			Degraded bool   `json:"degraded"`
			Message  string `json:"message"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		fmt.Println(result.Message)
		if result.Degraded {
			fmt.Println("warning: some managers are degraded; check `projectctl health`")
		}
		return nil
	},
}

// currentCmd shows the active project
var currentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the active project id",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := doRequest(http.MethodGet, "/api/v1/projects/current", nil)
		if err != nil {
			return err
		}

		var result struct {
			ProjectID string `json:"project_id"`
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		if result.ProjectID == "" {
			fmt.Println("no active project")
			return nil
		}
		fmt.Println(result.ProjectID)
		return nil
	},
}

// indexCmd triggers indexing for a project
var indexCmd = &cobra.Command{
	Use:   "index <project-id>",
	Short: "Index the project's source tree into its vector store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, _, err := doRequest(http.MethodPost, "/api/v1/projects/"+args[0]+"/index", nil)
		if err != nil {
			return err
		}
		fmt.Println(string(body))
		return nil
	},
}

// doRequest performs one JSON request against the daemon.
func doRequest(method, path string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	url := serverURL + path
	httpReq, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, resp.StatusCode, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, resp.StatusCode, nil
}
