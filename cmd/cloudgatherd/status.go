package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// statusExecution mirrors controlplane.Execution just enough to render a
// table; it is decoded from the live daemon's /v1/status response rather
// than importing the controlplane package, keeping the CLI decoupled from
// the daemon's in-process types.
type statusExecution struct {
	System  string    `json:"system"`
	TaskID  string    `json:"task_id"`
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	LastRun time.Time `json:"last_run"`
}

type statusSnapshot struct {
	Running          bool                   `json:"running"`
	QueueDepth       int                    `json:"queue_depth"`
	SyncStatusCounts map[string]int         `json:"sync_status_counts"`
	StubStatusCounts map[string]int         `json:"stub_status_counts"`
	RecentExecutions []statusExecution      `json:"recent_executions"`
}

// newStatusCmd queries a running daemon's control-plane status endpoint and
// prints a human-readable summary — the CLI-facing counterpart to §6.4's
// status snapshot.
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the running daemon's scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snap, err := fetchStatus(cfg.HTTPAddr)
			if err != nil {
				return fmt.Errorf("fetching status from %s: %w", cfg.HTTPAddr, err)
			}

			printStatus(os.Stdout, snap)

			return nil
		},
	}
}

func fetchStatus(addr string) (statusSnapshot, error) {
	var snap statusSnapshot

	resp, err := http.Get("http://" + addr + "/v1/status")
	if err != nil {
		return snap, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decoding response: %w", err)
	}

	return snap, nil
}

func printStatus(w *os.File, snap statusSnapshot) {
	fmt.Fprintf(w, "scheduler running: %v    queue depth: %d\n\n", snap.Running, snap.QueueDepth)

	fmt.Fprintln(w, "sync tasks by status:")
	printStatusCounts(w, snap.SyncStatusCounts)

	fmt.Fprintln(w, "\nstub tasks by status:")
	printStatusCounts(w, snap.StubStatusCounts)

	if len(snap.RecentExecutions) == 0 {
		return
	}

	fmt.Fprintln(w, "\nrecent executions:")

	rows := make([][]string, 0, len(snap.RecentExecutions))
	for _, e := range snap.RecentExecutions {
		rows = append(rows, []string{e.System, e.Name, e.Status, formatTime(e.LastRun)})
	}

	if stdoutIsTerminal() {
		printTable(w, []string{"SYSTEM", "NAME", "STATUS", "LAST RUN"}, rows)
		return
	}

	// Piped output: tab-separated, no column alignment, script-friendly.
	for _, row := range rows {
		fmt.Fprintln(w, row[0]+"\t"+row[1]+"\t"+row[2]+"\t"+row[3])
	}
}

func printStatusCounts(w *os.File, counts map[string]int) {
	if len(counts) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}

	for status, n := range counts {
		fmt.Fprintf(w, "  %-10s %d\n", status, n)
	}
}
