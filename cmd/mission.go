package cmd

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mtrr/core/knowledge"
	"github.com/kilianp07/mtrr/core/model"
)

var (
	apiURL   string
	apiToken string
	hard     bool
	reports  bool
)

var missionCmd = &cobra.Command{
	Use:   "mission",
	Short: "Drive a running orchestrator through its control API",
}

var missionSubmitCmd = &cobra.Command{
	Use:   "submit <plan.yaml>",
	Short: "Submit a mission plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runMissionSubmit,
}

var missionAbortCmd = &cobra.Command{
	Use:   "abort <mission-id>",
	Short: "Abort the plan of every vehicle of a mission",
	Args:  cobra.ExactArgs(1),
	RunE:  runMissionAbort,
}

var missionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running mission",
	RunE:  runMissionStatus,
}

func init() {
	missionCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8080", "control API base URL")
	missionCmd.PersistentFlags().StringVar(&apiToken, "token", "", "control API bearer token")
	missionAbortCmd.Flags().BoolVar(&hard, "hard", false, "send a safety action instead of a plan abort")
	missionStatusCmd.Flags().BoolVar(&reports, "reports", false, "list the task reports of the running mission")
	missionCmd.AddCommand(missionSubmitCmd, missionAbortCmd, missionStatusCmd)
	rootCmd.AddCommand(missionCmd)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 30*time.Second)
}

func runMissionSubmit(cmd *cobra.Command, args []string) error {
	m, err := model.LoadMissionFile(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	if err := newAPIClient(apiURL, apiToken).do(ctx, http.MethodPost, "/api/missions", m, nil); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "mission %d submitted\n", m.ID)
	return nil
}

func runMissionAbort(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid mission id %q", args[0])
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	var out struct {
		Result string `json:"result"`
	}
	path := fmt.Sprintf("/api/missions/%d/abort?hard=%t", id, hard)
	if err := newAPIClient(apiURL, apiToken).do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Result)
	return nil
}

func runMissionStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()
	c := newAPIClient(apiURL, apiToken)
	id, err := c.currentMission(ctx)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if id < 0 {
		fmt.Fprintln(w, "no mission running")
		return nil
	}
	fmt.Fprintf(w, "mission %d running\n", id)
	if !reports {
		return nil
	}
	var rs []knowledge.TaskReport
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/missions/%d/reports", id), nil, &rs); err != nil {
		return err
	}
	for _, r := range rs {
		fmt.Fprintf(w, "  %s vehicle %d action %d seq %d %s\n",
			r.ReceivedAt.Format(time.RFC3339), r.VehicleID, r.ActionID, r.SeqOp, r.Status)
	}
	return nil
}
