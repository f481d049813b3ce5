package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mtrr/config"
	"github.com/kilianp07/mtrr/core/codec"
	"github.com/kilianp07/mtrr/core/mission"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/core/plan"
	"github.com/kilianp07/mtrr/infra/logger"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Mission plan tools",
}

var planInspectCmd = &cobra.Command{
	Use:   "inspect <plan.yaml>",
	Short: "Show the per vehicle plans and the frames a mission would dispatch",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanInspect,
}

func init() {
	planCmd.AddCommand(planInspectCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlanInspect(cmd *cobra.Command, args []string) error {
	m, err := model.LoadMissionFile(args[0])
	if err != nil {
		return err
	}
	settings := mission.DefaultSettings()
	if cfg, err := config.Load(cfgPath); err == nil {
		settings = cfg.Mission.Settings()
	}
	return inspectPlan(cmd.OutOrStdout(), m, settings)
}

func inspectPlan(w io.Writer, m *model.Mission, s mission.Settings) error {
	enc := codec.NewEncoder(s.ReferenceLatitude, s.ReferenceLongitude, logger.NopLogger{})
	seq := &codec.Sequence{}
	fmt.Fprintf(w, "mission %d %q: %d actions, %d vehicles, assignment %s\n",
		m.ID, m.Name, len(m.Actions), len(m.Vehicles), s.Assignment)

	var actions []model.Action
	if s.Assignment == mission.FullSequence {
		actions = plan.FilterGlobalPlan(m)
		fmt.Fprintf(w, "global plan: %d actions\n", len(actions))
	} else {
		for _, v := range m.Vehicles {
			vp := plan.FilterVehiclePlan(v, m)
			fmt.Fprintf(w, "%s %s: %d actions\n", v.Label(), v.Type, len(vp))
			actions = append(actions, vp...)
		}
	}
	for _, a := range actions {
		f, err := enc.EncodeTask(a, seq.Next())
		if err != nil {
			fmt.Fprintf(w, "  %-28s vehicle %-3d encode error: %v\n", a.Label(), a.VehicleID, err)
			continue
		}
		fmt.Fprintf(w, "  %-28s vehicle %-3d %-18s seq %-3d % x\n",
			a.Label(), a.VehicleID, codec.TaskName(f.Subtype), f.SeqOp, codec.Marshal(f)[:20])
	}
	return nil
}
