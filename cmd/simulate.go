package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mtrr/config"
	"github.com/kilianp07/mtrr/core/model"
	"github.com/kilianp07/mtrr/infra/logger"
	"github.com/kilianp07/mtrr/infra/mqtt"
	"github.com/kilianp07/mtrr/simulator"
)

var simCfg struct {
	count        int
	auvShare     float64
	taskDuration time.Duration
	replyDelay   time.Duration
	dropRate     float64
	missionID    int
	api          string
	token        string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run simulated vehicles and CDT against the broker",
	RunE:  runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.IntVar(&simCfg.count, "count", 0, "number of generated vehicles when the config has no fleet")
	f.Float64Var(&simCfg.auvShare, "auv-share", 0.5, "ratio of generated vehicles that are AUVs")
	f.DurationVar(&simCfg.taskDuration, "task-duration", 2*time.Second, "time a vehicle spends on a task")
	f.DurationVar(&simCfg.replyDelay, "reply-delay", 0, "delay before each task report")
	f.Float64Var(&simCfg.dropRate, "drop-rate", 0, "probability a task report is lost")
	f.IntVar(&simCfg.missionID, "mission-id", 0, "mission id stamped on reports when --api is not set")
	f.StringVar(&simCfg.api, "api", "", "control API used to learn the running mission id")
	f.StringVar(&simCfg.token, "token", "", "control API bearer token")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings := cfg.Mission.Settings()
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = ""
	mqttCfg.LWTTopic = ""
	client, err := mqtt.NewPahoClient(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	defer client.Disconnect()

	resolver := simulator.StaticMission(simCfg.missionID)
	if simCfg.api != "" {
		resolver = apiMission(newAPIClient(simCfg.api, simCfg.token), simCfg.missionID)
	}
	fleet, err := simulator.NewFleet(simulator.Config{
		Vehicles:     cfg.Fleet,
		Count:        simCfg.count,
		AUVShare:     simCfg.auvShare,
		Origin:       model.Position{Latitude: settings.ReferenceLatitude, Longitude: settings.ReferenceLongitude},
		ReplyDelay:   simCfg.replyDelay,
		TaskDuration: simCfg.taskDuration,
		DropRate:     simCfg.dropRate,
		Mission:      resolver,
	}, client, nil, logger.New("simulator"))
	if err != nil {
		return err
	}
	return fleet.Run(ctx)
}

// apiMission asks the control API for the running mission, falling back to
// the last known id when the API cannot be reached.
func apiMission(c *apiClient, fallback int) simulator.MissionResolver {
	var (
		mu   sync.Mutex
		last = fallback
	)
	return func(ctx context.Context) int {
		rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		id, err := c.currentMission(rctx)
		mu.Lock()
		defer mu.Unlock()
		if err != nil || id < 0 {
			return last
		}
		last = id
		return id
	}
}
