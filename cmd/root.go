package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/mtrr/app"
	"github.com/kilianp07/mtrr/config"
	"github.com/kilianp07/mtrr/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "mtrr",
	Short: "Mission task register and reporter",
	Long: "mtrr dispatches mission plans to a fleet of underwater vehicles over MQTT, " +
		"tracks their task reports and keeps the control authority informed.",
	RunE: run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml",
		"yaml or json configuration file; K_ environment variables override it")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New("main")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	log.Infow("mtrr starting", startupFields(cfg))
	if !cfg.MMT.Enabled() {
		log.Warnf("no mmt url in %s: task status will not reach the control authority", cfgPath)
	}

	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	if err := svc.Run(ctx); err != nil {
		return err
	}
	log.Infof("mtrr stopped, ongoing mission at shutdown: %d", svc.Orchestrator.OngoingMissionID())
	return nil
}

// startupFields summarises the wiring chosen by the configuration.
func startupFields(cfg *config.Config) map[string]any {
	settings := cfg.Mission.Settings()
	mmt := "disabled"
	if cfg.MMT.Enabled() {
		mmt = cfg.MMT.URL
	}
	return map[string]any{
		"config":     cfg.Path,
		"broker":     cfg.MQTT.Broker,
		"api":        cfg.API.Listen,
		"api_auth":   cfg.API.Token != "",
		"mmt":        mmt,
		"knowledge":  cfg.Knowledge.Type,
		"dedup":      cfg.Dedup.Backend,
		"fleet":      len(cfg.Fleet),
		"assignment": string(settings.Assignment),
		"discovery":  string(settings.Discovery.Style),
		"cdt":        settings.CDTAvailable,
	}
}
