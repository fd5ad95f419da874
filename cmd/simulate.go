package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"fleetsense/config"
	"fleetsense/infra/logger"
	"fleetsense/infra/mqtt"
	"fleetsense/simulator"
)

var (
	simFleetSize   int
	simDegradedPct float64
	simInterval    time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish telemetry for a simulated fleet",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVar(&simFleetSize, "fleet-size", 5, "number of simulated vehicles")
	simulateCmd.Flags().Float64Var(&simDegradedPct, "degraded-pct", 0.4, "ratio of degrading vehicles")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 2*time.Second, "sample publish interval")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-sim-%d", mqttCfg.ClientID, time.Now().UnixNano())

	pub, err := mqtt.NewPublisher(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt publisher: %w", err)
	}
	defer pub.Disconnect()

	log := logger.New("simulator")
	runner := simulator.NewRunner(simulator.Config{
		FleetSize:   simFleetSize,
		DegradedPct: simDegradedPct,
		Interval:    simInterval,
	}, pub.PublishSample)
	for _, v := range runner.Fleet() {
		log.Infof("vehicle %s scenario %s", v.ID, v.Scenario)
	}

	if err := runner.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
