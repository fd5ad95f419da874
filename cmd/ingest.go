package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"fleetsense/config"
	"fleetsense/core/telemetry"
	"fleetsense/infra/logger"
	"fleetsense/infra/mqtt"
)

var (
	ingestVehicle string
	ingestBattery float64
	ingestEngine  float64
	ingestOil     float64
	ingestBrakes  float64
	ingestTires   float64
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Publish a single test reading to the telemetry topic",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestVehicle, "vehicle", "test-vehicle", "vehicle identifier")
	ingestCmd.Flags().Float64Var(&ingestBattery, "battery", 12.5, "battery voltage")
	ingestCmd.Flags().Float64Var(&ingestEngine, "engine", 90, "engine temperature")
	ingestCmd.Flags().Float64Var(&ingestOil, "oil", 50, "oil pressure")
	ingestCmd.Flags().Float64Var(&ingestBrakes, "brakes", 9, "brake pad thickness")
	ingestCmd.Flags().Float64Var(&ingestTires, "tires", 32, "tire pressure")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-ingest-%d", mqttCfg.ClientID, time.Now().UnixNano())

	pub, err := mqtt.NewPublisher(mqttCfg)
	if err != nil {
		return fmt.Errorf("mqtt publisher: %w", err)
	}
	defer pub.Disconnect()

	ptr := func(f float64) *float64 { return &f }
	sample := telemetry.RawSample{
		VehicleID:         ingestVehicle,
		Timestamp:         time.Now().UTC(),
		BatteryVoltage:    ptr(ingestBattery),
		EngineTemp:        ptr(ingestEngine),
		OilPressure:       ptr(ingestOil),
		BrakePadThickness: ptr(ingestBrakes),
		TirePressure:      ptr(ingestTires),
	}
	if err := pub.PublishSample(sample); err != nil {
		return fmt.Errorf("publish sample: %w", err)
	}
	logger.New("ingest").Infof("published reading for %s", ingestVehicle)
	return nil
}
