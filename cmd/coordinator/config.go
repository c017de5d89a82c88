package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// CoordinatorConfig is the coordinator process's configuration surface,
// bound from cobra flags and JUBATUS_COORDINATOR_* environment variables.
type CoordinatorConfig struct {
	Listen              string        `mapstructure:"listen"`
	MetricsListen       string        `mapstructure:"metrics_listen"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	MixInterval         time.Duration `mapstructure:"mix_interval"`
}

func bindCoordinatorFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("listen", ":8080", "coordinator HTTP listen address")
	flags.String("metrics-listen", ":9100", "Prometheus /metrics listen address")
	flags.Duration("health-check-interval", 5*time.Second, "interval between node health checks")
	flags.Duration("mix-interval", 2*time.Second, "interval between MIX rounds across all model instances")

	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("metrics_listen", flags.Lookup("metrics-listen"))
	_ = v.BindPFlag("health_check_interval", flags.Lookup("health-check-interval"))
	_ = v.BindPFlag("mix_interval", flags.Lookup("mix-interval"))
}

func loadCoordinatorConfig(v *viper.Viper) (*CoordinatorConfig, error) {
	v.SetEnvPrefix("jubatus_coordinator")
	v.AutomaticEnv()

	var cfg CoordinatorConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
