package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamware/jubatus/internal/config"
)

// InstanceConfig describes one named model instance a node should host,
// loaded from the node's config file (--config) or set programmatically
// in tests.
type InstanceConfig struct {
	Name    string     `mapstructure:"name"`
	Type    string     `mapstructure:"type"`
	Primary bool       `mapstructure:"primary"`
	LSH     config.LSH `mapstructure:"lsh"`
}

// NodeConfig is the node process's full configuration surface, bound from
// cobra flags, environment variables (JUBATUS_NODE_*), and an optional
// YAML file via viper.
type NodeConfig struct {
	NodeID          string           `mapstructure:"node_id"`
	Listen          string           `mapstructure:"listen"`
	PublicAddr      string           `mapstructure:"addr"`
	CoordinatorAddr string           `mapstructure:"coordinator_addr"`
	MetricsListen   string           `mapstructure:"metrics_listen"`
	Instances       []InstanceConfig `mapstructure:"instances"`
}

func bindNodeFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()
	flags.String("node-id", "", "unique node identifier (required)")
	flags.String("listen", ":8081", "local HTTP listen address")
	flags.String("addr", "http://127.0.0.1:8081", "public address advertised to the coordinator")
	flags.String("coordinator-addr", "", "coordinator base URL (required)")
	flags.String("metrics-listen", ":9101", "Prometheus /metrics listen address")
	flags.String("config", "", "path to a YAML file describing hosted model instances")

	_ = v.BindPFlag("node_id", flags.Lookup("node-id"))
	_ = v.BindPFlag("listen", flags.Lookup("listen"))
	_ = v.BindPFlag("addr", flags.Lookup("addr"))
	_ = v.BindPFlag("coordinator_addr", flags.Lookup("coordinator-addr"))
	_ = v.BindPFlag("metrics_listen", flags.Lookup("metrics-listen"))
}

// loadNodeConfig merges the instances config file (if any) into v, then
// decodes the full NodeConfig, erroring out if required fields are still
// unset once environment variables and flags have had their say.
func loadNodeConfig(cmd *cobra.Command, v *viper.Viper) (*NodeConfig, error) {
	v.SetEnvPrefix("jubatus_node")
	v.AutomaticEnv()

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode node config: %w", err)
	}

	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node_id is required (--node-id or JUBATUS_NODE_NODE_ID)")
	}
	if cfg.CoordinatorAddr == "" {
		return nil, fmt.Errorf("coordinator_addr is required (--coordinator-addr or JUBATUS_NODE_COORDINATOR_ADDR)")
	}
	return &cfg, nil
}
