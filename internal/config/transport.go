package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"
)

// SFUData holds the URL templates published for one worker port. Templates
// may contain the placeholders %EXTERNAL_HOSTNAME%, %SESSION_ID% and
// %USER_ID%.
type SFUData struct {
	URLGen   string `mapstructure:"url_gen"`
	URLAudio string `mapstructure:"url_audio"`
	URLPCC   string `mapstructure:"url_pcc"`
}

// PortMapping binds one configured port to its published URL templates.
type PortMapping struct {
	Port    int     `mapstructure:"port"`
	SFUData SFUData `mapstructure:"sfuData"`
}

// TransportConfig is the static per-protocol worker configuration, loaded
// from config/<protocol>.json. The port mapping order is significant: free
// ports are claimed first in config order.
type TransportConfig struct {
	TLS         bool          `mapstructure:"tls"`
	AutoRestart bool          `mapstructure:"autorestart"`
	Log         bool          `mapstructure:"log"`
	LogPrefix   string        `mapstructure:"logPrefix"`
	LogSuffix   string        `mapstructure:"logSuffix"`
	CommandLine []string      `mapstructure:"commandLine"`
	PortMapping []PortMapping `mapstructure:"portMapping"`
}

// LoadTransportConfig reads the worker configuration for one protocol from
// the given directory.
func LoadTransportConfig(dir, protocol string) (*TransportConfig, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(filepath.Join(dir, protocol+".json"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read transport config for %s: %w", protocol, err)
	}

	var cfg TransportConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse transport config for %s: %w", protocol, err)
	}
	return &cfg, nil
}
