package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// NTPServer is one upstream time source tried by the GetNTPTime command.
type NTPServer struct {
	Server string `mapstructure:"server"`
	Port   int    `mapstructure:"port"`
}

type Config struct {
	Mode               string        `mapstructure:"mode"`
	Port               int           `mapstructure:"port"`
	ExternalHostname   string        `mapstructure:"external_hostname"`
	TransportConfigDir string        `mapstructure:"transport_config_dir"`
	LogLevel           string        `mapstructure:"log_level"`
	LogFile            string        `mapstructure:"log_file"`
	LogFolder          string        `mapstructure:"log_folder"`
	AdminUser          string        `mapstructure:"admin_user"`
	AdminPassword      string        `mapstructure:"admin_password"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval"`
	NTPServers         []NTPServer   `mapstructure:"ntp_servers"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8090)
	v.SetDefault("external_hostname", "localhost")
	v.SetDefault("transport_config_dir", "./config")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_folder", "./log")
	v.SetDefault("sweep_interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
