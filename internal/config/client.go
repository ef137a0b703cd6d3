package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ClientConfig holds configuration of the command line chat client
type ClientConfig struct {
	Server struct {
		BaseURL string `mapstructure:"base_url"`
		WSURL   string `mapstructure:"ws_url"`
	} `mapstructure:"server"`
	Auth struct {
		Email    string `mapstructure:"email"`
		Password string `mapstructure:"password"`
	} `mapstructure:"auth"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoadClient loads the client configuration. A missing file is not an error,
// flags and HEARTH_CLIENT_* variables can supply everything.
func LoadClient(configPath string) (*ClientConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HEARTH_CLIENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.ws_url", "ws://localhost:8080/ws")
	v.SetDefault("timeout", 10*time.Second)
	v.SetDefault("auth.email", "")
	v.SetDefault("auth.password", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read client config: %w", err)
		}
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal client config: %w", err)
	}
	return &cfg, nil
}
