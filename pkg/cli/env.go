package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig is the process configuration read from the environment.
type EnvConfig struct {
	Port      int    `env:"STATEMOCK_PORT" envDefault:"4280"`
	AdminPort int    `env:"STATEMOCK_ADMIN_PORT" envDefault:"4290"`
	Bind      string `env:"STATEMOCK_BIND" envDefault:"0.0.0.0"`
	Config    string `env:"STATEMOCK_CONFIG"`
	Watch     bool   `env:"STATEMOCK_WATCH" envDefault:"false"`
	LogLevel  string `env:"STATEMOCK_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"STATEMOCK_LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"STATEMOCK_LOG_FILE"`
}

// LoadEnv parses EnvConfig from the environment.
func LoadEnv() (EnvConfig, error) {
	cfg, err := env.ParseAs[EnvConfig]()
	if err != nil {
		return EnvConfig{}, fmt.Errorf("reading environment: %w", err)
	}
	return cfg, nil
}
