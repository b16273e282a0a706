// Package encounter parses encounter service flags and launches the service.
package encounter

import (
	"context"
	"flag"

	"github.com/louisbranch/digivice/internal/encounter/app"
	entrypoint "github.com/louisbranch/digivice/internal/platform/cmd"
)

// Config holds encounter command configuration.
type Config struct {
	Port int `env:"DIGIVICE_ENCOUNTER_PORT" envDefault:"8090"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The encounter HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the encounter HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEncounter, func(context.Context) error {
		return app.Run(ctx, cfg.Port)
	})
}
