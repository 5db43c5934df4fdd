package nexus

import (
	"context"

	"github.com/fintellect/nexus/internal/nexus/config"
)

// Run builds the API server from cfg and serves until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	server, err := createAPIServer(cfg)
	if err != nil {
		return err
	}
	cfg.Watch(server.applyOptions)

	return server.PrepareRun().Run(ctx)
}
