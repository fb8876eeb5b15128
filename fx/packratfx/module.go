// Package packratfx provides an fx module for a process-wide cache
// registry, optionally backed by DynamoDB.
package packratfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/packrat-io/packrat"
	"github.com/packrat-io/packrat/internal/remote"
	"github.com/packrat-io/packrat/internal/remote/dynamoremote"
	"github.com/packrat-io/packrat/internal/stats"
	"github.com/packrat-io/packrat/internal/stats/logger"
)

// Module provides a *packrat.Registry.
// Requires a *zap.Logger and a packrat.Config to be provided.
var Module = fx.Module("packrat",
	fx.Provide(
		newStatsCollector,
		newRegistry,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("packrat.stats"))
}

// Params holds dependencies for creating the registry.
type Params struct {
	fx.In

	Config    packrat.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided registry.
type Result struct {
	fx.Out

	Registry *packrat.Registry
}

func newRegistry(p Params) (Result, error) {
	opts := []packrat.RegistryOption{
		packrat.WithRegistryLogger(p.Logger.Named("packrat")),
		packrat.WithRegistryStats(p.Collector),
		packrat.WithEntryDefaults(p.Config.Options()...),
	}

	if p.Config.RemoteEnabled && p.Config.RemoteTable != "" {
		table := p.Config.RemoteTable
		log := p.Logger.Named("packrat.remote")
		opts = append(opts, packrat.WithRemoteOpener(
			func(ctx context.Context) (remote.Store, error) {
				return dynamoremote.New(ctx, table, dynamoremote.WithLogger(log))
			},
		))
	}

	registry := packrat.NewRegistry(opts...)

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return registry.Shutdown(ctx)
		},
	})

	return Result{Registry: registry}, nil
}
