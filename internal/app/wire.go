//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"exconnector/internal/config"
)

func buildAppWithWire(ctx context.Context, cfg *config.Config, path string) (*App, error) {
	wire.Build(providerSet)
	return nil, nil
}
