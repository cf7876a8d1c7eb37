//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/config"
)

func InitRuntime(cfg *config.Config, log *zap.Logger) (*Runtime, func(), error) {
	wire.Build(RuntimeSet)
	return nil, nil, nil
}
