// Package injector builds the runtime object graph. The provider set is
// consumed by wire; wire_gen.go is the generated injector.
package injector

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/config"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/native"
	"github.com/esengine/microes-sub003/internal/scripting"
)

// Runtime is the assembled App with its native store and script engine.
type Runtime struct {
	App     *app.App
	Defs    *component.Defs
	Store   *native.Store
	Scripts *scripting.Engine
}

var RuntimeSet = wire.NewSet(
	ProvidePump,
	ProvideOptions,
	ProvideApp,
	ProvideDefs,
	ProvideStore,
	ProvideScripts,
	ProvideRuntime,
)

func ProvidePump(cfg *config.Config) (*app.TickerPump, func()) {
	p := app.NewTickerPump(cfg.App.FrameRate)
	return p, p.Stop
}

func ProvideOptions(cfg *config.Config, pump *app.TickerPump) app.Options {
	return app.Options{
		FixedTimestep: cfg.App.FixedTimestep,
		MaxDelta:      cfg.App.MaxDelta,
		MaxFixedSteps: cfg.App.MaxFixedSteps,
		Speed:         cfg.App.Speed,
		DevMode:       cfg.App.DevMode,
		Pump:          pump,
	}
}

func ProvideApp(opts app.Options, log *zap.Logger) *app.App {
	return app.New(opts, log)
}

func ProvideDefs(a *app.App) *component.Defs {
	return component.Register(a.Registry())
}

func ProvideStore(log *zap.Logger) *native.Store {
	return native.NewStore(log.Named("native"))
}

func ProvideScripts(a *app.App, log *zap.Logger) (*scripting.Engine, func()) {
	e := scripting.NewEngine(a, log.Named("lua"))
	return e, e.Close
}

func ProvideRuntime(a *app.App, defs *component.Defs, store *native.Store, scripts *scripting.Engine) (*Runtime, error) {
	if err := native.Install(a, store, defs); err != nil {
		return nil, err
	}
	return &Runtime{App: a, Defs: defs, Store: store, Scripts: scripts}, nil
}
