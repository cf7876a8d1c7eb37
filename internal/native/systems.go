package native

import (
	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

// Install connects s to the App's World and schedules velocity integration
// in FixedUpdate and transform propagation in PostUpdate. defs must already
// be registered on the App's Registry.
func Install(a *app.App, s *Store, defs *component.Defs) error {
	w := a.World()
	if err := w.Connect(s); err != nil {
		return err
	}
	fixed := a.FixedRes()

	integrate := system.Define("native.integrate", []system.Param{system.Res(fixed)}, func(in *system.In) error {
		step := system.ResOf(in, fixed).Timestep
		s.Integrate(step, func(e ecs.Entity) bool { return w.Has(e, defs.Static) })
		return nil
	})
	transforms := system.Define("native.transforms", nil, func(*system.In) error {
		s.UpdateTransforms()
		return nil
	})

	if err := a.AddSystem(system.FixedUpdate, integrate); err != nil {
		return err
	}
	return a.AddSystem(system.PostUpdate, transforms)
}
