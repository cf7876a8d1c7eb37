package injector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/config"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/core/system"
)

func TestInitRuntime(t *testing.T) {
	cfg := config.Default()
	cfg.App.FixedTimestep = 20 * time.Millisecond

	rt, cleanup, err := InitRuntime(cfg, zap.NewNop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, rt.Scripts)
	require.True(t, rt.App.World().Connected())
	require.Len(t, rt.App.Runner().Systems(system.FixedUpdate), 1)
	require.Len(t, rt.App.Runner().Systems(system.PostUpdate), 1)
	require.Equal(t, 20*time.Millisecond, ecs.MustGetResource(rt.App.Resources(), rt.App.FixedRes()).Timestep)

	_, ok := rt.App.Registry().ComponentByName("Sprite")
	require.True(t, ok)
}
