package component

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/esengine/microes-sub003/internal/core/ecs"
)

func TestQuat(t *testing.T) {
	quarter := AxisAngle(Vec3{Z: 1}, math.Pi/2)

	got := quarter.Rotate(Vec3{X: 1})
	require.InDelta(t, 0, got.X, 1e-9)
	require.InDelta(t, 1, got.Y, 1e-9)

	half := quarter.Mul(quarter)
	got = half.Rotate(Vec3{X: 1})
	require.InDelta(t, -1, got.X, 1e-9)
	require.InDelta(t, math.Pi, math.Abs(half.Angle2D()), 1e-9)

	require.True(t, IdentityQuat.Mul(quarter).ApproxEqual(quarter))
	require.Equal(t, IdentityQuat, AxisAngle(Vec3{}, 1))
	require.Equal(t, IdentityQuat, Quat{}.Normalize())
}

func TestRegister(t *testing.T) {
	reg := ecs.NewRegistry()
	defs := Register(reg)

	require.Equal(t, "LocalTransform", defs.LocalTransform.Name())
	require.Equal(t, ecs.KindNative, defs.Sprite.Kind())
	require.Equal(t, ecs.KindScript, defs.Name.Kind())

	lt := defs.LocalTransform.Default().(LocalTransform)
	require.Equal(t, Vec3{1, 1, 1}, lt.Scale)
	require.Equal(t, IdentityQuat, lt.Rotation)
}

func TestDecodeOntoDefaults(t *testing.T) {
	defs := Register(ecs.NewRegistry())

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("projection: ortho\npriority: 2\n"), &node))
	v, err := defs.Camera.DecodeWith(node.Content[0].Decode)
	require.NoError(t, err)

	cam := v.Value.(Camera)
	require.Equal(t, Orthographic, cam.Projection)
	require.Equal(t, 2, cam.Priority)
	require.Equal(t, 1000.0, cam.Far, "absent fields keep their defaults")

	out, err := yaml.Marshal(cam)
	require.NoError(t, err)
	require.Contains(t, string(out), "projection: orthographic")
}
