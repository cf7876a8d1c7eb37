package scene

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
	"github.com/esengine/microes-sub003/internal/native"
)

const demo = `
name: demo
entities:
  - id: 1
    name: ship
    components:
      LocalTransform:
        position: {x: 4, y: 2}
      Sprite:
        texture: ship.png
        layer: 3
  - id: 2
    name: turret
    parent: 1
    components:
      LocalTransform:
        position: {x: 1}
      Visible: {}
`

func newWorld(t *testing.T) (*ecs.World, *native.Store, *component.Defs) {
	t.Helper()
	reg := ecs.NewRegistry()
	defs := component.Register(reg)
	w := ecs.NewWorld(reg, nil)
	s := native.NewStore(nil)
	require.NoError(t, w.Connect(s))
	return w, s, defs
}

func TestSpawn(t *testing.T) {
	doc, err := Load(strings.NewReader(demo))
	require.NoError(t, err)
	require.Equal(t, "demo", doc.Name)

	w, s, defs := newWorld(t)
	ids, err := doc.Spawn(w)
	require.NoError(t, err)
	require.Len(t, ids, 2)

	ship, turret := ids[1], ids[2]
	require.Equal(t, ship, s.Parent(turret))
	require.Equal(t, "turret", ecs.MustGet(w, turret, defs.Name).Value)
	require.True(t, w.Has(turret, defs.Visible))

	lt := ecs.MustGet(w, ship, defs.LocalTransform)
	require.Equal(t, component.Vec3{X: 4, Y: 2}, lt.Position)
	require.Equal(t, component.Vec3{X: 1, Y: 1, Z: 1}, lt.Scale, "defaults fill absent fields")
	require.Equal(t, component.IdentityQuat, lt.Rotation)

	sp := ecs.MustGet(w, ship, defs.Sprite)
	require.Equal(t, "ship.png", sp.Texture)
	require.Equal(t, 3, sp.Layer)
	require.Equal(t, component.White, sp.Color)
}

func TestSpawnRejectsBadDocuments(t *testing.T) {
	cases := map[string]struct {
		body string
		want error
	}{
		"unknown component": {
			body: "name: x\nentities:\n  - id: 1\n    components:\n      Bogus: {}\n",
			want: ErrUnknownComponent,
		},
		"unknown parent": {
			body: "name: x\nentities:\n  - id: 1\n    parent: 9\n",
			want: ErrUnknownParent,
		},
		"duplicate id": {
			body: "name: x\nentities:\n  - id: 1\n  - id: 1\n",
			want: ErrDuplicateID,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := Load(strings.NewReader(tc.body))
			require.NoError(t, err)
			w, _, _ := newWorld(t)
			_, err = doc.Spawn(w)
			require.ErrorIs(t, err, tc.want)
			require.Zero(t, w.Len(), "nothing is spawned")
		})
	}

	t.Run("unknown fields fail to load", func(t *testing.T) {
		_, err := Load(strings.NewReader("name: x\nentites: []\n"))
		require.Error(t, err)
	})
}

func TestSnapshotRespawns(t *testing.T) {
	doc, err := Load(strings.NewReader(demo))
	require.NoError(t, err)
	w, s, defs := newWorld(t)
	_, err = doc.Spawn(w)
	require.NoError(t, err)
	s.UpdateTransforms()

	snap, err := Snapshot(w, "copy", s.Parent)
	require.NoError(t, err)
	require.Len(t, snap.Entities, 2)
	require.Equal(t, "ship", snap.Entities[0].Name)
	require.Equal(t, uint64(1), snap.Entities[1].Parent)
	require.NotContains(t, snap.Entities[0].Components, "WorldTransform")
	require.NotContains(t, snap.Entities[0].Components, "Name")

	body, err := snap.Marshal()
	require.NoError(t, err)
	again, err := Load(strings.NewReader(string(body)))
	require.NoError(t, err)

	w2, s2, _ := newWorld(t)
	ids, err := again.Spawn(w2)
	require.NoError(t, err)
	require.Equal(t, ids[1], s2.Parent(ids[2]))
	require.Equal(t,
		ecs.MustGet(w, w.Entities()[0], defs.Sprite),
		ecs.MustGet(w2, ids[1], defs.Sprite))
}

func TestLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0o644))

	a := app.New(app.Options{}, nil)
	component.Register(a.Registry())
	require.NoError(t, a.Preload(context.Background(), Loader(path)))
	require.Equal(t, 2, a.World().Len())

	err := a.Preload(context.Background(), Loader(filepath.Join(t.TempDir(), "missing.yaml")))
	require.ErrorIs(t, err, os.ErrNotExist)
}
