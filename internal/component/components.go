package component

import (
	"fmt"
	"strings"

	"github.com/esengine/microes-sub003/internal/core/ecs"
)

// Component records are pure data. Natively stored kinds are owned by the
// native registry; Name and the tag types live in the World's own maps.

type LocalTransform struct {
	Position Vec3 `yaml:"position"`
	Rotation Quat `yaml:"rotation"`
	Scale    Vec3 `yaml:"scale"`
}

// WorldTransform is derived from LocalTransform and the parent chain every
// PostUpdate. Writes to it are overwritten.
type WorldTransform struct {
	Position Vec3 `yaml:"position"`
	Rotation Quat `yaml:"rotation"`
	Scale    Vec3 `yaml:"scale"`
}

type Velocity struct {
	Linear  Vec3 `yaml:"linear"`
	Angular Vec3 `yaml:"angular"` // axis scaled by radians per second
}

type Sprite struct {
	Texture  string `yaml:"texture"`
	Color    Color  `yaml:"color"`
	Size     Vec2   `yaml:"size"`
	UVOffset Vec2   `yaml:"uv_offset"`
	UVScale  Vec2   `yaml:"uv_scale"`
	Layer    int    `yaml:"layer"`
	FlipX    bool   `yaml:"flip_x"`
	FlipY    bool   `yaml:"flip_y"`
}

type Projection uint8

const (
	Perspective Projection = iota
	Orthographic
)

func (p Projection) MarshalText() ([]byte, error) {
	switch p {
	case Perspective:
		return []byte("perspective"), nil
	case Orthographic:
		return []byte("orthographic"), nil
	}
	return nil, fmt.Errorf("unknown projection %d", p)
}

func (p *Projection) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "perspective":
		*p = Perspective
	case "orthographic", "ortho":
		*p = Orthographic
	default:
		return fmt.Errorf("unknown projection %q", b)
	}
	return nil
}

type Camera struct {
	Projection Projection `yaml:"projection"`
	FOV        float64    `yaml:"fov"`
	OrthoSize  float64    `yaml:"ortho_size"`
	Near       float64    `yaml:"near"`
	Far        float64    `yaml:"far"`
	Aspect     float64    `yaml:"aspect"`
	Active     bool       `yaml:"active"`
	Priority   int        `yaml:"priority"`
}

type Name struct {
	Value string `yaml:"value"`
}

// Visible marks entities the renderer draws.
type Visible struct{}

// Static marks entities the integrator leaves alone.
type Static struct{}

// Defs holds the definitions registered by Register.
type Defs struct {
	LocalTransform *ecs.Component[LocalTransform]
	WorldTransform *ecs.Component[WorldTransform]
	Velocity       *ecs.Component[Velocity]
	Sprite         *ecs.Component[Sprite]
	Camera         *ecs.Component[Camera]

	Name    *ecs.Component[Name]
	Visible *ecs.Component[Visible]
	Static  *ecs.Component[Static]
}

// Register adds the built-in component set to reg.
func Register(reg *ecs.Registry) *Defs {
	return &Defs{
		LocalTransform: ecs.RegisterNative(reg, ecs.NativeLocalTransform, LocalTransform{
			Rotation: IdentityQuat,
			Scale:    Vec3{1, 1, 1},
		}),
		WorldTransform: ecs.RegisterNative(reg, ecs.NativeWorldTransform, WorldTransform{
			Rotation: IdentityQuat,
			Scale:    Vec3{1, 1, 1},
		}),
		Velocity: ecs.RegisterNative(reg, ecs.NativeVelocity, Velocity{}),
		Sprite: ecs.RegisterNative(reg, ecs.NativeSprite, Sprite{
			Color:   White,
			Size:    Vec2{1, 1},
			UVScale: Vec2{1, 1},
		}),
		Camera: ecs.RegisterNative(reg, ecs.NativeCamera, Camera{
			FOV:       60,
			OrthoSize: 5,
			Near:      0.1,
			Far:       1000,
		}),
		Name:    ecs.RegisterComponent(reg, "Name", Name{}),
		Visible: ecs.RegisterComponent(reg, "Visible", Visible{}),
		Static:  ecs.RegisterComponent(reg, "Static", Static{}),
	}
}
