package native

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/ecs"
)

// Store is the in-process native registry: it owns entity ids, the
// natively stored component kinds and the parent/child hierarchy.
type Store struct {
	pool   *pool
	stores []removable

	local    *ptrStore[component.LocalTransform]
	world    *ptrStore[component.WorldTransform]
	velocity *ptrStore[component.Velocity]
	sprite   *ptrStore[component.Sprite]
	camera   *ptrStore[component.Camera]

	parent   map[ecs.Entity]ecs.Entity
	children map[ecs.Entity][]ecs.Entity

	log *zap.Logger
}

var _ ecs.NativeRegistry = (*Store)(nil)

func NewStore(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		pool:     newPool(),
		local:    newPtrStore[component.LocalTransform](),
		world:    newPtrStore[component.WorldTransform](),
		velocity: newPtrStore[component.Velocity](),
		sprite:   newPtrStore[component.Sprite](),
		camera:   newPtrStore[component.Camera](),
		parent:   make(map[ecs.Entity]ecs.Entity),
		children: make(map[ecs.Entity][]ecs.Entity),
		log:      log,
	}
	s.stores = []removable{s.local, s.world, s.velocity, s.sprite, s.camera}
	return s
}

func (s *Store) Create() ecs.Entity { return s.pool.create() }

// Destroy removes e from every store and detaches it from the hierarchy.
// Children survive as roots.
func (s *Store) Destroy(e ecs.Entity) {
	if !s.pool.destroy(e) {
		return
	}
	for _, st := range s.stores {
		st.remove(e)
	}
	s.detach(e)
	for _, c := range s.children[e] {
		delete(s.parent, c)
	}
	delete(s.children, e)
}

func (s *Store) Valid(e ecs.Entity) bool { return s.pool.valid(e) }

// Len reports the number of live entities.
func (s *Store) Len() int { return s.pool.live }

// SetParent attaches child under parent. A zero parent detaches. Links that
// would create a cycle or touch a dead entity are ignored.
func (s *Store) SetParent(child, parent ecs.Entity) {
	if !s.Valid(child) {
		return
	}
	if parent.IsZero() {
		s.detach(child)
		return
	}
	if !s.Valid(parent) || s.isAncestor(child, parent) {
		s.log.Warn("set parent ignored",
			zap.Uint64("child", uint64(child)), zap.Uint64("parent", uint64(parent)))
		return
	}
	s.detach(child)
	s.parent[child] = parent
	s.children[parent] = append(s.children[parent], child)
}

// Parent returns e's parent, or InvalidEntity for a root.
func (s *Store) Parent(e ecs.Entity) ecs.Entity { return s.parent[e] }

// Children returns a copy of e's children in attach order.
func (s *Store) Children(e ecs.Entity) []ecs.Entity { return slices.Clone(s.children[e]) }

func (s *Store) detach(child ecs.Entity) {
	p, ok := s.parent[child]
	if !ok {
		return
	}
	delete(s.parent, child)
	kids := s.children[p]
	if i := slices.Index(kids, child); i >= 0 {
		s.children[p] = slices.Delete(kids, i, i+1)
	}
	if len(s.children[p]) == 0 {
		delete(s.children, p)
	}
}

// isAncestor reports whether a is e or one of e's ancestors.
func (s *Store) isAncestor(a, e ecs.Entity) bool {
	for cur := e; !cur.IsZero(); cur = s.parent[cur] {
		if cur == a {
			return true
		}
	}
	return false
}

func (s *Store) Bind(kind ecs.NativeKind) (ecs.NativeOps, bool) {
	switch kind {
	case ecs.NativeLocalTransform:
		return s.local.ops(), true
	case ecs.NativeWorldTransform:
		return s.world.ops(), true
	case ecs.NativeVelocity:
		return s.velocity.ops(), true
	case ecs.NativeSprite:
		return s.sprite.ops(), true
	case ecs.NativeCamera:
		return s.camera.ops(), true
	default:
		return ecs.NativeOps{}, false
	}
}

// Integrate advances every LocalTransform that has a Velocity by dt.
func (s *Store) Integrate(dt time.Duration, skip func(ecs.Entity) bool) {
	secs := dt.Seconds()
	each2(s.local, s.velocity, func(e ecs.Entity, lt *component.LocalTransform, v *component.Velocity) {
		if skip != nil && skip(e) {
			return
		}
		lt.Position = lt.Position.Add(v.Linear.Scale(secs))
		if w := v.Angular.Length(); w > 0 {
			step := component.AxisAngle(v.Angular, w*secs)
			lt.Rotation = step.Mul(lt.Rotation).Normalize()
		}
	})
}

// UpdateTransforms recomputes WorldTransform for every entity holding a
// LocalTransform, composing each with its parent chain. Parents without a
// LocalTransform count as identity.
func (s *Store) UpdateTransforms() {
	done := make(map[ecs.Entity]component.WorldTransform, s.local.len())
	var resolve func(e ecs.Entity) component.WorldTransform
	resolve = func(e ecs.Entity) component.WorldTransform {
		if wt, ok := done[e]; ok {
			return wt
		}
		lt, ok := s.local.get(e)
		if !ok {
			return component.WorldTransform{Rotation: component.IdentityQuat, Scale: component.Vec3{X: 1, Y: 1, Z: 1}}
		}
		wt := component.WorldTransform{Position: lt.Position, Rotation: lt.Rotation, Scale: lt.Scale}
		if p, ok := s.parent[e]; ok {
			pw := resolve(p)
			wt.Position = pw.Position.Add(pw.Rotation.Rotate(pw.Scale.Mul(lt.Position)))
			wt.Rotation = pw.Rotation.Mul(lt.Rotation)
			wt.Scale = pw.Scale.Mul(lt.Scale)
		}
		done[e] = wt
		return wt
	}
	for e := range s.local.data {
		s.world.set(e, resolve(e))
	}
}
