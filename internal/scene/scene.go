package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/esengine/microes-sub003/internal/component"
	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/core/ecs"
)

var (
	ErrUnknownComponent = errors.New("unknown component")
	ErrUnknownParent    = errors.New("unknown parent")
	ErrDuplicateID      = errors.New("duplicate entity id")
)

// Document is a serialized scene. Component bodies stay as raw YAML nodes
// until Spawn decodes them onto each definition's default, so fields
// missing from the file keep their default values.
type Document struct {
	Name     string   `yaml:"name"`
	Entities []Entity `yaml:"entities"`
}

// Entity ids are local to the document.
type Entity struct {
	ID         uint64               `yaml:"id"`
	Name       string               `yaml:"name,omitempty"`
	Parent     uint64               `yaml:"parent,omitempty"`
	Components map[string]yaml.Node `yaml:"components,omitempty"`
}

func Load(r io.Reader) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	return &doc, nil
}

func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	doc, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encode scene %s: %w", d.Name, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Spawn creates every entity of d in w and returns the document id to
// entity mapping. Validation runs first so a bad document spawns nothing.
// An entity's name is stored in the component registered as "Name" when
// one exists.
func (d *Document) Spawn(w *ecs.World) (map[uint64]ecs.Entity, error) {
	reg := w.Registry()
	ids := make(map[uint64]bool, len(d.Entities))
	for _, de := range d.Entities {
		if ids[de.ID] {
			return nil, fmt.Errorf("spawn %s: id %d: %w", d.Name, de.ID, ErrDuplicateID)
		}
		ids[de.ID] = true
	}

	values := make([][]ecs.ComponentValue, len(d.Entities))
	for i, de := range d.Entities {
		if de.Parent != 0 && !ids[de.Parent] {
			return nil, fmt.Errorf("spawn %s: entity %d: parent %d: %w", d.Name, de.ID, de.Parent, ErrUnknownParent)
		}
		names := make([]string, 0, len(de.Components))
		for name := range de.Components {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			c, ok := reg.ComponentByName(name)
			if !ok {
				return nil, fmt.Errorf("spawn %s: entity %d: %s: %w", d.Name, de.ID, name, ErrUnknownComponent)
			}
			node := de.Components[name]
			v, err := c.DecodeWith(node.Decode)
			if err != nil {
				return nil, fmt.Errorf("spawn %s: entity %d: %w", d.Name, de.ID, err)
			}
			values[i] = append(values[i], v)
		}
		if _, explicit := de.Components["Name"]; de.Name != "" && !explicit {
			if c, ok := reg.ComponentByName("Name"); ok {
				if nc, ok := c.(*ecs.Component[component.Name]); ok {
					values[i] = append(values[i], nc.Value(component.Name{Value: de.Name}))
				}
			}
		}
	}

	spawned := make(map[uint64]ecs.Entity, len(d.Entities))
	for _, de := range d.Entities {
		spawned[de.ID] = w.Spawn()
	}
	for i, de := range d.Entities {
		e := spawned[de.ID]
		for _, v := range values[i] {
			if _, err := w.Insert(e, v); err != nil {
				return spawned, fmt.Errorf("spawn %s: entity %d: %w", d.Name, de.ID, err)
			}
		}
		if de.Parent != 0 {
			w.SetParent(e, spawned[de.Parent])
		}
	}
	return spawned, nil
}

// ParentFunc reports an entity's parent, or InvalidEntity.
type ParentFunc func(ecs.Entity) ecs.Entity

// Snapshot captures every entity of w. Derived native components are
// skipped. parentOf may be nil when the hierarchy is not tracked.
func Snapshot(w *ecs.World, name string, parentOf ParentFunc) (*Document, error) {
	entities := w.Entities()
	local := make(map[ecs.Entity]uint64, len(entities))
	for i, e := range entities {
		local[e] = uint64(i + 1)
	}

	doc := &Document{Name: name, Entities: make([]Entity, 0, len(entities))}
	for _, e := range entities {
		de := Entity{ID: local[e], Components: make(map[string]yaml.Node)}
		if parentOf != nil {
			if p := parentOf(e); !p.IsZero() {
				de.Parent = local[p]
			}
		}
		for _, c := range w.ComponentsOf(e) {
			if c.Native() == ecs.NativeWorldTransform {
				continue
			}
			v, err := w.Get(e, c)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", c.Name(), err)
			}
			if n, ok := v.(component.Name); ok {
				de.Name = n.Value
				continue
			}
			var node yaml.Node
			if err := node.Encode(v); err != nil {
				return nil, fmt.Errorf("snapshot %s: encode %s: %w", name, c.Name(), err)
			}
			de.Components[c.Name()] = node
		}
		doc.Entities = append(doc.Entities, de)
	}
	return doc, nil
}

// Loader reads a scene file off the loop goroutine and spawns it when the
// App applies preload results.
func Loader(path string) app.Loader {
	return func(context.Context) (func(*app.App) error, error) {
		doc, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return func(a *app.App) error {
			_, err := doc.Spawn(a.World())
			return err
		}, nil
	}
}
