package ecs

import (
	"errors"
	"fmt"
)

// command is the closed set of deferred operations.
type command interface{ isCommand() }

type spawnCommand struct{ builder *EntityCommands }

type despawnCommand struct{ target target }

type insertCommand struct {
	target target
	value  ComponentValue
}

type removeCommand struct {
	target target
	c      ComponentType
}

type insertResourceCommand struct{ value ResourceValue }

func (*spawnCommand) isCommand()         {}
func (despawnCommand) isCommand()        {}
func (insertCommand) isCommand()         {}
func (removeCommand) isCommand()         {}
func (insertResourceCommand) isCommand() {}

// target names an entity that may only get its id when an earlier spawn
// command in the same queue executes.
type target struct {
	entity  Entity
	builder *EntityCommands
}

func (t target) resolve() Entity {
	if t.builder != nil {
		return t.builder.entity
	}
	return t.entity
}

// Commands buffers structural changes made by a system so they are applied
// after the system body returns, never in the middle of a query iteration.
type Commands struct {
	world     *World
	resources *Resources
	queue     []command
}

func NewCommands(w *World, rs *Resources) *Commands {
	return &Commands{world: w, resources: rs, queue: make([]command, 0, 8)}
}

// Spawn queues a new entity with the given initial components.
func (c *Commands) Spawn(values ...ComponentValue) *EntityCommands {
	b := &EntityCommands{cmds: c, pendingSpawn: true, pending: append([]ComponentValue(nil), values...)}
	c.queue = append(c.queue, &spawnCommand{builder: b})
	return b
}

// Entity returns a builder for an existing entity.
func (c *Commands) Entity(e Entity) *EntityCommands {
	return &EntityCommands{cmds: c, entity: e}
}

func (c *Commands) Despawn(e Entity) {
	c.queue = append(c.queue, despawnCommand{target: target{entity: e}})
}

func (c *Commands) Insert(e Entity, v ComponentValue) {
	c.queue = append(c.queue, insertCommand{target: target{entity: e}, value: v})
}

func (c *Commands) Remove(e Entity, ct ComponentType) {
	c.queue = append(c.queue, removeCommand{target: target{entity: e}, c: ct})
}

func (c *Commands) InsertResource(v ResourceValue) {
	c.queue = append(c.queue, insertResourceCommand{value: v})
}

// Len reports the number of queued commands.
func (c *Commands) Len() int { return len(c.queue) }

// Flush applies every queued command in order and empties the queue. A
// failing command does not stop the ones after it; all errors are joined.
func (c *Commands) Flush() error {
	queue := c.queue
	c.queue = make([]command, 0, 8)

	var errs []error
	for _, cmd := range queue {
		switch cmd := cmd.(type) {
		case *spawnCommand:
			b := cmd.builder
			if b.entity.IsZero() {
				b.entity = c.world.Spawn()
			}
			b.pendingSpawn = false
			for _, v := range b.pending {
				if _, err := c.world.Insert(b.entity, v); err != nil {
					errs = append(errs, fmt.Errorf("spawn: %w", err))
				}
			}
			b.pending = nil
		case despawnCommand:
			c.world.Despawn(cmd.target.resolve())
		case insertCommand:
			if _, err := c.world.Insert(cmd.target.resolve(), cmd.value); err != nil {
				errs = append(errs, err)
			}
		case removeCommand:
			c.world.Remove(cmd.target.resolve(), cmd.c)
		case insertResourceCommand:
			if err := c.resources.Insert(cmd.value); err != nil {
				errs = append(errs, err)
			}
		default:
			panic(fmt.Sprintf("ecs: unhandled command %T", cmd))
		}
	}
	return errors.Join(errs...)
}

// EntityCommands stages changes for one entity. For a queued spawn the
// components accumulate locally until the spawn executes.
type EntityCommands struct {
	cmds         *Commands
	entity       Entity
	pendingSpawn bool
	pending      []ComponentValue
}

// ID returns the entity id, spawning the entity right away if the queued
// spawn has not produced one yet.
func (ec *EntityCommands) ID() Entity {
	if ec.entity.IsZero() {
		ec.entity = ec.cmds.world.Spawn()
	}
	return ec.entity
}

func (ec *EntityCommands) Insert(values ...ComponentValue) *EntityCommands {
	if ec.pendingSpawn {
		ec.pending = append(ec.pending, values...)
		return ec
	}
	for _, v := range values {
		ec.cmds.queue = append(ec.cmds.queue, insertCommand{target: ec.target(), value: v})
	}
	return ec
}

func (ec *EntityCommands) Remove(c ComponentType) *EntityCommands {
	if ec.pendingSpawn {
		kept := ec.pending[:0]
		for _, v := range ec.pending {
			if v.Type.ID() != c.ID() {
				kept = append(kept, v)
			}
		}
		ec.pending = kept
		return ec
	}
	ec.cmds.queue = append(ec.cmds.queue, removeCommand{target: ec.target(), c: c})
	return ec
}

func (ec *EntityCommands) Despawn() {
	ec.cmds.queue = append(ec.cmds.queue, despawnCommand{target: ec.target()})
}

func (ec *EntityCommands) target() target {
	if ec.entity.IsZero() {
		return target{builder: ec}
	}
	return target{entity: ec.entity}
}
