package ecs

import (
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// Term is one component slot of a query. A *Component[T] is a read-only
// term; wrap it with Mut to have the value written back after each visit.
type Term interface {
	queryTerm() term
}

type term struct {
	c   ComponentType
	mut bool
}

func (c *Component[T]) queryTerm() term { return term{c: c} }

type mutTerm struct{ c ComponentType }

func (m mutTerm) queryTerm() term { return term{c: m.c, mut: true} }

// Mut marks c as mutable within a query.
func Mut(c ComponentType) Term { return mutTerm{c: c} }

// Query is an immutable declaration of what to match. Values are yielded
// for the ordered terms only; With and Without are existence filters.
type Query struct {
	terms   []term
	with    []ComponentType
	without []ComponentType
}

func NewQuery(terms ...Term) *Query {
	q := &Query{terms: make([]term, 0, len(terms))}
	for _, t := range terms {
		q.terms = append(q.terms, t.queryTerm())
	}
	return q
}

// With returns a copy that also requires cs.
func (q *Query) With(cs ...ComponentType) *Query {
	cp := q.clone()
	cp.with = append(cp.with, cs...)
	return cp
}

// Without returns a copy that excludes entities holding any of cs.
func (q *Query) Without(cs ...ComponentType) *Query {
	cp := q.clone()
	cp.without = append(cp.without, cs...)
	return cp
}

func (q *Query) clone() *Query {
	return &Query{
		terms:   append([]term(nil), q.terms...),
		with:    append([]ComponentType(nil), q.with...),
		without: append([]ComponentType(nil), q.without...),
	}
}

// Components returns the value-yielding components in declared order.
func (q *Query) Components() []ComponentType {
	out := make([]ComponentType, len(q.terms))
	for i, t := range q.terms {
		out[i] = t.c
	}
	return out
}

// Bind creates an instance scoped to one system run.
func (q *Query) Bind(w *World) *QueryInstance {
	return &QueryInstance{query: q, world: w}
}

// Row holds one entity's values for the query terms. Mutable slots hold a
// pointer to a private copy that is committed back to the World.
type Row struct {
	entity  Entity
	terms   []term
	values  []any
	mutable bool
}

func (r *Row) Entity() Entity { return r.entity }

// At returns slot i: a value for read terms, a pointer for mutable ones.
func (r *Row) At(i int) any { return r.values[i] }

func (r *Row) Len() int { return len(r.values) }

func (r *Row) slot(c ComponentType) int {
	for i, t := range r.terms {
		if t.c.ID() == c.ID() {
			return i
		}
	}
	panic(fmt.Sprintf("ecs: %s is not part of the query", c.Name()))
}

// Read returns the current value of c in r.
func Read[T any](r *Row, c *Component[T]) T {
	i := r.slot(c)
	if r.terms[i].mut {
		return *r.values[i].(*T)
	}
	return r.values[i].(T)
}

// Write returns the mutable copy of c in r. Panics if c was not declared Mut.
func Write[T any](r *Row, c *Component[T]) *T {
	i := r.slot(c)
	if !r.terms[i].mut {
		panic(fmt.Sprintf("ecs: %s is read-only in this query", c.Name()))
	}
	return r.values[i].(*T)
}

// Match is a detached copy of a row.
type Match struct {
	Entity Entity
	Values []any
}

// QueryInstance iterates a Query against a World. It keeps no state between
// iterations: every pass rescans the World.
type QueryInstance struct {
	query *Query
	world *World
}

// All yields matching entities. Mutable values of an entity are committed
// when the cursor moves on, when the loop ends, on break, and when the loop
// body panics; the commit lags one entity behind so in-place edits made in
// the body are complete before they are stored.
func (qi *QueryInstance) All() iter.Seq2[Entity, *Row] {
	return func(yield func(Entity, *Row) bool) {
		w := qi.world
		candidates := w.EntitiesWith(qi.query.Components(), qi.query.with, qi.query.without)

		w.iterating++
		var pending *Row
		defer func() {
			if pending != nil {
				qi.commit(pending)
			}
			w.iterating--
		}()

		for _, e := range candidates {
			if pending != nil {
				qi.commit(pending)
				pending = nil
			}
			row, ok := qi.load(e)
			if !ok {
				continue
			}
			if row.mutable {
				pending = row
			}
			if !yield(e, row) {
				return
			}
		}
	}
}

func (qi *QueryInstance) load(e Entity) (*Row, bool) {
	w := qi.world
	if !w.entities.has(e) {
		return nil, false
	}
	row := &Row{entity: e, terms: qi.query.terms, values: make([]any, len(qi.query.terms))}
	for i, t := range qi.query.terms {
		if !w.Has(e, t.c) {
			return nil, false
		}
		v, err := w.Get(e, t.c)
		if err != nil {
			return nil, false
		}
		if t.mut {
			row.values[i] = t.c.box(v)
			row.mutable = true
		} else {
			row.values[i] = v
		}
	}
	return row, true
}

func (qi *QueryInstance) commit(r *Row) {
	w := qi.world
	if !w.entities.has(r.entity) {
		return
	}
	for i, t := range r.terms {
		if !t.mut || !w.Has(r.entity, t.c) {
			continue
		}
		v := ComponentValue{Type: t.c, Value: t.c.unbox(r.values[i])}
		if _, err := w.Insert(r.entity, v); err != nil {
			w.log.Error("query write-back failed",
				zap.String("component", t.c.Name()), zap.Uint64("entity", uint64(r.entity)), zap.Error(err))
		}
	}
}

// ForEach calls fn for every match and stops at the first error.
func (qi *QueryInstance) ForEach(fn func(Entity, *Row) error) error {
	for e, row := range qi.All() {
		if err := fn(e, row); err != nil {
			return err
		}
	}
	return nil
}

// Single returns the first match. Several matches are not an error.
func (qi *QueryInstance) Single() (Entity, *Row, bool) {
	for e, row := range qi.All() {
		return e, row, true
	}
	return InvalidEntity, nil, false
}

func (qi *QueryInstance) IsEmpty() bool {
	_, _, ok := qi.Single()
	return !ok
}

func (qi *QueryInstance) Count() int {
	n := 0
	for range qi.All() {
		n++
	}
	return n
}

// Collect returns detached copies of every match.
func (qi *QueryInstance) Collect() []Match {
	var out []Match
	for e, row := range qi.All() {
		m := Match{Entity: e, Values: make([]any, len(row.values))}
		for i, t := range row.terms {
			if t.mut {
				m.Values[i] = t.c.unbox(row.values[i])
			} else {
				m.Values[i] = row.values[i]
			}
		}
		out = append(out, m)
	}
	return out
}
