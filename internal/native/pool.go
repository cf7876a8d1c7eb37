package native

import "github.com/esengine/microes-sub003/internal/core/ecs"

// Entity ids from the pool pack a 32-bit slot and a 32-bit generation. The
// slot is stored off by one so no live id is ever zero.
func makeEntity(index, generation uint32) ecs.Entity {
	return ecs.Entity(uint64(generation)<<32 | uint64(index+1))
}

func slotOf(e ecs.Entity) (index uint32, generation uint32, ok bool) {
	low := uint32(e)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(e >> 32), true
}

// pool manages entity allocation with generational indices and a free list.
// Destroy bumps the slot generation so stale ids stop being alive.
type pool struct {
	generations []uint32
	alive       []bool
	freeList    []uint32
	live        int
}

func newPool() *pool {
	return &pool{
		generations: make([]uint32, 0, 1024),
		alive:       make([]bool, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *pool) create() ecs.Entity {
	p.live++
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.alive[idx] = true
		return makeEntity(idx, p.generations[idx])
	}
	idx := uint32(len(p.generations))
	p.generations = append(p.generations, 0)
	p.alive = append(p.alive, true)
	return makeEntity(idx, 0)
}

func (p *pool) valid(e ecs.Entity) bool {
	idx, gen, ok := slotOf(e)
	if !ok || int(idx) >= len(p.generations) {
		return false
	}
	return p.alive[idx] && p.generations[idx] == gen
}

func (p *pool) destroy(e ecs.Entity) bool {
	if !p.valid(e) {
		return false
	}
	idx, _, _ := slotOf(e)
	p.generations[idx]++
	p.alive[idx] = false
	p.freeList = append(p.freeList, idx)
	p.live--
	return true
}
