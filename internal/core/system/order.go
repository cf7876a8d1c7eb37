package system

import "fmt"

// Order sorts defs so every satisfiable Before/After hint holds. Among
// systems free to run, declaration order wins. Unknown names are ignored;
// a cycle is broken by releasing the earliest declared member of a cycle
// that nothing outside it waits on. Both cases
// are reported in diags.
func Order(defs []*Def) (ordered []*Def, diags []string) {
	n := len(defs)
	byName := make(map[string][]int, n)
	for i, d := range defs {
		byName[d.Name] = append(byName[d.Name], i)
	}

	succ := make([]map[int]struct{}, n)
	indeg := make([]int, n)
	edge := func(from, to int) {
		if from == to {
			return
		}
		if succ[from] == nil {
			succ[from] = make(map[int]struct{})
		}
		if _, dup := succ[from][to]; dup {
			return
		}
		succ[from][to] = struct{}{}
		indeg[to]++
	}

	for i, d := range defs {
		for _, name := range d.After {
			targets, ok := byName[name]
			if !ok {
				diags = append(diags, fmt.Sprintf("%s: after unknown system %q", d.Name, name))
				continue
			}
			for _, j := range targets {
				edge(j, i)
			}
		}
		for _, name := range d.Before {
			targets, ok := byName[name]
			if !ok {
				diags = append(diags, fmt.Sprintf("%s: before unknown system %q", d.Name, name))
				continue
			}
			for _, j := range targets {
				edge(i, j)
			}
		}
	}

	done := make([]bool, n)
	ordered = make([]*Def, 0, n)
	emit := func(i int) {
		done[i] = true
		ordered = append(ordered, defs[i])
		for j := range succ[i] {
			indeg[j]--
		}
	}

	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] <= 0 {
				next = i
				break
			}
		}
		if next < 0 {
			next = cycleHead(succ, done)
			diags = append(diags, fmt.Sprintf("%s: ordering cycle, running in declaration order", defs[next].Name))
		}
		emit(next)
	}
	return ordered, diags
}

// cycleHead returns the earliest pending system that sits on a cycle no
// other pending system feeds into. Such a cycle always exists once every
// pending system has an unmet predecessor.
func cycleHead(succ []map[int]struct{}, done []bool) int {
	n := len(done)
	pred := make([][]int, n)
	for from, tos := range succ {
		if done[from] {
			continue
		}
		for to := range tos {
			if !done[to] {
				pred[to] = append(pred[to], from)
			}
		}
	}
	reach := func(start int, next func(int) []int) []bool {
		seen := make([]bool, n)
		stack := next(start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if done[i] || seen[i] {
				continue
			}
			seen[i] = true
			stack = append(stack, next(i)...)
		}
		return seen
	}
	forward := func(i int) []int {
		out := make([]int, 0, len(succ[i]))
		for j := range succ[i] {
			out = append(out, j)
		}
		return out
	}
	backward := func(i int) []int { return pred[i] }

	first := -1
	for i := range n {
		if done[i] {
			continue
		}
		if first < 0 {
			first = i
		}
		down := reach(i, forward)
		if !down[i] {
			continue
		}
		source := true
		for j, up := range reach(i, backward) {
			if up && !down[j] {
				source = false
				break
			}
		}
		if source {
			return i
		}
	}
	return first
}
