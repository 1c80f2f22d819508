package grid

// VisualState returns the link count of cell idx: 0 for free cells, and for
// occupied cells the number of occupied orthogonal neighbors (cells outside
// the grid never count). Out-of-range indices return 0.
func (g *Grid) VisualState(idx int) int {
	if !g.validIndex(idx) {
		return 0
	}
	return int(g.visual[idx])
}

// VisualStates returns a copy of the visual state of every cell.
func (g *Grid) VisualStates() []int {
	out := make([]int, len(g.visual))
	for i, v := range g.visual {
		out[i] = int(v)
	}
	return out
}

// RecomputeAll rebuilds the visual state of every cell. Call it after the
// occupancy bitmap was replaced wholesale (see SetFreeMap).
func (g *Grid) RecomputeAll() {
	for idx := range g.visual {
		g.visual[idx] = g.links(idx)
	}
}

// Neighbors returns the in-bounds orthogonal neighbors of idx in the order
// up, down, left, right.
func (g *Grid) Neighbors(idx int) []int {
	if !g.validIndex(idx) {
		return nil
	}
	p := g.Point(idx)
	out := make([]int, 0, 4)
	for _, d := range [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}} {
		x, y := p.X+d[0], p.Y+d[1]
		if g.IsInside(x, y) {
			out = append(out, g.Index(x, y))
		}
	}
	return out
}

// recompute refreshes the visual state of the changed cells and their
// neighbors only.
func (g *Grid) recompute(changed []int) {
	for _, idx := range g.affected(changed) {
		g.visual[idx] = g.links(idx)
	}
}

// affected returns the changed indices plus their in-bounds neighbors,
// each once.
func (g *Grid) affected(changed []int) []int {
	seen := make(map[int]struct{}, len(changed)*5)
	out := make([]int, 0, len(changed)*5)
	add := func(idx int) {
		if _, ok := seen[idx]; ok {
			return
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	for _, idx := range changed {
		if !g.validIndex(idx) {
			continue
		}
		add(idx)
		for _, n := range g.Neighbors(idx) {
			add(n)
		}
	}
	return out
}

func (g *Grid) occupied(x, y int) bool {
	return g.IsInside(x, y) && !g.free[g.Index(x, y)]
}

func (g *Grid) links(idx int) uint8 {
	if g.free[idx] {
		return 0
	}
	p := g.Point(idx)
	var n uint8
	if g.occupied(p.X, p.Y-1) {
		n++
	}
	if g.occupied(p.X, p.Y+1) {
		n++
	}
	if g.occupied(p.X-1, p.Y) {
		n++
	}
	if g.occupied(p.X+1, p.Y) {
		n++
	}
	return min(n, MaxVisualState)
}
