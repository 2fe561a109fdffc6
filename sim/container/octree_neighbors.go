package container

import (
	"sort"
)

// OctreeLeaf is one leaf handed to octree traversals.
type OctreeLeaf struct {
	ID   int
	Cell *Cell
	Halo bool
}

// OctreeTopology is what octree traversals walk. Owned leaves come first in
// Leaves, so an owned leaf's ID is below NumOwnedLeaves; empty halo leaves
// are left out. Neighbors[i] lists the IDs of every other leaf, owned or
// halo, within the interaction length of owned leaf i, in ascending order.
type OctreeTopology struct {
	Leaves         []*OctreeLeaf
	NumOwnedLeaves int
	Neighbors      [][]int
}

func (*OctreeTopology) topology() {}

// directions are the 26 face, edge and corner offsets.
var directions = func() [][3]int {
	var out [][3]int
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 || dz != 0 {
					out = append(out, [3]int{dx, dy, dz})
				}
			}
		}
	}
	return out
}()

// mirror flips the octant bits of every axis the direction moves along.
func mirror(octant int, dir [3]int) int {
	for d := 0; d < 3; d++ {
		if dir[d] != 0 {
			octant ^= octantAxisBits[d]
		}
	}
	return octant
}

// gteqNeighbor returns the smallest node at least as large as n that is
// adjacent to n in direction dir, or noNode at the border of the tree. It
// climbs to the common ancestor and mirrors the path back down.
func (a *octreeArena) gteqNeighbor(n int, dir [3]int) int {
	parent := a.nodes[n].parent
	if parent == noNode {
		return noNode
	}
	oct := a.nodes[n].octant
	var escaping [3]int
	escapes := false
	for d := 0; d < 3; d++ {
		upper := oct&octantAxisBits[d] != 0
		if (dir[d] > 0 && upper) || (dir[d] < 0 && !upper) {
			escaping[d] = dir[d]
			escapes = true
		}
	}
	if !escapes {
		return a.nodes[parent].children[mirror(oct, dir)]
	}
	q := a.gteqNeighbor(parent, escaping)
	if q == noNode || a.nodes[q].leaf {
		return q
	}
	return a.nodes[q].children[mirror(oct, dir)]
}

// neighborLeaves returns the leaves within dist of leaf n in the same tree.
func (a *octreeArena) neighborLeaves(n int, distSq float64) []int {
	seen := map[int]bool{}
	var out []int
	cell := &a.nodes[n].cell
	for _, dir := range directions {
		q := a.gteqNeighbor(n, dir)
		if q == noNode {
			continue
		}
		for _, l := range a.leavesWithin(q, cell.Min, cell.Max, distSq, nil) {
			if l != n && !seen[l] {
				seen[l] = true
				out = append(out, l)
			}
		}
	}
	return out
}

func buildOctreeTopology(owned, halo *octreeArena, il float64) OctreeTopology {
	ilSq := il * il
	ownedLeaves := owned.leaves(0, nil)
	var haloLeaves []int
	for _, n := range halo.leaves(0, nil) {
		if halo.nodes[n].cell.Len() > 0 {
			haloLeaves = append(haloLeaves, n)
		}
	}

	topo := OctreeTopology{NumOwnedLeaves: len(ownedLeaves)}
	ownedID := make(map[int]int, len(ownedLeaves))
	for i, n := range ownedLeaves {
		ownedID[n] = i
		topo.Leaves = append(topo.Leaves, &OctreeLeaf{ID: i, Cell: &owned.nodes[n].cell})
	}
	haloID := make(map[int]int, len(haloLeaves))
	for i, n := range haloLeaves {
		id := len(ownedLeaves) + i
		haloID[n] = id
		topo.Leaves = append(topo.Leaves, &OctreeLeaf{ID: id, Cell: &halo.nodes[n].cell, Halo: true})
	}

	topo.Neighbors = make([][]int, len(ownedLeaves))
	for i, n := range ownedLeaves {
		var ids []int
		for _, l := range owned.neighborLeaves(n, ilSq) {
			ids = append(ids, ownedID[l])
		}
		cell := &owned.nodes[n].cell
		for _, l := range halo.leavesWithin(0, cell.Min, cell.Max, ilSq, nil) {
			if id, ok := haloID[l]; ok {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)
		topo.Neighbors[i] = ids
	}
	return topo
}
