package topology

import (
	"math"
	"sort"
)

// Point is a 2D coordinate in the layout's own unit system; callers scale
// it to pixels.
type Point struct{ X, Y float64 }

const locationRadius = 3.0
const springIterations = 120
const springStrength = 0.02
const repulsionStrength = 0.6

// Layout places location nodes on a circle of radius locationRadius at
// evenly spaced angles, then runs a spring layout on the router nodes with
// location coordinates held fixed.
func Layout(snap Snapshot) map[string]Point {
	positions := make(map[string]Point, len(snap.Nodes))

	var locations, routers []Node
	for _, n := range snap.Nodes {
		if n.Type == NodeLocation {
			locations = append(locations, n)
		} else {
			routers = append(routers, n)
		}
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].ID < locations[j].ID })
	sort.Slice(routers, func(i, j int) bool { return routers[i].ID < routers[j].ID })

	n := len(locations)
	for i, loc := range locations {
		angle := 2 * math.Pi * float64(i) / math.Max(float64(n), 1)
		positions[loc.ID] = Point{
			X: locationRadius * math.Cos(angle),
			Y: locationRadius * math.Sin(angle),
		}
	}

	for i, r := range routers {
		angle := 2 * math.Pi * float64(i) / math.Max(float64(len(routers)), 1)
		positions[r.ID] = Point{
			X: 1.2 * math.Cos(angle),
			Y: 1.2 * math.Sin(angle),
		}
	}

	adj := make(map[string][]string)
	for _, e := range snap.Edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}

	fixed := make(map[string]bool, len(locations))
	for _, loc := range locations {
		fixed[loc.ID] = true
	}

	nodeIDs := make([]string, 0, len(snap.Nodes))
	for _, node := range snap.Nodes {
		nodeIDs = append(nodeIDs, node.ID)
	}
	sort.Strings(nodeIDs)

	for iter := 0; iter < springIterations; iter++ {
		forces := make(map[string]Point, len(nodeIDs))

		for _, id := range nodeIDs {
			if fixed[id] {
				continue
			}
			var fx, fy float64

			for _, neighbor := range adj[id] {
				np := positions[neighbor]
				p := positions[id]
				fx += (np.X - p.X) * springStrength
				fy += (np.Y - p.Y) * springStrength
			}

			for _, other := range nodeIDs {
				if other == id {
					continue
				}
				p, op := positions[id], positions[other]
				dx, dy := p.X-op.X, p.Y-op.Y
				distSq := dx*dx + dy*dy
				if distSq < 0.0001 {
					distSq = 0.0001
				}
				fx += repulsionStrength * dx / distSq
				fy += repulsionStrength * dy / distSq
			}

			forces[id] = Point{X: fx, Y: fy}
		}

		for id, f := range forces {
			p := positions[id]
			positions[id] = Point{X: p.X + f.X*0.1, Y: p.Y + f.Y*0.1}
		}
	}

	return positions
}
