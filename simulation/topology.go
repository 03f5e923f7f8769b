package simulation

import (
	"fmt"
	"math/rand"
)

// Topology is an undirected simple gossip graph over node indices.
type Topology struct {
	adj       [][]bool
	neighbors [][]int
	minDegree int
}

// GenerateTopology draws random graphs in which every node asks for at least
// minDegree partners until one is connected. It gives up after maxRetries.
func GenerateTopology(rng *rand.Rand, n int, minDegree int, maxRetries int) (*Topology, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: topology needs at least one node", ErrInvalidConfig)
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		adj := generateGraph(rng, n, minDegree)
		if isConnected(adj) {
			return newTopology(adj, minDegree), nil
		}
	}
	return nil, fmt.Errorf("%w: %d nodes, min degree %d, %d attempts", ErrDisconnectedTopology, n, minDegree, maxRetries)
}

func newTopology(adj [][]bool, minDegree int) *Topology {
	neighbors := make([][]int, len(adj))
	for i, row := range adj {
		for j, connected := range row {
			if connected {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}
	return &Topology{adj: adj, neighbors: neighbors, minDegree: minDegree}
}

func generateGraph(rng *rand.Rand, n int, minDegree int) [][]bool {
	adj := make([][]bool, n)
	for i := range adj {
		adj[i] = make([]bool, n)
	}
	degree := make([]int, n)

	// Nodes that still accept new partners.
	open := make([]int, n)
	for i := range open {
		open[i] = i
	}

	for i := 0; i < n; i++ {
		need := minDegree - degree[i]
		if need <= 0 {
			continue
		}
		candidates := make([]int, 0, len(open))
		for _, c := range open {
			if c != i {
				candidates = append(candidates, c)
			}
		}
		for need > 0 && len(candidates) > 0 {
			k := rng.Intn(len(candidates))
			choice := candidates[k]
			if !adj[i][choice] {
				adj[i][choice] = true
				adj[choice][i] = true
				degree[i]++
				degree[choice]++
				need--
			}
			candidates[k] = candidates[len(candidates)-1]
			candidates = candidates[:len(candidates)-1]
		}

		kept := open[:0]
		for _, g := range open {
			if degree[g] < minDegree {
				kept = append(kept, g)
			}
		}
		open = kept
	}
	return adj
}

// isConnected runs a depth first search from node 0.
func isConnected(adj [][]bool) bool {
	if len(adj) == 0 {
		return false
	}
	visited := make([]bool, len(adj))
	stack := []int{0}
	visited[0] = true
	seen := 1
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next, connected := range adj[node] {
			if connected && !visited[next] {
				visited[next] = true
				seen++
				stack = append(stack, next)
			}
		}
	}
	return seen == len(adj)
}

func (t *Topology) Len() int {
	return len(t.adj)
}

func (t *Topology) MinDegree() int {
	return t.minDegree
}

// Neighbors returns the peers directly connected to i.
func (t *Topology) Neighbors(i int) []int {
	return t.neighbors[i]
}

func (t *Topology) Connected(i, j int) bool {
	return t.adj[i][j]
}

// Adjacency returns a copy of the adjacency matrix.
func (t *Topology) Adjacency() [][]bool {
	cpy := make([][]bool, len(t.adj))
	for i, row := range t.adj {
		cpy[i] = append([]bool(nil), row...)
	}
	return cpy
}
