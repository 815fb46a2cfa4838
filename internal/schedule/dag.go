package schedule

import (
	"fmt"
	"strings"

	"github.com/msageha/challenge_editor/internal/model"
)

// predecessorEdges maps each phase ID to the predecessor it waits on.
// Unknown predecessors and self references are dropped; they are reported
// separately.
func predecessorEdges(phases []model.Phase) ([]string, map[string][]string) {
	names := make([]string, 0, len(phases))
	known := make(map[string]bool, len(phases))
	for _, p := range phases {
		if known[p.PhaseID] {
			continue
		}
		known[p.PhaseID] = true
		names = append(names, p.PhaseID)
	}
	edges := make(map[string][]string)
	for _, p := range phases {
		if p.Predecessor != "" && p.Predecessor != p.PhaseID && known[p.Predecessor] {
			edges[p.PhaseID] = append(edges[p.PhaseID], p.Predecessor)
		}
	}
	return names, edges
}

// OrderByPredecessors returns phases reordered so that every known
// predecessor comes before the phases that reference it. Phases without
// ordering constraints keep their relative input order. A predecessor cycle
// is returned as an error and phases are left as given.
func OrderByPredecessors(phases []model.Phase) ([]model.Phase, error) {
	names, edges := predecessorEdges(phases)
	sorted, err := sortDAG(names, edges)
	if err != nil {
		return model.ClonePhases(phases), err
	}
	byID := make(map[string][]model.Phase, len(phases))
	for _, p := range phases {
		byID[p.PhaseID] = append(byID[p.PhaseID], p)
	}
	out := make([]model.Phase, 0, len(phases))
	for _, id := range sorted {
		out = append(out, byID[id]...)
	}
	return out, nil
}

// sortDAG uses Kahn's algorithm, always releasing the lowest-index ready
// node so the result is stable with respect to input order.
// On cycle detection, uses DFS to find and report the cycle path.
func sortDAG(nodeNames []string, edges map[string][]string) ([]string, error) {
	if len(nodeNames) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(nodeNames))
	for i, n := range nodeNames {
		index[n] = i
	}

	// in-degree and forward adjacency (dependency → dependent)
	inDegree := make(map[string]int, len(nodeNames))
	forward := make(map[string][]string)
	for _, node := range nodeNames {
		for _, dep := range edges[node] {
			if _, ok := index[dep]; !ok {
				continue
			}
			inDegree[node]++
			forward[dep] = append(forward[dep], node)
		}
	}

	ready := make([]bool, len(nodeNames))
	for i, n := range nodeNames {
		if inDegree[n] == 0 {
			ready[i] = true
		}
	}

	sorted := make([]string, 0, len(nodeNames))
	for {
		next := -1
		for i, r := range ready {
			if r {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		ready[next] = false
		node := nodeNames[next]
		sorted = append(sorted, node)

		for _, dependent := range forward[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready[index[dependent]] = true
			}
		}
	}

	if len(sorted) == len(nodeNames) {
		return sorted, nil
	}

	cyclePath := findCyclePath(nodeNames, edges, inDegree)
	return nil, fmt.Errorf("predecessor cycle detected: %s", strings.Join(cyclePath, " -> "))
}

// findCyclePath finds a cycle path among nodes with non-zero in-degree.
func findCyclePath(nodeNames []string, edges map[string][]string, inDegree map[string]int) []string {
	const (
		white = 0 // unvisited
		gray  = 1 // in current path
		black = 2 // finished
	)

	color := make(map[string]int)
	parent := make(map[string]string)

	var cyclePath []string

	var dfs func(node string) bool
	dfs = func(node string) bool {
		color[node] = gray
		for _, dep := range edges[node] {
			if color[dep] == gray {
				cyclePath = []string{dep}
				current := node
				for current != dep {
					cyclePath = append(cyclePath, current)
					current = parent[current]
				}
				cyclePath = append(cyclePath, dep)
				for i, j := 0, len(cyclePath)-1; i < j; i, j = i+1, j-1 {
					cyclePath[i], cyclePath[j] = cyclePath[j], cyclePath[i]
				}
				return true
			}
			if color[dep] == white {
				parent[dep] = node
				if dfs(dep) {
					return true
				}
			}
		}
		color[node] = black
		return false
	}

	for _, n := range nodeNames {
		if inDegree[n] > 0 && color[n] == white {
			if dfs(n) {
				return cyclePath
			}
		}
	}

	return []string{"(cycle detected)"}
}
