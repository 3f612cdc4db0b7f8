package engine

import (
	"fmt"
	"strings"

	"github.com/deplist/deplist/pkg/depspec"
)

// GraphNode is one merge list entry in a MergeGraph.
type GraphNode struct {
	// Index is the entry's position in the merge list.
	Index int `json:"index"`

	// Entry is a copy of the merge list entry.
	Entry Entry `json:"entry"`

	// Dependencies are the indexes of entries this entry depends on.
	Dependencies []int `json:"dependencies"`

	// Dependents are the indexes of entries depending on this entry.
	Dependents []int `json:"dependents"`
}

// GraphEdge is a dependency from one entry on another.
type GraphEdge struct {
	// From is the index of the dependency.
	From int `json:"from"`

	// To is the index of the dependent entry.
	To int `json:"to"`

	// Role is the dependency variable the edge came from.
	Role DependencyRole `json:"role"`
}

// MergeGraph is the dependency graph between the entries of a merge list.
// Edges point from a dependency to its dependent, so a valid merge order
// never places the target of a DEPEND edge before its source.
type MergeGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Graph builds the dependency graph of the current merge list. Every atom
// of every entry's DEPEND, RDEPEND and PDEPEND that matches an entry becomes
// an edge. Conditionals are evaluated in the entry's USE context. Of a
// || ( ) group only the first option the merge list satisfies contributes
// edges, the same option a check-only pass would settle on.
func (d *DepList) Graph() (*MergeGraph, error) {
	b := newGraphBuilder(d.Entries())
	for i := range b.entries {
		e := &b.entries[i]
		if e.Synthetic || e.Metadata == nil {
			continue
		}
		for _, role := range []DependencyRole{RoleDepend, RoleRDepend, RolePDepend} {
			tree, err := d.parser.Parse(e.Metadata.Text(role), depspec.DependClass)
			if err != nil {
				return nil, fmt.Errorf("failed to parse %s of %s: %w", role, e, err)
			}
			b.addEdges(i, role, tree, d.useFunc(e))
		}
	}
	return b.build(), nil
}

type edgeKey struct {
	from, to int
	role     DependencyRole
}

// graphBuilder accumulates edges between merge list indexes.
type graphBuilder struct {
	entries []Entry

	// adjacencyList maps an index to its dependents
	adjacencyList map[int][]int

	// reverseAdjacencyList maps an index to its dependencies
	reverseAdjacencyList map[int][]int

	edges []GraphEdge
	seen  map[edgeKey]bool
}

func newGraphBuilder(entries []Entry) *graphBuilder {
	return &graphBuilder{
		entries:              entries,
		adjacencyList:        make(map[int][]int),
		reverseAdjacencyList: make(map[int][]int),
		seen:                 make(map[edgeKey]bool),
	}
}

func (b *graphBuilder) addEdges(to int, role DependencyRole, spec depspec.Spec, use depspec.UseFunc) {
	depspec.Walk(spec, func(s depspec.Spec) bool {
		switch n := s.(type) {
		case *depspec.Conditional:
			return use(n.Flag) != n.Inverse
		case *depspec.BlockAtom:
			return false
		case *depspec.AnyOf:
			if chosen := b.chosenOption(n, use); chosen != nil {
				b.addEdges(to, role, chosen, use)
			}
			return false
		case *depspec.PackageAtom:
			for from := range b.entries {
				if from != to && b.entries[from].Matches(n) {
					b.addEdge(from, to, role)
					break
				}
			}
		}
		return true
	})
}

// chosenOption returns the first applicable option of a that the merge
// list satisfies, or nil.
func (b *graphBuilder) chosenOption(a *depspec.AnyOf, use depspec.UseFunc) depspec.Spec {
	for _, c := range a.Children {
		if cond, ok := c.(*depspec.Conditional); ok && use(cond.Flag) == cond.Inverse {
			continue
		}
		if b.satisfied(c, use) {
			return c
		}
	}
	return nil
}

func (b *graphBuilder) satisfied(spec depspec.Spec, use depspec.UseFunc) bool {
	switch n := spec.(type) {
	case *depspec.PackageAtom:
		for i := range b.entries {
			if b.entries[i].Matches(n) {
				return true
			}
		}
		return false
	case *depspec.AnyOf:
		return b.chosenOption(n, use) != nil
	case *depspec.Conditional:
		if use(n.Flag) == n.Inverse {
			return true
		}
		return b.allSatisfied(n.Children, use)
	case *depspec.AllOf:
		return b.allSatisfied(n.Children, use)
	default:
		return true
	}
}

func (b *graphBuilder) allSatisfied(children []depspec.Spec, use depspec.UseFunc) bool {
	for _, c := range children {
		if !b.satisfied(c, use) {
			return false
		}
	}
	return true
}

func (b *graphBuilder) addEdge(from, to int, role DependencyRole) {
	key := edgeKey{from, to, role}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.edges = append(b.edges, GraphEdge{From: from, To: to, Role: role})
	b.adjacencyList[from] = append(b.adjacencyList[from], to)
	b.reverseAdjacencyList[to] = append(b.reverseAdjacencyList[to], from)
}

func (b *graphBuilder) build() *MergeGraph {
	g := &MergeGraph{
		Nodes: make([]GraphNode, len(b.entries)),
		Edges: b.edges,
	}
	for i, e := range b.entries {
		g.Nodes[i] = GraphNode{
			Index:        i,
			Entry:        e,
			Dependencies: b.reverseAdjacencyList[i],
			Dependents:   b.adjacencyList[i],
		}
	}
	return g
}

// VerifyOrder checks that every DEPEND edge points forward in merge order.
// A cycle suppressed during resolution shows up here as a backward edge.
func (g *MergeGraph) VerifyOrder() error {
	var bad []string
	for _, e := range g.Edges {
		if e.Role == RoleDepend && e.From > e.To {
			bad = append(bad, fmt.Sprintf("%s DEPENDs on later %s",
				g.Nodes[e.To].Entry, g.Nodes[e.From].Entry))
		}
	}
	if len(bad) > 0 {
		return NewInternalError("merge order violates DEPEND: "+strings.Join(bad, "; "), nil)
	}
	return nil
}

// Cycles returns the DEPEND cycles in the graph, each as a path of merge
// list indexes starting and ending at the same entry.
func (g *MergeGraph) Cycles() [][]int {
	adjacency := make(map[int][]int)
	for _, e := range g.Edges {
		if e.Role == RoleDepend {
			adjacency[e.From] = append(adjacency[e.From], e.To)
		}
	}

	visited := make(map[int]bool)
	recStack := make(map[int]bool)
	var cycles [][]int

	var visit func(node int, path []int)
	visit = func(node int, path []int) {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, next := range adjacency[node] {
			if !visited[next] {
				visit(next, path)
			} else if recStack[next] {
				for i, id := range path {
					if id == next {
						cycle := append(append([]int(nil), path[i:]...), next)
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recStack[node] = false
	}

	for i := range g.Nodes {
		if !visited[i] {
			visit(i, nil)
		}
	}
	return cycles
}

// FormatCycle renders a cycle returned by Cycles.
func (g *MergeGraph) FormatCycle(cycle []int) string {
	names := make([]string, len(cycle))
	for i, idx := range cycle {
		names[i] = g.Nodes[idx].Entry.Name
	}
	return strings.Join(names, " -> ")
}

// ToDOT generates a DOT representation of the graph for Graphviz. Nodes are
// ranked in merge order.
func (g *MergeGraph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph MergeList {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, n := range g.Nodes {
		label := fmt.Sprintf("%d: %s-%s\\n:%s::%s", n.Index+1, n.Entry.Name, n.Entry.Version, n.Entry.Slot, n.Entry.Repository)
		sb.WriteString(fmt.Sprintf("  \"n%d\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
			n.Index, label, entryColor(n.Entry)))
	}
	sb.WriteString("\n")

	for i := 1; i < len(g.Nodes); i++ {
		sb.WriteString(fmt.Sprintf("  \"n%d\" -> \"n%d\" [style=invis];\n", i-1, i))
	}

	for _, e := range g.Edges {
		sb.WriteString(fmt.Sprintf("  \"n%d\" -> \"n%d\" [%s];\n", e.From, e.To, roleStyle(e.Role)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func entryColor(e Entry) string {
	switch {
	case e.Synthetic:
		return "lightgray"
	case !e.Complete():
		return "lightcoral"
	default:
		return "lightgreen"
	}
}

func roleStyle(role DependencyRole) string {
	switch role {
	case RoleDepend:
		return "style=solid, color=black"
	case RoleRDepend:
		return "style=dashed, color=blue"
	case RolePDepend:
		return "style=dotted, color=gray"
	default:
		return "style=solid, color=black"
	}
}
