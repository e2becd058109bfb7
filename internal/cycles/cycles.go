// Package cycles is the Cycle Detector (§4.6): it runs Tarjan's strongly
// connected components algorithm over the dependency graph and reports
// every component big enough to represent a real cycle.
package cycles

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/crateweave/depgraph/internal/model"
)

// gonumGraph mirrors the mapping panbanda's dependency analyzer builds
// around gonum's int64-keyed simple.DirectedGraph: gonum has no notion of
// our string node ids, so every conversion needs a two-way lookup table.
type gonumGraph struct {
	directed   *simple.DirectedGraph
	idToNodeID map[int64]string
}

func toGonumGraph(g *model.Graph) *gonumGraph {
	gg := &gonumGraph{
		directed:   simple.NewDirectedGraph(),
		idToNodeID: make(map[int64]string, len(g.Nodes)),
	}

	nodeIDToID := make(map[string]int64, len(g.Nodes))
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic gonum numbering across runs on the same graph

	for i, id := range ids {
		gid := int64(i)
		nodeIDToID[id] = gid
		gg.idToNodeID[gid] = id
		gg.directed.AddNode(simple.Node(gid))
	}

	for _, edge := range g.Edges {
		from, fromOK := nodeIDToID[edge.From]
		to, toOK := nodeIDToID[edge.To]
		// model.Graph.AddEdge already refuses self-loops (from == to), so
		// every edge reaching here connects two distinct nodes and gonum's
		// simple graph, which cannot represent self-loops, never needs one.
		if fromOK && toOK {
			gg.directed.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
		}
	}
	return gg
}

// Detect runs Tarjan's SCC over g and returns every component with two or
// more nodes, each carrying the edge subset that lies entirely within it
// (§4.6). Cycles are numbered and sorted by descending size, ties broken
// by the lexicographically smallest member node id.
func Detect(g *model.Graph) []model.Cycle {
	if len(g.Nodes) == 0 {
		return nil
	}

	gg := toGonumGraph(g)
	sccs := topo.TarjanSCC(gg.directed)

	var cycles []model.Cycle
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		nodes := make([]string, 0, len(scc))
		for _, n := range scc {
			nodes = append(nodes, gg.idToNodeID[n.ID()])
		}
		sort.Strings(nodes)
		cycles = append(cycles, model.Cycle{
			Nodes: nodes,
			Edges: edgesWithin(g, nodes),
		})
	}

	sortCyclesBySize(cycles)
	for i := range cycles {
		cycles[i].Index = i
	}
	return cycles
}

func edgesWithin(g *model.Graph, nodes []string) []*model.Edge {
	member := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		member[n] = struct{}{}
	}
	var edges []*model.Edge
	for _, e := range g.Edges {
		_, fromIn := member[e.From]
		_, toIn := member[e.To]
		if fromIn && toIn {
			edges = append(edges, e)
		}
	}
	return edges
}

// sortCyclesBySize orders larger cycles first, breaking ties on the
// lexicographically smallest member node id for determinism.
func sortCyclesBySize(cycles []model.Cycle) {
	sort.Slice(cycles, func(i, j int) bool {
		if len(cycles[i].Nodes) != len(cycles[j].Nodes) {
			return len(cycles[i].Nodes) > len(cycles[j].Nodes)
		}
		return cycles[i].Nodes[0] < cycles[j].Nodes[0]
	})
}

// NodesInCycles returns the set of every node id that participates in at
// least one reported cycle.
func NodesInCycles(cycles []model.Cycle) map[string]struct{} {
	set := make(map[string]struct{})
	for _, c := range cycles {
		for _, n := range c.Nodes {
			set[n] = struct{}{}
		}
	}
	return set
}

// CycleForNode returns the index of the cycle containing id, if any.
func CycleForNode(cycles []model.Cycle, id string) (int, bool) {
	for _, c := range cycles {
		for _, n := range c.Nodes {
			if n == id {
				return c.Index, true
			}
		}
	}
	return 0, false
}

// DetectModuleLevel aggregates the graph to module granularity (every
// struct/enum/trait/function/impl-method collapses into its enclosing
// module) and re-runs detection, surfacing cycles that only appear once
// individual-item edges are folded together (§4.6 "module-level cycles").
func DetectModuleLevel(g *model.Graph) []model.Cycle {
	moduleGraph := model.NewGraph()
	for _, n := range g.Nodes {
		if n.Kind == model.KindModule {
			moduleGraph.Nodes[n.ID] = &model.GraphNode{ID: n.ID, ShortName: n.ShortName, Path: n.Path, Kind: model.KindModule}
		}
	}
	for _, e := range g.Edges {
		fromMod := nearestModule(g, e.From)
		toMod := nearestModule(g, e.To)
		if fromMod == "" || toMod == "" || fromMod == toMod {
			continue
		}
		for _, loc := range e.Locations {
			moduleGraph.AddEdge(fromMod, toMod, e.Kind, loc)
		}
	}
	return Detect(moduleGraph)
}

func nearestModule(g *model.Graph, id string) string {
	for cur := id; cur != ""; {
		node, ok := g.Nodes[cur]
		if !ok {
			return ""
		}
		if node.Kind == model.KindModule {
			return node.ID
		}
		cur = node.ParentID
	}
	return ""
}
