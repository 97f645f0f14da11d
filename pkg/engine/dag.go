package engine

import (
	"fmt"
	"sort"
	"strings"
)

// StageGraph is the dependency graph of generator stages. Stages on the same
// level have no dependency on each other and may run concurrently.
type StageGraph struct {
	// stages maps stage names to their declarations
	stages map[string]Stage

	// dependents maps a stage to the stages that require it
	dependents map[string][]string

	// requires maps a stage to its declared inputs
	requires map[string][]string

	// inDegree tracks the number of unmet requirements for each stage
	inDegree map[string]int

	// levels holds stage names per execution level, sorted by name
	levels [][]string
}

// BuildStageGraph validates stage declarations, detects cycles, and computes
// execution levels.
func BuildStageGraph(stages []Stage) (*StageGraph, error) {
	g := &StageGraph{
		stages:     make(map[string]Stage),
		dependents: make(map[string][]string),
		requires:   make(map[string][]string),
		inDegree:   make(map[string]int),
	}

	if err := g.initialize(stages); err != nil {
		return nil, err
	}
	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	if err := g.computeLevels(); err != nil {
		return nil, err
	}
	return g, nil
}

// initialize indexes stages and builds adjacency lists.
func (g *StageGraph) initialize(stages []Stage) error {
	for _, s := range stages {
		name := s.Name()
		if name == "" {
			return NewConfigurationError("pipeline stage has empty name")
		}
		if _, exists := g.stages[name]; exists {
			return NewConfigurationError(fmt.Sprintf("duplicate pipeline stage: %s", name))
		}
		g.stages[name] = s
		g.inDegree[name] = 0
	}

	for name, s := range g.stages {
		for _, dep := range s.Requires() {
			if _, exists := g.stages[dep]; !exists {
				return NewConfigurationError(
					fmt.Sprintf("pipeline stage %s requires unknown stage %s", name, dep))
			}
			g.dependents[dep] = append(g.dependents[dep], name)
			g.requires[name] = append(g.requires[name], dep)
			g.inDegree[name]++
		}
	}

	for name := range g.dependents {
		sort.Strings(g.dependents[name])
	}
	return nil
}

// detectCycles uses depth-first search to find circular requirements.
func (g *StageGraph) detectCycles() error {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(name string, path []string) []string
	visit = func(name string, path []string) []string {
		visited[name] = true
		onStack[name] = true
		path = append(path, name)

		for _, next := range g.dependents[name] {
			if !visited[next] {
				if cycle := visit(next, path); cycle != nil {
					return cycle
				}
			} else if onStack[next] {
				for i, id := range path {
					if id == next {
						return append(append([]string{}, path[i:]...), next)
					}
				}
			}
		}

		onStack[name] = false
		return nil
	}

	for _, name := range g.sortedNames() {
		if !visited[name] {
			if cycle := visit(name, nil); cycle != nil {
				return NewConfigurationError(
					fmt.Sprintf("circular stage dependency detected: %s", strings.Join(cycle, " -> ")))
			}
		}
	}
	return nil
}

// computeLevels assigns each stage to a level using Kahn's algorithm.
func (g *StageGraph) computeLevels() error {
	inDegree := make(map[string]int, len(g.inDegree))
	for name, d := range g.inDegree {
		inDegree[name] = d
	}

	current := make([]string, 0)
	for _, name := range g.sortedNames() {
		if inDegree[name] == 0 {
			current = append(current, name)
		}
	}

	processed := 0
	for len(current) > 0 {
		g.levels = append(g.levels, current)
		processed += len(current)

		next := make([]string, 0)
		for _, name := range current {
			for _, dep := range g.dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	if processed != len(g.stages) {
		return NewPermanentError("failed to order all pipeline stages", nil)
	}
	return nil
}

func (g *StageGraph) sortedNames() []string {
	names := make([]string, 0, len(g.stages))
	for name := range g.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Levels returns stage names grouped by execution level.
func (g *StageGraph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, l := range g.levels {
		out[i] = append([]string(nil), l...)
	}
	return out
}

// Order returns every stage name in execution order.
func (g *StageGraph) Order() []string {
	out := make([]string, 0, len(g.stages))
	for _, l := range g.levels {
		out = append(out, l...)
	}
	return out
}

// Ancestors returns every stage that name transitively requires.
func (g *StageGraph) Ancestors(name string) []string {
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(n string) {
		for _, dep := range g.requires[n] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ToDOT renders the graph in Graphviz DOT format.
func (g *StageGraph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Pipeline {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, names := range g.levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")
		for _, name := range names {
			sb.WriteString(fmt.Sprintf("    %q;\n", name))
		}
		sb.WriteString("  }\n\n")
	}

	for _, name := range g.Order() {
		deps := append([]string(nil), g.requires[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			sb.WriteString(fmt.Sprintf("  %q -> %q;\n", dep, name))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}
