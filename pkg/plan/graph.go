// Copyright 2026 © The PIPO Agent Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"fmt"
	"sort"
	"strings"
)

// Dependencies returns, for each step index, the indices of the earlier
// steps whose outputs it consumes through InputMapping. Mappings that
// reference no earlier OutputKey are ignored; the validator reports those.
func Dependencies(p *Plan) map[int][]int {
	deps := make(map[int][]int, len(p.Steps))
	producers := make(map[string]int)
	for i, step := range p.Steps {
		seen := make(map[int]bool)
		for _, key := range step.InputMapping {
			if src, ok := producers[key]; ok && !seen[src] {
				seen[src] = true
				deps[i] = append(deps[i], src)
			}
		}
		sort.Ints(deps[i])
		if step.OutputKey != "" {
			producers[step.OutputKey] = i
		}
	}
	return deps
}

// DOT renders the plan's data flow in Graphviz dot format. Each step is a
// node; an edge from step A to step B is labeled with the output key B
// reads from A. Steps with no data dependency on their predecessor get a
// dashed order edge so the sequence stays visible.
func DOT(p *Plan) string {
	var b strings.Builder
	b.WriteString("digraph plan {\n")
	b.WriteString("  rankdir=TB;\n")
	b.WriteString("  node [shape=box, style=rounded];\n")
	if p.Goal != "" {
		fmt.Fprintf(&b, "  label=%q;\n", p.Goal)
		b.WriteString("  labelloc=t;\n")
	}

	for i, step := range p.Steps {
		label := fmt.Sprintf("%d. %s", i+1, step.Action)
		if step.OutputKey != "" {
			label += fmt.Sprintf("\\n→ %s", step.OutputKey)
		}
		fmt.Fprintf(&b, "  s%d [label=\"%s\"];\n", i, label)
	}

	deps := Dependencies(p)
	producers := make(map[string]int)
	for i, step := range p.Steps {
		for _, param := range sortedKeys(step.InputMapping) {
			key := step.InputMapping[param]
			if src, ok := producers[key]; ok {
				fmt.Fprintf(&b, "  s%d -> s%d [label=%q];\n", src, i, key)
			}
		}
		if step.OutputKey != "" {
			producers[step.OutputKey] = i
		}
	}

	// Order edges for steps that do not already depend on their predecessor.
	for i := 1; i < len(p.Steps); i++ {
		if !containsInt(deps[i], i-1) {
			fmt.Fprintf(&b, "  s%d -> s%d [style=dashed, color=gray];\n", i-1, i)
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// Mermaid renders the plan's data flow as a Mermaid flowchart.
func Mermaid(p *Plan) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for i, step := range p.Steps {
		label := fmt.Sprintf("%d. %s", i+1, step.Action)
		fmt.Fprintf(&b, "    s%d[\"%s\"]\n", i, label)
	}

	deps := Dependencies(p)
	producers := make(map[string]int)
	for i, step := range p.Steps {
		for _, param := range sortedKeys(step.InputMapping) {
			key := step.InputMapping[param]
			if src, ok := producers[key]; ok {
				fmt.Fprintf(&b, "    s%d -->|%s| s%d\n", src, key, i)
			}
		}
		if step.OutputKey != "" {
			producers[step.OutputKey] = i
		}
	}

	for i := 1; i < len(p.Steps); i++ {
		if !containsInt(deps[i], i-1) {
			fmt.Fprintf(&b, "    s%d -.-> s%d\n", i-1, i)
		}
	}

	return b.String()
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
