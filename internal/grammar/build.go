// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package grammar

import (
	"iter"

	"github.com/tads3/govm/internal/scc"
)

// firstTokenProductions returns every production name referenced by the
// first token of any alternative of name (regardless of whether that
// token is starred), which is the edge set that matters for left
// recursion: a reference anywhere else in an alternative always consumes
// at least one word first and so cannot loop without making progress.
func (g *Grammar) firstTokenProductions(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		prod, ok := g.productions[name]
		if !ok {
			return
		}
		for _, alt := range prod.Alternatives {
			if len(alt.Tokens) == 0 {
				continue
			}
			first := alt.Tokens[0]
			if first.Kind == TokProduction {
				if !yield(first.Production) {
					return
				}
			}
		}
	}
}

// computeCircular finds every production participating in a nontrivial
// strongly-connected component (mutual left recursion) or a direct
// self-loop (immediate left recursion) of the first-token dependency
// graph, using Tarjan's algorithm.
func computeCircular(g *Grammar) map[string]bool {
	circular := make(map[string]bool)
	visited := make(map[string]bool)

	for _, name := range g.order {
		if visited[name] {
			continue
		}
		dag := scc.Sort(name, g.firstTokenProductions)
		for comp := range dag.Topological() {
			members := comp.Members()
			for _, m := range members {
				visited[m] = true
			}
			if len(members) > 1 {
				for _, m := range members {
					circular[m] = true
				}
				continue
			}
			// A single-member component is circular only if it has a
			// direct self-loop.
			only := members[0]
			for dep := range g.firstTokenProductions(only) {
				if dep == only {
					circular[only] = true
					break
				}
			}
		}
	}
	return circular
}
