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

package dict

// trieNode is one node of the word trie backing Dictionary.Suggest.
type trieNode struct {
	children map[rune]*trieNode
	terminal bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

func (n *trieNode) insert(word []rune, pos int) {
	if pos == len(word) {
		n.terminal = true
		return
	}
	r := word[pos]
	child, ok := n.children[r]
	if !ok {
		child = newTrieNode()
		n.children[r] = child
	}
	child.insert(word, pos+1)
}

// walk visits every node in the trie, calling visit with the accumulated
// rune path leading to it.
func (n *trieNode) walk(prefix []rune, visit func(path []rune, node *trieNode)) {
	visit(prefix, n)
	for r, child := range n.children {
		child.walk(append(append([]rune(nil), prefix...), r), visit)
	}
}
