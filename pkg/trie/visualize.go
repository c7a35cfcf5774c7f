package trie

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Visualize renders the trie as nested brackets, one line per node.
//
//	[
//	  [r
//	    [ra
//	      ...
//	        >rainbow(5)
//	    ]
//	  ]
//	]
//
// Branches open with "[" followed by their accumulated prefix, words are
// marked with ">" and their frequency. An empty trie renders as "[]".
func (t *Trie) Visualize() string {
	var sb strings.Builder
	_ = t.WriteVisualization(&sb)
	return sb.String()
}

// WriteVisualization writes the Visualize rendering to w.
func (t *Trie) WriteVisualization(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bw := bufio.NewWriter(w)
	if len(t.root.children) == 0 {
		fmt.Fprintln(bw, "[]")
		return bw.Flush()
	}

	fmt.Fprintln(bw, "[")
	var prefix []rune
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		indent := strings.Repeat("  ", depth)
		word := string(prefix)
		if len(n.children) == 0 {
			fmt.Fprintf(bw, "%s>%s(%d)\n", indent, word, n.frequency)
			return
		}
		fmt.Fprintf(bw, "%s[%s\n", indent, word)
		if n.terminal {
			fmt.Fprintf(bw, "%s  >%s(%d)\n", indent, word, n.frequency)
		}
		for _, r := range n.Keys() {
			prefix = append(prefix, r)
			walk(n.children[r], depth+1)
			prefix = prefix[:len(prefix)-1]
		}
		fmt.Fprintf(bw, "%s]\n", indent)
	}
	for _, r := range t.root.Keys() {
		prefix = append(prefix[:0], r)
		walk(t.root.children[r], 1)
	}
	fmt.Fprintln(bw, "]")
	return bw.Flush()
}
