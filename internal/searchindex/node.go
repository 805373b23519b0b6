package searchindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf8"
)

// Posting is the per-document payload stored at a term's node.
type Posting struct {
	TF float64 `json:"tf"`
}

// Node is one character step in a field's term trie. Every node carries a
// document frequency and a posting map; only nodes that end an indexed term
// have DF > 0.
type Node struct {
	DF       int
	Docs     map[string]Posting
	children map[rune]*Node
	keys     []rune
}

// Child returns the node reached from n by r, or nil.
func (n *Node) Child(r rune) *Node {
	if n == nil {
		return nil
	}
	return n.children[r]
}

// Lookup walks token from n and returns the node it ends on, or nil when
// no path exists. An empty token never matches.
func (n *Node) Lookup(token string) *Node {
	if n == nil || token == "" {
		return nil
	}
	node := n
	for _, r := range token {
		node = node.children[r]
		if node == nil {
			return nil
		}
	}
	return node
}

// Expand returns every indexed term that has token as a prefix, token
// itself included when it is a term. Terms come out in depth-first rune
// order.
func (n *Node) Expand(token string) []string {
	start := n.Lookup(token)
	if start == nil {
		return nil
	}
	var terms []string
	start.walk(token, func(term string, _ *Node) bool {
		terms = append(terms, term)
		return true
	})
	return terms
}

// DocFreq returns the document frequency of token, 0 when absent.
func (n *Node) DocFreq(token string) int {
	if node := n.Lookup(token); node != nil {
		return node.DF
	}
	return 0
}

// DocsFor returns the posting map of token. The map is shared with the index
// and must not be modified.
func (n *Node) DocsFor(token string) map[string]Posting {
	if node := n.Lookup(token); node != nil {
		return node.Docs
	}
	return nil
}

// TermFrequency returns the tf of token in the document ref, 0 when absent.
func (n *Node) TermFrequency(token, ref string) float64 {
	if node := n.Lookup(token); node != nil {
		return node.Docs[ref].TF
	}
	return 0
}

// walk visits n and its descendants depth-first, calling fn for every node
// ending a term. Returning false from fn stops the walk.
func (n *Node) walk(prefix string, fn func(term string, node *Node) bool) bool {
	if n.DF > 0 {
		if !fn(prefix, n) {
			return false
		}
	}
	for _, r := range n.keys {
		if !n.children[r].walk(prefix+string(r), fn) {
			return false
		}
	}
	return true
}

// UnmarshalJSON decodes a serialized trie in a single streaming pass.
func (n *Node) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	decoded, err := decodeNode(dec, 0)
	if err != nil {
		return err
	}
	*n = *decoded
	return nil
}

// maxDepth bounds recursion on hostile input; real terms are far shorter.
const maxDepth = 512

func decodeNode(dec *json.Decoder, depth int) (*Node, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("trie deeper than %d levels", maxDepth)
	}
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	node := &Node{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading node key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected node key %v", tok)
		}
		switch key {
		case "df":
			if err := dec.Decode(&node.DF); err != nil {
				return nil, fmt.Errorf("decoding df: %w", err)
			}
		case "docs":
			var docs map[string]Posting
			if err := dec.Decode(&docs); err != nil {
				return nil, fmt.Errorf("decoding docs: %w", err)
			}
			if len(docs) > 0 {
				node.Docs = docs
			}
		default:
			r, size := utf8.DecodeRuneInString(key)
			if size != len(key) || r == utf8.RuneError {
				return nil, fmt.Errorf("trie edge %q is not a single character", key)
			}
			child, err := decodeNode(dec, depth+1)
			if err != nil {
				return nil, fmt.Errorf("under %q: %w", key, err)
			}
			if node.children == nil {
				node.children = make(map[rune]*Node)
			}
			if _, dup := node.children[r]; !dup {
				node.keys = append(node.keys, r)
			}
			node.children[r] = child
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	sort.Slice(node.keys, func(i, j int) bool { return node.keys[i] < node.keys[j] })
	return node, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading trie: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q in trie, got %v", want, tok)
	}
	return nil
}
