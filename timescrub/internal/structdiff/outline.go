package structdiff

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is one element of the outline.
type Node struct {
	Depth int    `json:"depth"`
	Tag   string `json:"tag"`
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
}

func (n Node) String() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", n.Depth))
	b.WriteString(n.Tag)
	if n.ID != "" {
		b.WriteString("#" + n.ID)
	}
	for _, c := range strings.Fields(n.Class) {
		b.WriteString("." + c)
	}
	return b.String()
}

// outline walks the element tree of raw markup. Text, comments and the
// content of script/style are skipped. At most limit nodes are returned;
// census counts every element regardless.
func outline(raw []byte, limit int) ([]Node, map[string]int, error) {
	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, err
	}
	var nodes []Node
	census := make(map[string]int)

	var walk func(n *html.Node, depth int)
	walk = func(n *html.Node, depth int) {
		if n.Type == html.ElementNode {
			census[n.Data]++
			if len(nodes) < limit {
				nodes = append(nodes, Node{Depth: depth, Tag: n.Data, ID: attr(n, "id"), Class: attr(n, "class")})
			}
			if n.DataAtom == atom.Script || n.DataAtom == atom.Style {
				return
			}
			depth++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, depth)
		}
	}
	walk(doc, 0)
	return nodes, census, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// TagDelta is the change in element count for one tag between From and To.
type TagDelta struct {
	Tag   string `json:"tag"`
	From  int    `json:"from"`
	To    int    `json:"to"`
	Delta int    `json:"delta"`
}

// censusDelta lists tags whose count differs, largest change first.
func censusDelta(from, to map[string]int) []TagDelta {
	var out []TagDelta
	seen := make(map[string]bool, len(from)+len(to))
	for _, m := range []map[string]int{from, to} {
		for tag := range m {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			if d := to[tag] - from[tag]; d != 0 {
				out = append(out, TagDelta{Tag: tag, From: from[tag], To: to[tag], Delta: d})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Delta), abs(out[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
