package xmltree

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/errors"
)

// Group is one parent matched at the second-to-last path segment together with
// its children matching the last segment, in document order.
type Group struct {
	Parent *etree.Element
	Nodes  []*etree.Element
}

// Find returns the elements reached by path. The first segment matches any
// element of the document, the root included; every later segment selects
// direct children. Results keep document order. No match yields nil.
func (d *Document) Find(path ...string) []*etree.Element {
	root := d.Root()
	if root == nil || len(path) == 0 {
		return nil
	}
	return descend(ElementsByTag(root, path[0]), path[1:])
}

// FindFrom returns the elements reached by path below node, every segment
// selecting direct children.
func FindFrom(node *etree.Element, path ...string) []*etree.Element {
	if node == nil || len(path) == 0 {
		return nil
	}
	return descend([]*etree.Element{node}, path)
}

// FindGrouped is Find keeping the grouping by the parent matched at the
// second-to-last segment. Parents without matching children are reported
// with an empty Nodes slice. Paths shorter than two segments yield nil.
func (d *Document) FindGrouped(path ...string) []Group {
	if len(path) < 2 {
		return nil
	}
	return group(d.Find(path[:len(path)-1]...), path[len(path)-1])
}

// FindGroupedFrom is FindFrom keeping the grouping by parent. A single
// segment groups the children of node under node itself.
func FindGroupedFrom(node *etree.Element, path ...string) []Group {
	if node == nil || len(path) == 0 {
		return nil
	}
	parents := []*etree.Element{node}
	if len(path) > 1 {
		parents = FindFrom(node, path[:len(path)-1]...)
	}
	return group(parents, path[len(path)-1])
}

// ChildrenByTag returns the direct children of node named tag.
func ChildrenByTag(node *etree.Element, tag string) []*etree.Element {
	if node == nil {
		return nil
	}
	var out []*etree.Element
	for _, child := range node.ChildElements() {
		if child.Tag == tag {
			out = append(out, child)
		}
	}
	return out
}

// FirstChild returns the first direct child of node named tag, or nil.
func FirstChild(node *etree.Element, tag string) *etree.Element {
	if node == nil {
		return nil
	}
	for _, child := range node.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

// ElementsByTag returns node and its descendants named tag in document order.
func ElementsByTag(node *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	var walk func(*etree.Element)
	walk = func(e *etree.Element) {
		if e.Tag == tag {
			out = append(out, e)
		}
		for _, child := range e.ChildElements() {
			walk(child)
		}
	}
	if node != nil {
		walk(node)
	}
	return out
}

// First returns nodes[0] or a structural error naming path when nodes is empty.
// Callers use it where the source version guarantees the structure exists.
func First(nodes []*etree.Element, path ...string) (*etree.Element, error) {
	if len(nodes) == 0 {
		p := JoinPath(path...)
		return nil, errors.Structure(p, "expected at least one %s element", lastSegment(path))
	}
	return nodes[0], nil
}

// TextValue returns the text directly under node and whether node carries any
// text token. Elements with element children report no text.
func TextValue(node *etree.Element) (string, bool) {
	if node == nil {
		return "", false
	}
	var sb strings.Builder
	found := false
	for _, tok := range node.Child {
		switch t := tok.(type) {
		case *etree.Element:
			return "", false
		case *etree.CharData:
			found = true
			sb.WriteString(t.Data)
		}
	}
	return sb.String(), found
}

// Attribute returns the value of the unqualified attribute name.
func Attribute(node *etree.Element, name string) (string, bool) {
	if node == nil {
		return "", false
	}
	a := node.SelectAttr(name)
	if a == nil {
		return "", false
	}
	return a.Value, true
}

// JoinPath renders a path query for error messages.
func JoinPath(path ...string) string {
	return strings.Join(path, "/")
}

func descend(current []*etree.Element, path []string) []*etree.Element {
	for _, tag := range path {
		var next []*etree.Element
		for _, node := range current {
			next = append(next, ChildrenByTag(node, tag)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

func group(parents []*etree.Element, tag string) []Group {
	if len(parents) == 0 {
		return nil
	}
	out := make([]Group, 0, len(parents))
	for _, parent := range parents {
		out = append(out, Group{Parent: parent, Nodes: ChildrenByTag(parent, tag)})
	}
	return out
}

func lastSegment(path []string) string {
	if len(path) == 0 {
		return "matching"
	}
	return path[len(path)-1]
}
