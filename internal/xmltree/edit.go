package xmltree

import (
	"strings"

	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/errors"
)

// Append places a created child after the existing children.
const Append = -1

// Created pairs a parent with the child created under it.
type Created struct {
	Parent *etree.Element
	Node   *etree.Element
}

// CreateChild inserts a new element named tag under parent at pos, a 0-based
// index among the parent's child elements, or at the end for Append.
func CreateChild(parent *etree.Element, tag string, text Text, pos int) (*etree.Element, error) {
	if parent == nil {
		return nil, errors.Structure(tag, "create %s: nil parent", tag)
	}
	idx, ok := insertionIndex(parent, pos)
	if !ok {
		return nil, errors.Structure(JoinPath(parent.Tag, tag), "create %s at position %d: parent has %d child elements",
			tag, pos, len(parent.ChildElements()))
	}
	child := newElement(tag, text)
	parent.InsertChildAt(idx, child)
	return child, nil
}

// AppendChild creates a new element named tag as the last child of parent.
func AppendChild(parent *etree.Element, tag string, text Text) *etree.Element {
	child := newElement(tag, text)
	parent.AddChild(child)
	return child
}

// CreateNested creates an element named tag under every node reached by path
// and returns one entry per parent, in document order.
func (d *Document) CreateNested(path []string, tag string, text Text) []Created {
	parents := d.Find(path...)
	out := make([]Created, 0, len(parents))
	for _, parent := range parents {
		out = append(out, Created{Parent: parent, Node: AppendChild(parent, tag, text)})
	}
	return out
}

// Rename renames every oldTag child of every element named parentTag.
// It returns the number of renamed elements.
func (d *Document) Rename(parentTag, oldTag, newTag string) int {
	n := 0
	for _, node := range d.Find(parentTag, oldTag) {
		node.Tag = newTag
		n++
	}
	return n
}

// ReplaceText sets newText on every childTag child of an element named
// parentTag whose text equals oldText. It returns the number of changes.
func (d *Document) ReplaceText(parentTag, childTag, oldText, newText string) int {
	n := 0
	for _, node := range d.Find(parentTag, childTag) {
		if text, ok := TextValue(node); ok && text == oldText {
			node.SetText(newText)
			n++
		}
	}
	return n
}

// RemoveChildren removes every targetTag child of every element named
// ancestorTag and returns the number of removed elements.
func (d *Document) RemoveChildren(ancestorTag, targetTag string) int {
	targets := d.Find(ancestorTag, targetTag)
	for _, node := range targets {
		Remove(node)
	}
	return len(targets)
}

// SetAttribute sets or replaces the unqualified attribute name on node.
func SetAttribute(node *etree.Element, name, value string) {
	node.CreateAttr(name, value)
}

// Remove detaches node from its parent. Detached nodes are left untouched.
// A parent left without child elements also loses its indentation
// whitespace, so it serializes as an empty element.
func Remove(node *etree.Element) {
	if node == nil {
		return
	}
	parent := node.Parent()
	if parent == nil {
		return
	}
	parent.RemoveChild(node)
	if len(parent.ChildElements()) > 0 {
		return
	}
	for i := len(parent.Child) - 1; i >= 0; i-- {
		if cd, ok := parent.Child[i].(*etree.CharData); ok && cd.Data != "" && strings.TrimSpace(cd.Data) == "" {
			parent.RemoveChildAt(i)
		}
	}
}

// Replace puts replacement at the position old holds in its parent.
func Replace(old, replacement *etree.Element) error {
	if old == nil || replacement == nil {
		return errors.New(errors.ErrStructure, "replace: nil element")
	}
	parent := old.Parent()
	if parent == nil {
		return errors.Structure(old.Tag, "replace %s: element has no parent", old.Tag)
	}
	idx := old.Index()
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, replacement)
	return nil
}

// Clone returns a detached deep copy of node.
func Clone(node *etree.Element) *etree.Element {
	return node.Copy()
}

func newElement(tag string, text Text) *etree.Element {
	e := etree.NewElement(tag)
	if value, ok := text.Value(); ok {
		e.CreateText(value)
	}
	return e
}

// insertionIndex maps a position among child elements to a token index.
func insertionIndex(parent *etree.Element, pos int) (int, bool) {
	if pos == Append {
		return len(parent.Child), true
	}
	if pos < 0 {
		return 0, false
	}
	seen := 0
	for i, tok := range parent.Child {
		if _, ok := tok.(*etree.Element); !ok {
			continue
		}
		if seen == pos {
			return i, true
		}
		seen++
	}
	if seen == pos {
		return len(parent.Child), true
	}
	return 0, false
}
