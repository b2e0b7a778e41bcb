package xmltree

import (
	"strings"
	"unicode"

	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/errors"
)

const defaultIndent = 2

// Document is a mutable XML element tree owned by a single migration call.
type Document struct {
	doc *etree.Document
}

// WriteOptions controls serialization.
type WriteOptions struct {
	// Indent is the number of spaces per nesting level (0 uses the default of 2).
	Indent int
	// Compact strips indentation whitespace instead of re-indenting.
	Compact bool
}

// Parse builds a Document from raw XML text.
func Parse(raw string) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return nil, errors.Wrap(errors.ErrXMLParse, err, "parse document")
	}

	roots := 0
	for _, tok := range doc.Child {
		switch t := tok.(type) {
		case *etree.Element:
			roots++
		case *etree.CharData:
			if !isIgnorableOutsideRoot(t.Data) {
				return nil, errors.New(errors.ErrXMLParse, "unexpected character data outside root element")
			}
		}
	}
	switch {
	case roots == 0:
		return nil, errors.New(errors.ErrXMLParse, "document has no root element")
	case roots > 1:
		return nil, errors.Newf(errors.ErrXMLParse, "document has %d root elements, want 1", roots)
	}
	return &Document{doc: doc}, nil
}

// ParseFragment parses a single-rooted XML fragment and returns its detached root element.
func ParseFragment(raw string) (*etree.Element, error) {
	d, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return d.Root().Copy(), nil
}

// Root returns the document element, or nil for a nil document.
func (d *Document) Root() *etree.Element {
	if d == nil || d.doc == nil {
		return nil
	}
	return d.doc.Root()
}

// String serializes the document. Identical trees always render identical text.
func (d *Document) String(opts WriteOptions) (string, error) {
	if d == nil || d.doc == nil {
		return "", errors.New(errors.ErrXMLWrite, "nil document")
	}
	indent := opts.Indent
	if indent <= 0 {
		indent = defaultIndent
	}
	var pad string
	if !opts.Compact {
		pad = strings.Repeat(" ", indent)
	}
	layoutDocument(d.doc, pad, opts.Compact)

	out, err := d.doc.WriteToString()
	if err != nil {
		return "", errors.Wrap(errors.ErrXMLWrite, err, "serialize document")
	}
	return out, nil
}

func layoutDocument(doc *etree.Document, pad string, compact bool) {
	tokens := detachMarkup(&doc.Element)
	for i, tok := range tokens {
		if i > 0 && !compact {
			doc.CreateText("\n")
		}
		doc.AddChild(tok)
	}
	if root := doc.Root(); root != nil {
		layoutElement(root, 1, pad, compact)
	}
}

// layoutElement rewrites indentation whitespace below e. Elements without
// element children keep their text tokens untouched, so an explicit empty
// text stays distinguishable from no text.
func layoutElement(e *etree.Element, depth int, pad string, compact bool) {
	if len(e.ChildElements()) == 0 {
		return
	}
	tokens := detachMarkup(e)
	for _, tok := range tokens {
		if !compact {
			e.CreateText("\n" + strings.Repeat(pad, depth))
		}
		e.AddChild(tok)
		if child, ok := tok.(*etree.Element); ok {
			layoutElement(child, depth+1, pad, compact)
		}
	}
	if !compact {
		e.CreateText("\n" + strings.Repeat(pad, depth-1))
	}
}

// detachMarkup removes every child token of e and returns the ones that are
// not whitespace-only character data.
func detachMarkup(e *etree.Element) []etree.Token {
	kept := make([]etree.Token, 0, len(e.Child))
	for len(e.Child) > 0 {
		tok := e.RemoveChildAt(0)
		if cd, ok := tok.(*etree.CharData); ok && isIgnorableOutsideRoot(cd.Data) {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func isIgnorableOutsideRoot(data string) bool {
	for _, r := range data {
		if r == '\uFEFF' {
			continue
		}
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
