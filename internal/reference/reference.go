// Package reference resolves positional back-references between sibling
// elements of a migrated document.
//
// A reference is a "reference" attribute holding a relative path whose
// bracketed index names the N-th (1-based) element of a known container list,
// for example "../../../../../FactMapping[2]/factIdentifier". Without a
// bracket the first container is meant.
package reference

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/xmltree"
)

// ParseIndex returns the 0-based container index named by a reference pointer.
func ParseIndex(attr string) (int, error) {
	open := strings.IndexByte(attr, '[')
	if open < 0 {
		return 0, nil
	}
	closing := strings.IndexByte(attr[open+1:], ']')
	if closing < 0 {
		return 0, nil
	}
	raw := attr[open+1 : open+1+closing]
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errors.Wrap(errors.ErrInvalidReference, err, "reference "+strconv.Quote(attr)+": index is not a number")
	}
	if n < 1 {
		return 0, errors.Newf(errors.ErrInvalidReference, "reference %q: index %d out of range", attr, n)
	}
	return n - 1, nil
}

// Snapshot is the container list captured before any reference in a pass is
// resolved. Resolutions read targets from it, never from the live tree, so
// the outcome does not depend on the order references are processed in.
type Snapshot struct {
	targets []map[string]*etree.Element
}

// NewSnapshot records, for each container, its first child named by each tag.
func NewSnapshot(containers []*etree.Element, tags ...string) *Snapshot {
	s := &Snapshot{targets: make([]map[string]*etree.Element, len(containers))}
	for i, c := range containers {
		m := make(map[string]*etree.Element, len(tags))
		for _, tag := range tags {
			if child := xmltree.FirstChild(c, tag); child != nil {
				m[tag] = xmltree.Clone(child)
			}
		}
		s.targets[i] = m
	}
	return s
}

// Len returns the number of captured containers.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.targets)
}

// Resolve replaces the first tag child of container, when it carries a
// reference, with a deep copy of the referred target. It reports whether a
// replacement happened.
func (s *Snapshot) Resolve(container *etree.Element, tag string) (bool, error) {
	referring := xmltree.FirstChild(container, tag)
	if referring == nil {
		return false, nil
	}
	if _, ok := xmltree.Attribute(referring, model.ReferenceAttr); !ok {
		return false, nil
	}
	target, err := s.target(referring, tag)
	if err != nil {
		return false, err
	}
	if err := xmltree.Replace(referring, xmltree.Clone(target)); err != nil {
		return false, err
	}
	return true, nil
}

// target follows references from node through the snapshot until it reaches
// an element that carries none.
func (s *Snapshot) target(node *etree.Element, tag string) (*etree.Element, error) {
	visited := make(map[int]bool)
	for {
		attr, ok := xmltree.Attribute(node, model.ReferenceAttr)
		if !ok {
			return node, nil
		}
		idx, err := ParseIndex(attr)
		if err != nil {
			return nil, err
		}
		if idx >= s.Len() {
			return nil, errors.Newf(errors.ErrInvalidReference,
				"reference %q: index %d beyond %d captured containers", attr, idx+1, s.Len())
		}
		if visited[idx] {
			return nil, errors.Newf(errors.ErrInvalidReference, "reference %q: cycle through container %d", attr, idx+1)
		}
		visited[idx] = true
		next, ok := s.targets[idx][tag]
		if !ok {
			return nil, errors.Newf(errors.ErrInvalidReference,
				"reference %q: container %d has no %s", attr, idx+1, tag)
		}
		node = next
	}
}
