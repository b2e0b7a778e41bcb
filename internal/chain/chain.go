// Package chain selects and applies the migration steps that bring a document
// from its declared version to the current one.
package chain

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/steps"
	"github.com/jacoelho/scesim/internal/version"
	"github.com/jacoelho/scesim/internal/xmltree"
)

// Chain is an immutable version to step lookup. It is safe for concurrent use.
type Chain struct {
	byFrom  map[version.Version]steps.Step
	current version.Version
}

// Options configures a single Run.
type Options struct {
	// Logger receives one debug record per applied step. Nil discards.
	Logger *slog.Logger
	Env    steps.Env
	Write  xmltree.WriteOptions
}

// Result is the outcome of a successful Run.
type Result struct {
	Output  string
	Applied []string
	From    version.Version
}

// New indexes catalog by source version. Every step must advance exactly one
// minor version, no two steps may share a source version, and current must be
// reachable by the catalog.
func New(catalog []steps.Step, current version.Version) (*Chain, error) {
	c := &Chain{
		byFrom:  make(map[version.Version]steps.Step, len(catalog)),
		current: current,
	}
	covered := false
	for _, s := range catalog {
		if s.To != s.From.NextMinor() {
			return nil, fmt.Errorf("step %s: target %s does not follow %s", s.Name, s.To, s.From)
		}
		if prev, ok := c.byFrom[s.From]; ok {
			return nil, fmt.Errorf("step %s: source version %s already handled by %s", s.Name, s.From, prev.Name)
		}
		c.byFrom[s.From] = s
		if s.From == current || s.To == current {
			covered = true
		}
	}
	if !covered {
		return nil, fmt.Errorf("current version %s is not covered by the step catalogue", current)
	}
	return c, nil
}

// Current returns the version every planned migration ends at.
func (c *Chain) Current() version.Version {
	return c.current
}

// Plan returns the steps that migrate a document declared at from. A document
// already at the current version needs no steps; a version with no path to
// the current one is an ErrUnsupportedVersion failure.
func (c *Chain) Plan(from version.Version) ([]steps.Step, error) {
	if from == c.current {
		return nil, nil
	}
	var plan []steps.Step
	for v := from; v != c.current; {
		s, ok := c.byFrom[v]
		if !ok || len(plan) == len(c.byFrom) {
			return nil, c.unsupported(from)
		}
		plan = append(plan, s)
		v = s.To
	}
	return plan, nil
}

func (c *Chain) unsupported(from version.Version) error {
	err := errors.Newf(errors.ErrUnsupportedVersion,
		"version %s of the file is not supported. Current version is %s", from, c.current)
	err.Version = from.String()
	return err
}

// Run migrates raw to the current version and serializes the result. Nothing
// is returned on failure; the partially rewritten tree is discarded.
func (c *Chain) Run(raw string, opts Options) (Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, errors.New(errors.ErrEmptyInput, "document is empty")
	}

	from, err := version.Extract(raw)
	if err != nil {
		return Result{}, err
	}
	plan, err := c.Plan(from)
	if err != nil {
		return Result{}, err
	}
	doc, err := xmltree.Parse(raw)
	if err != nil {
		return Result{}, err
	}

	applied := make([]string, 0, len(plan))
	for _, s := range plan {
		if err := s.Apply(doc, opts.Env); err != nil {
			logger.Debug("migration step failed", "step", s.Name, "error", err)
			return Result{}, err
		}
		logger.Debug("migration step applied", "step", s.Name, "from", s.From.String(), "to", s.To.String())
		applied = append(applied, s.Name)
	}
	steps.Cleanup(doc)

	out, err := doc.String(opts.Write)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: out, From: from, Applied: applied}, nil
}
