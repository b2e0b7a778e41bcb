package scesim

import (
	"fmt"
	"log/slog"

	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/chain"
	"github.com/jacoelho/scesim/internal/columnwidth"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/steps"
	"github.com/jacoelho/scesim/internal/version"
	"github.com/jacoelho/scesim/internal/xmltree"
)

const maxIndent = 16

type intOption struct {
	value int
	set   bool
}

func (o intOption) resolved() int {
	if !o.set {
		return 0
	}
	return o.value
}

// Options configures a Migrator. The zero value is valid and migrates to the
// current model version with two-space indentation.
type Options struct {
	logger         *slog.Logger
	columnWidth    columnwidth.Func
	currentVersion string
	indent         intOption
	maxInputSize   intOption
	compact        bool
}

type resolvedOptions struct {
	logger       *slog.Logger
	env          steps.Env
	current      version.Version
	write        xmltree.WriteOptions
	maxInputSize int
}

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// Validate validates option values.
func (o Options) Validate() error {
	resolved, err := o.withDefaults()
	if err != nil {
		return err
	}
	if _, err := chain.New(steps.Catalog(), resolved.current); err != nil {
		return errors.Wrap(errors.ErrInvalidOptions, err, "current version")
	}
	return nil
}

// WithCurrentVersion sets the version documents are migrated to ("" uses the model version).
func (o Options) WithCurrentVersion(value string) Options {
	o.currentVersion = value
	return o
}

// WithIndent sets the number of spaces per nesting level (0 uses default).
func (o Options) WithIndent(value int) Options {
	o.indent = intOption{value: value, set: true}
	return o
}

// WithCompact strips indentation from the output instead of re-indenting it.
func (o Options) WithCompact(value bool) Options {
	o.compact = value
	return o
}

// WithMaxInputSize sets the largest accepted document in bytes (0 uses default).
func (o Options) WithMaxInputSize(value int) Options {
	o.maxInputSize = intOption{value: value, set: true}
	return o
}

// WithLogger sets the logger receiving per-step debug records (nil discards).
func (o Options) WithLogger(logger *slog.Logger) Options {
	o.logger = logger
	return o
}

// WithColumnWidth replaces the function computing fact mapping column widths.
func (o Options) WithColumnWidth(fn func(expressionIdentifierName string) float64) Options {
	o.columnWidth = fn
	return o
}

func (o Options) withDefaults() (resolvedOptions, error) {
	current := model.CurrentVersion
	if o.currentVersion != "" {
		v, err := version.Parse(o.currentVersion)
		if err != nil {
			return resolvedOptions{}, errors.Wrap(errors.ErrInvalidOptions, err, "current version")
		}
		current = v
	}

	indent := o.indent.resolved()
	if indent < 0 || indent > maxIndent {
		return resolvedOptions{}, errors.New(errors.ErrInvalidOptions, fmt.Sprintf("indent must be between 0 and %d", maxIndent))
	}
	maxInput, err := resolveMaxInputSize(o.maxInputSize.resolved())
	if err != nil {
		return resolvedOptions{}, errors.Wrap(errors.ErrInvalidOptions, err, "input limits")
	}

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	width := o.columnWidth
	if width == nil {
		width = columnwidth.For
	}
	return resolvedOptions{
		logger:       logger,
		env:          steps.Env{ColumnWidth: width},
		current:      current,
		write:        xmltree.WriteOptions{Indent: indent, Compact: o.compact},
		maxInputSize: maxInput,
	}, nil
}
