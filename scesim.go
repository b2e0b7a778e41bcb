// Package scesim migrates persisted scenario simulation documents from any
// supported historical version to the current one.
package scesim

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/chain"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/steps"
	"github.com/jacoelho/scesim/internal/version"
)

// Migrator upgrades documents to a fixed target version. It holds only
// immutable configuration and is safe for concurrent use; every call works
// on its own document tree.
type Migrator struct {
	chain *chain.Chain
	opts  resolvedOptions
}

// Result describes the migration of one file.
type Result struct {
	Path    string
	From    string
	To      string
	Output  string
	Applied []string
	// Stale reports whether the declared version is older than To.
	Stale bool
	// Changed reports whether Output differs from the input, including
	// layout-only differences in documents that are not stale.
	Changed bool
}

// Plan lists the steps a document needs, without applying them.
type Plan struct {
	From    string
	Current string
	Steps   []string
}

// UpToDate reports whether the document needs no version steps.
func (p Plan) UpToDate() bool {
	return len(p.Steps) == 0
}

var defaultMigrator = sync.OnceValue(func() *Migrator {
	m, err := New(NewOptions())
	if err != nil {
		panic(fmt.Sprintf("scesim: default migrator: %v", err))
	}
	return m
})

// New builds a Migrator from opts.
func New(opts Options) (*Migrator, error) {
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	c, err := chain.New(steps.Catalog(), resolved.current)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidOptions, err, "build migration chain")
	}
	return &Migrator{chain: c, opts: resolved}, nil
}

// Default returns the shared Migrator built from default options.
func Default() *Migrator {
	return defaultMigrator()
}

// Migrate upgrades raw with the default Migrator.
func Migrate(raw string) (string, error) {
	return Default().Migrate(raw)
}

// ExtractVersion returns the version token declared by raw.
func ExtractVersion(raw string) (string, error) {
	v, err := version.Extract(raw)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// CurrentVersion returns the version documents are migrated to by default.
func CurrentVersion() string {
	return model.CurrentVersion.String()
}

// Current returns the version m migrates documents to.
func (m *Migrator) Current() string {
	return m.chain.Current().String()
}

// Migrate upgrades raw to the current version and returns the serialized
// document. On failure no output is returned.
func (m *Migrator) Migrate(raw string) (string, error) {
	res, err := m.run(raw)
	if err != nil {
		return "", err
	}
	return res.Output, nil
}

// MigrateReader reads a document from r and writes the migrated document to w.
func (m *Migrator) MigrateReader(r io.Reader, w io.Writer) error {
	res, err := m.MigrateFrom(r)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, res.Output); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// MigrateFrom reads a document from r, up to the configured input limit, and
// migrates it. The returned Result has no Path.
func (m *Migrator) MigrateFrom(r io.Reader) (Result, error) {
	if r == nil {
		return Result{}, errors.New(errors.ErrEmptyInput, "nil reader")
	}
	raw, err := readLimited(r, m.opts.maxInputSize)
	if err != nil {
		return Result{}, err
	}
	return m.result("", raw)
}

// MigrateFile migrates the file at path. The file itself is not modified.
func (m *Migrator) MigrateFile(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat scesim file %s: %w", path, err)
	}
	if err := checkInputSize(int(info.Size()), m.opts.maxInputSize); err != nil {
		return Result{}, withPath(err, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read scesim file %s: %w", path, err)
	}
	res, err := m.result(path, string(data))
	if err != nil {
		return Result{}, withPath(err, path)
	}
	return res, nil
}

func (m *Migrator) result(path, raw string) (Result, error) {
	res, err := m.run(raw)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Path:    path,
		From:    res.From.String(),
		To:      m.Current(),
		Output:  res.Output,
		Applied: res.Applied,
		Stale:   len(res.Applied) > 0,
		Changed: res.Output != raw,
	}, nil
}

// Plan reports the declared version of raw and the steps that would run.
func (m *Migrator) Plan(raw string) (Plan, error) {
	v, err := version.Extract(raw)
	if err != nil {
		return Plan{}, err
	}
	planned, err := m.chain.Plan(v)
	if err != nil {
		return Plan{}, err
	}
	p := Plan{From: v.String(), Current: m.Current(), Steps: make([]string, 0, len(planned))}
	for _, s := range planned {
		p.Steps = append(p.Steps, s.Name)
	}
	return p, nil
}

func (m *Migrator) run(raw string) (chain.Result, error) {
	if err := checkInputSize(len(raw), m.opts.maxInputSize); err != nil {
		return chain.Result{}, err
	}
	return m.chain.Run(raw, chain.Options{
		Logger: m.opts.logger,
		Env:    m.opts.env,
		Write:  m.opts.write,
	})
}

func withPath(err error, path string) error {
	return fmt.Errorf("%s: %w", path, err)
}
