// Package steps holds the ordered catalogue of single-version migration steps
// for scenario simulation documents, and the cleanup pass run after them.
package steps

import (
	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/columnwidth"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/version"
	"github.com/jacoelho/scesim/internal/xmltree"
)

// Env carries the collaborators steps consult while rewriting a document.
type Env struct {
	// ColumnWidth computes fact mapping column widths. Nil uses columnwidth.For.
	ColumnWidth columnwidth.Func
}

func (e Env) columnWidth(name string) float64 {
	if e.ColumnWidth == nil {
		return columnwidth.For(name)
	}
	return e.ColumnWidth(name)
}

// Step rewrites a document from one version to the next minor version.
type Step struct {
	apply func(*xmltree.Document, Env) error
	Name  string
	From  version.Version
	To    version.Version
}

// Apply rewrites doc and stamps the root element with the step's target
// version. On failure doc may be partially rewritten and must be discarded.
func (s Step) Apply(doc *xmltree.Document, env Env) error {
	root := doc.Root()
	if root == nil {
		return errors.InStep(errors.Structure(model.ScenarioSimulationModel, "document has no root element"), s.Name)
	}
	if err := s.apply(doc, env); err != nil {
		return errors.InStep(err, s.Name)
	}
	xmltree.SetAttribute(root, model.VersionAttr, s.To.String())
	return nil
}

func newStep(from, to string, apply func(*xmltree.Document, Env) error) Step {
	return Step{
		Name:  from + "->" + to,
		From:  version.MustParse(from),
		To:    version.MustParse(to),
		apply: apply,
	}
}

// Catalog returns the migration steps in increasing version order.
// Each call returns a fresh slice.
func Catalog() []Step {
	return []Step{
		newStep("1.0", "1.1", renameExpectedType),
		newStep("1.1", "1.2", addDefaultSession),
		newStep("1.2", "1.3", addExpressionSteps),
		newStep("1.3", "1.4", addKindDefaults),
		newStep("1.4", "1.5", normalizeSession),
		newStep("1.5", "1.6", resolveReferences),
		newStep("1.6", "1.7", addColumnWidths),
		newStep("1.7", "1.8", moveSettings),
	}
}
