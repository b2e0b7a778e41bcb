package steps

import (
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/xmltree"
)

// Cleanup removes leftovers of older layouts and renames containers to their
// current names. It runs after every migration, including documents already
// at the current version, and is idempotent.
func Cleanup(doc *xmltree.Document) {
	doc.RemoveChildren(model.Scenario, model.SimulationDescriptor)
	for _, field := range model.SettingsFields {
		doc.RemoveChildren(model.SimulationDescriptor, field)
	}
	doc.Rename(model.Simulation, model.Scenarios, model.ScesimData)
	doc.Rename(model.Simulation, model.SimulationDescriptor, model.ScesimModelDescriptor)
	doc.Rename(model.Background, model.SimulationDescriptor, model.ScesimModelDescriptor)
}
