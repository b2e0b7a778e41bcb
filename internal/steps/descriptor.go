package steps

import (
	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/internal/columnwidth"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/reference"
	"github.com/jacoelho/scesim/internal/xmltree"
)

const defaultKieValue = "default"

func renameExpectedType(doc *xmltree.Document, _ Env) error {
	doc.ReplaceText(model.ExpressionIdentifier, model.Type, "EXPECTED", "EXPECT")
	return nil
}

// addDefaultSession marks descriptors that identify neither a rule session
// nor a decision model as rule based.
func addDefaultSession(doc *xmltree.Document, _ Env) error {
	sessions, err := firstGroup(doc, model.Simulation, model.SimulationDescriptor, model.DmoSession)
	if err != nil {
		return err
	}
	paths, err := firstGroup(doc, model.Simulation, model.SimulationDescriptor, model.DmnFilePath)
	if err != nil {
		return err
	}
	types, err := firstGroup(doc, model.Simulation, model.SimulationDescriptor, model.Type)
	if err != nil {
		return err
	}
	if len(sessions) > 0 || (len(paths) > 0 && len(types) > 0) {
		return nil
	}
	descriptor := []string{model.Simulation, model.SimulationDescriptor}
	doc.CreateNested(descriptor, model.DmoSession, xmltree.NoText)
	doc.CreateNested(descriptor, model.Type, xmltree.TextOf(model.RuleType))
	return nil
}

// addExpressionSteps records each fact name as the first expression step of
// its fact mapping.
func addExpressionSteps(doc *xmltree.Document, _ Env) error {
	path := []string{model.Simulation, model.SimulationDescriptor, model.FactMappings}
	factMappings, err := xmltree.First(doc.Find(path...), path...)
	if err != nil {
		return err
	}
	for _, fact := range xmltree.FindFrom(factMappings, model.FactMapping, model.FactIdentifier) {
		name := xmltree.FirstChild(fact, model.Name)
		if name == nil {
			continue
		}
		mapping := fact.Parent()
		elements := xmltree.FirstChild(mapping, model.ExpressionElements)
		if elements == nil {
			if elements, err = xmltree.CreateChild(mapping, model.ExpressionElements, xmltree.NoText, 0); err != nil {
				return err
			}
		}
		element, err := xmltree.CreateChild(elements, model.ExpressionElement, xmltree.NoText, 0)
		if err != nil {
			return err
		}
		if _, err := xmltree.CreateChild(element, model.Step, textOf(name), 0); err != nil {
			return err
		}
	}
	return nil
}

// addKindDefaults fills in the fields a descriptor of the declared kind needs.
func addKindDefaults(doc *xmltree.Document, _ Env) error {
	types := doc.Find(model.Simulation, model.SimulationDescriptor, model.Type)
	if len(types) == 0 {
		return nil
	}
	kind := types[0]
	descriptor := kind.Parent()
	switch text, _ := xmltree.TextValue(kind); text {
	case model.RuleType:
		ensureChild(descriptor, model.KieSession, xmltree.TextOf(defaultKieValue))
		ensureChild(descriptor, model.KieBase, xmltree.TextOf(defaultKieValue))
		ensureChild(descriptor, model.RuleFlowGroup, xmltree.TextOf(defaultKieValue))
	case model.DMNType:
		ensureChild(descriptor, model.DmnNamespace, xmltree.NoText)
		ensureChild(descriptor, model.DmnName, xmltree.NoText)
	}
	ensureChild(descriptor, model.SkipFromBuild, xmltree.TextOf("false"))
	ensureChild(descriptor, model.FileName, xmltree.NoText)
	return nil
}

// normalizeSession drops placeholder session names and adds an empty session
// where none is declared.
func normalizeSession(doc *xmltree.Document, _ Env) error {
	path := []string{model.ScenarioSimulationModel, model.Simulation, model.SimulationDescriptor}
	descriptor, err := xmltree.First(doc.Find(path...), path...)
	if err != nil {
		return err
	}
	session := xmltree.FirstChild(descriptor, model.DmoSession)
	if session == nil {
		xmltree.AppendChild(descriptor, model.DmoSession, xmltree.NoText)
		return nil
	}
	if text, ok := xmltree.TextValue(session); !ok || text == "" || text == model.DefaultSession {
		xmltree.Remove(session)
	}
	return nil
}

// resolveReferences inlines fact and expression identifiers that point at the
// simulation's fact mappings by position.
func resolveReferences(doc *xmltree.Document, _ Env) error {
	doc.RemoveChildren(model.Scenario, model.SimulationDescriptor)

	mappings := doc.Find(model.SimulationDescriptor, model.FactMappings, model.FactMapping)
	snapshot := reference.NewSnapshot(mappings, model.FactIdentifier, model.ExpressionIdentifier)
	for _, mapping := range mappings {
		if _, err := snapshot.Resolve(mapping, model.FactIdentifier); err != nil {
			return err
		}
	}
	for _, value := range doc.Find(model.Scenario, model.FactMappingValues, model.FactMappingValue) {
		if _, err := snapshot.Resolve(value, model.FactIdentifier); err != nil {
			return err
		}
		if _, err := snapshot.Resolve(value, model.ExpressionIdentifier); err != nil {
			return err
		}
	}
	return nil
}

func addColumnWidths(doc *xmltree.Document, env Env) error {
	for _, mapping := range doc.Find(model.SimulationDescriptor, model.FactMappings, model.FactMapping) {
		path := []string{model.ExpressionIdentifier, model.Name}
		name, err := xmltree.First(xmltree.FindFrom(mapping, path...),
			model.SimulationDescriptor, model.FactMappings, model.FactMapping, model.ExpressionIdentifier, model.Name)
		if err != nil {
			return err
		}
		text, _ := xmltree.TextValue(name)
		width := columnwidth.Format(env.columnWidth(text))
		xmltree.AppendChild(mapping, model.ColumnWidth, xmltree.TextOf(width))
	}
	return nil
}

// firstGroup returns the leaf nodes under the first parent matched by path.
func firstGroup(doc *xmltree.Document, path ...string) ([]*etree.Element, error) {
	groups := doc.FindGrouped(path...)
	if len(groups) == 0 {
		_, err := xmltree.First(nil, path[:len(path)-1]...)
		return nil, err
	}
	return groups[0].Nodes, nil
}

func ensureChild(parent *etree.Element, tag string, text xmltree.Text) {
	if xmltree.FirstChild(parent, tag) == nil {
		xmltree.AppendChild(parent, tag, text)
	}
}

func textOf(node *etree.Element) xmltree.Text {
	if text, ok := xmltree.TextValue(node); ok {
		return xmltree.TextOf(text)
	}
	return xmltree.NoText
}
