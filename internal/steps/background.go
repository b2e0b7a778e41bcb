package steps

import (
	"github.com/beevik/etree"

	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/xmltree"
)

const backgroundTemplate = `<background>
  <simulationDescriptor>
    <factMappings>
      <FactMapping>
        <factMappingValueType>NOT_EXPRESSION</factMappingValueType>
        <expressionElements class="linked-list"/>
        <expressionIdentifier>
          <name>1|1</name>
          <type>GIVEN</type>
        </expressionIdentifier>
        <factIdentifier>
          <name>Empty</name>
          <className>java.lang.Void</className>
        </factIdentifier>
        <className>java.lang.Void</className>
        <factAlias>Instance 1</factAlias>
        <expressionAlias>PROPERTY 1</expressionAlias>
      </FactMapping>
    </factMappings>
  </simulationDescriptor>
  <scesimData class="linked-list">
    <BackgroundData>
      <factMappingValues>
        <FactMappingValue>
          <factIdentifier>
            <name>Empty</name>
            <className>java.lang.Void</className>
          </factIdentifier>
          <expressionIdentifier>
            <name>1|1</name>
            <type>GIVEN</type>
          </expressionIdentifier>
        </FactMappingValue>
      </factMappingValues>
    </BackgroundData>
  </scesimData>
</background>`

// background is parsed once; every document receives its own copy.
var background = mustFragment(backgroundTemplate)

func mustFragment(raw string) *etree.Element {
	e, err := xmltree.ParseFragment(raw)
	if err != nil {
		panic(err)
	}
	return e
}

// moveSettings gathers the descriptor fields into a settings container, types
// every fact mapping as a plain expression and adds an empty background.
func moveSettings(doc *xmltree.Document, _ Env) error {
	root, err := xmltree.First(doc.Find(model.ScenarioSimulationModel), model.ScenarioSimulationModel)
	if err != nil {
		return err
	}

	settings := xmltree.AppendChild(root, model.Settings, xmltree.NoText)
	for _, field := range model.SettingsFields {
		for _, g := range doc.FindGrouped(model.SimulationDescriptor, field) {
			if len(g.Nodes) == 0 {
				continue
			}
			node := g.Nodes[0]
			xmltree.AppendChild(settings, node.Tag, textOf(node))
			xmltree.Remove(node)
			break
		}
	}

	for _, mapping := range doc.Find(model.SimulationDescriptor, model.FactMappings, model.FactMapping) {
		xmltree.AppendChild(mapping, model.FactMappingValueType, xmltree.TextOf(model.NotExpression))
	}

	root.AddChild(xmltree.Clone(background))
	return nil
}
