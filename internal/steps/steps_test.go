package steps

import (
	"strings"
	"testing"

	"github.com/jacoelho/scesim/errors"
	"github.com/jacoelho/scesim/internal/model"
	"github.com/jacoelho/scesim/internal/version"
	"github.com/jacoelho/scesim/internal/xmltree"
)

func stepNamed(t *testing.T, name string) Step {
	t.Helper()
	for _, s := range Catalog() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("Catalog() has no step %q", name)
	return Step{}
}

func mustParse(t *testing.T, raw string) *xmltree.Document {
	t.Helper()
	doc, err := xmltree.Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func compact(t *testing.T, doc *xmltree.Document) string {
	t.Helper()
	out, err := doc.String(xmltree.WriteOptions{Compact: true})
	if err != nil {
		t.Fatalf("String() error = %v", err)
	}
	return out
}

func applyStep(t *testing.T, name, raw string) string {
	t.Helper()
	doc := mustParse(t, raw)
	if err := stepNamed(t, name).Apply(doc, Env{}); err != nil {
		t.Fatalf("Apply(%s) error = %v", name, err)
	}
	return compact(t, doc)
}

func texts(doc *xmltree.Document, path ...string) []string {
	var out []string
	for _, n := range doc.Find(path...) {
		text, _ := xmltree.TextValue(n)
		out = append(out, text)
	}
	return out
}

func TestCatalogIsContiguous(t *testing.T) {
	catalog := Catalog()
	if len(catalog) != 8 {
		t.Fatalf("len(Catalog()) = %d, want 8", len(catalog))
	}
	if catalog[0].From != version.MustParse("1.0") {
		t.Fatalf("first From = %v, want 1.0", catalog[0].From)
	}
	if last := catalog[len(catalog)-1].To; last != version.MustParse("1.8") {
		t.Fatalf("last To = %v, want 1.8", last)
	}
	for i, s := range catalog {
		if s.To != s.From.NextMinor() {
			t.Fatalf("step %s: To = %v, want %v", s.Name, s.To, s.From.NextMinor())
		}
		if i > 0 && catalog[i-1].To != s.From {
			t.Fatalf("step %s does not follow %s", s.Name, catalog[i-1].Name)
		}
		if s.Name != s.From.String()+"->"+s.To.String() {
			t.Fatalf("Name = %q", s.Name)
		}
	}

	catalog[0].Name = "changed"
	if Catalog()[0].Name == "changed" {
		t.Fatal("Catalog() shares its backing array between calls")
	}
}

func TestRenameExpectedType(t *testing.T) {
	got := applyStep(t, "1.0->1.1", `<ScenarioSimulationModel version="1.0"><simulation><simulationDescriptor><factMappings>`+
		`<FactMapping><expressionIdentifier><name>Expected</name><type>EXPECTED</type></expressionIdentifier></FactMapping>`+
		`<FactMapping><expressionIdentifier><name>Given</name><type>GIVEN</type></expressionIdentifier></FactMapping>`+
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`)
	want := `<ScenarioSimulationModel version="1.1"><simulation><simulationDescriptor><factMappings>` +
		`<FactMapping><expressionIdentifier><name>Expected</name><type>EXPECT</type></expressionIdentifier></FactMapping>` +
		`<FactMapping><expressionIdentifier><name>Given</name><type>GIVEN</type></expressionIdentifier></FactMapping>` +
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`
	if got != want {
		t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
	}
}

func TestAddDefaultSession(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		want       string
	}{
		{
			name:       "neither session nor decision model",
			descriptor: `<simulationDescriptor><factMappings/></simulationDescriptor>`,
			want:       `<simulationDescriptor><factMappings/><dmoSession/><type>RULE</type></simulationDescriptor>`,
		},
		{
			name:       "session present",
			descriptor: `<simulationDescriptor><dmoSession>s</dmoSession></simulationDescriptor>`,
			want:       `<simulationDescriptor><dmoSession>s</dmoSession></simulationDescriptor>`,
		},
		{
			name:       "decision model present",
			descriptor: `<simulationDescriptor><dmnFilePath>a.dmn</dmnFilePath><type>DMN</type></simulationDescriptor>`,
			want:       `<simulationDescriptor><dmnFilePath>a.dmn</dmnFilePath><type>DMN</type></simulationDescriptor>`,
		},
		{
			name:       "decision model path without type",
			descriptor: `<simulationDescriptor><dmnFilePath>a.dmn</dmnFilePath></simulationDescriptor>`,
			want:       `<simulationDescriptor><dmnFilePath>a.dmn</dmnFilePath><dmoSession/><type>RULE</type></simulationDescriptor>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyStep(t, "1.1->1.2", `<ScenarioSimulationModel version="1.1"><simulation>`+tt.descriptor+`</simulation></ScenarioSimulationModel>`)
			want := `<ScenarioSimulationModel version="1.2"><simulation>` + tt.want + `</simulation></ScenarioSimulationModel>`
			if got != want {
				t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
			}
		})
	}
}

func TestStepMissingStructure(t *testing.T) {
	for _, name := range []string{"1.1->1.2", "1.2->1.3", "1.4->1.5", "1.7->1.8"} {
		t.Run(name, func(t *testing.T) {
			doc := mustParse(t, `<Other version="1.0"/>`)
			err := stepNamed(t, name).Apply(doc, Env{})
			if !errors.HasCode(err, errors.ErrStructure) {
				t.Fatalf("Apply() error = %v, want %s", err, errors.ErrStructure)
			}
			m, _ := errors.As(err)
			if m.Step != name {
				t.Fatalf("Step = %q, want %q", m.Step, name)
			}
			if m.Path == "" {
				t.Fatal("Path is empty")
			}
			if v, _ := xmltree.Attribute(doc.Root(), "version"); v != "1.0" {
				t.Fatalf("version = %q after failure, want 1.0", v)
			}
		})
	}
}

func TestAddExpressionSteps(t *testing.T) {
	got := applyStep(t, "1.2->1.3", `<ScenarioSimulationModel version="1.2"><simulation><simulationDescriptor><factMappings>`+
		`<FactMapping><factIdentifier><name>Person</name></factIdentifier><className>Person</className></FactMapping>`+
		`<FactMapping><expressionElements><ExpressionElement><step>age</step></ExpressionElement></expressionElements><factIdentifier><name>Car</name></factIdentifier></FactMapping>`+
		`<FactMapping><factIdentifier><className>java.lang.Void</className></factIdentifier></FactMapping>`+
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`)
	want := `<ScenarioSimulationModel version="1.3"><simulation><simulationDescriptor><factMappings>` +
		`<FactMapping><expressionElements><ExpressionElement><step>Person</step></ExpressionElement></expressionElements><factIdentifier><name>Person</name></factIdentifier><className>Person</className></FactMapping>` +
		`<FactMapping><expressionElements><ExpressionElement><step>Car</step></ExpressionElement><ExpressionElement><step>age</step></ExpressionElement></expressionElements><factIdentifier><name>Car</name></factIdentifier></FactMapping>` +
		`<FactMapping><factIdentifier><className>java.lang.Void</className></factIdentifier></FactMapping>` +
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`
	if got != want {
		t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
	}
}

func TestAddKindDefaults(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		want       string
	}{
		{
			name:       "rule",
			descriptor: `<simulationDescriptor><type>RULE</type><kieBase>kb</kieBase></simulationDescriptor>`,
			want: `<simulationDescriptor><type>RULE</type><kieBase>kb</kieBase><kieSession>default</kieSession>` +
				`<ruleFlowGroup>default</ruleFlowGroup><skipFromBuild>false</skipFromBuild><fileName/></simulationDescriptor>`,
		},
		{
			name:       "decision model",
			descriptor: `<simulationDescriptor><type>DMN</type><fileName>a.scesim</fileName></simulationDescriptor>`,
			want: `<simulationDescriptor><type>DMN</type><fileName>a.scesim</fileName><dmnNamespace/><dmnName/>` +
				`<skipFromBuild>false</skipFromBuild></simulationDescriptor>`,
		},
		{
			name:       "unknown kind",
			descriptor: `<simulationDescriptor><type>OTHER</type></simulationDescriptor>`,
			want:       `<simulationDescriptor><type>OTHER</type><skipFromBuild>false</skipFromBuild><fileName/></simulationDescriptor>`,
		},
		{
			name:       "no type",
			descriptor: `<simulationDescriptor><dmoSession/></simulationDescriptor>`,
			want:       `<simulationDescriptor><dmoSession/></simulationDescriptor>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyStep(t, "1.3->1.4", `<ScenarioSimulationModel version="1.3"><simulation>`+tt.descriptor+`</simulation></ScenarioSimulationModel>`)
			want := `<ScenarioSimulationModel version="1.4"><simulation>` + tt.want + `</simulation></ScenarioSimulationModel>`
			if got != want {
				t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
			}
		})
	}
}

func TestNormalizeSession(t *testing.T) {
	tests := []struct {
		name    string
		session string
		want    string
	}{
		{name: "absent", session: ``, want: `<dmoSession/>`},
		{name: "no text", session: `<dmoSession/>`, want: ``},
		{name: "empty text", session: `<dmoSession></dmoSession>`, want: ``},
		{name: "placeholder", session: `<dmoSession>default</dmoSession>`, want: ``},
		{name: "named", session: `<dmoSession>ksession</dmoSession>`, want: `<dmoSession>ksession</dmoSession>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyStep(t, "1.4->1.5", `<ScenarioSimulationModel version="1.4"><simulation><simulationDescriptor><type>RULE</type>`+
				tt.session+`</simulationDescriptor></simulation></ScenarioSimulationModel>`)
			want := `<ScenarioSimulationModel version="1.5"><simulation><simulationDescriptor><type>RULE</type>` +
				tt.want + `</simulationDescriptor></simulation></ScenarioSimulationModel>`
			if got != want {
				t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
			}
		})
	}
}

const referencesXML = `<ScenarioSimulationModel version="1.5">
  <simulation>
    <simulationDescriptor>
      <factMappings>
        <FactMapping>
          <expressionIdentifier><name>Index</name><type>OTHER</type></expressionIdentifier>
          <factIdentifier><name>#</name><className>java.lang.Integer</className></factIdentifier>
        </FactMapping>
        <FactMapping>
          <expressionIdentifier><name>1|1</name><type>GIVEN</type></expressionIdentifier>
          <factIdentifier><name>Person</name><className>Person</className></factIdentifier>
        </FactMapping>
        <FactMapping>
          <expressionIdentifier><name>1|2</name><type>EXPECT</type></expressionIdentifier>
          <factIdentifier reference="../../FactMapping[2]/factIdentifier"/>
        </FactMapping>
      </factMappings>
    </simulationDescriptor>
    <scenarios>
      <Scenario>
        <factMappingValues>
          <FactMappingValue>
            <factIdentifier reference="../../../../../simulationDescriptor/factMappings/FactMapping[2]/factIdentifier"/>
            <expressionIdentifier reference="../../../../../simulationDescriptor/factMappings/FactMapping[3]/expressionIdentifier"/>
            <rawValue>1</rawValue>
          </FactMappingValue>
          <FactMappingValue>
            <factIdentifier reference="../../../../../simulationDescriptor/factMappings/FactMapping/factIdentifier"/>
            <expressionIdentifier><name>Index</name><type>OTHER</type></expressionIdentifier>
          </FactMappingValue>
        </factMappingValues>
        <simulationDescriptor><dmoSession/></simulationDescriptor>
      </Scenario>
    </scenarios>
  </simulation>
</ScenarioSimulationModel>`

func TestResolveReferences(t *testing.T) {
	doc := mustParse(t, referencesXML)
	if err := stepNamed(t, "1.5->1.6").Apply(doc, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := doc.Find("Scenario", "simulationDescriptor"); len(got) != 0 {
		t.Fatalf("Scenario/simulationDescriptor count = %d, want 0", len(got))
	}
	if got := strings.Join(texts(doc, "FactMapping", "factIdentifier", "name"), ","); got != "#,Person,Person" {
		t.Fatalf("fact mapping names = %q, want #,Person,Person", got)
	}
	if got := strings.Join(texts(doc, "FactMappingValue", "factIdentifier", "name"), ","); got != "Person,#" {
		t.Fatalf("fact mapping value names = %q, want Person,#", got)
	}
	if got := strings.Join(texts(doc, "FactMappingValue", "expressionIdentifier", "type"), ","); got != "EXPECT,OTHER" {
		t.Fatalf("fact mapping value types = %q, want EXPECT,OTHER", got)
	}
	for _, n := range doc.Find("FactMappingValue", "factIdentifier") {
		if _, ok := xmltree.Attribute(n, "reference"); ok {
			t.Fatal("resolved factIdentifier still carries reference")
		}
	}
	values := doc.Find("FactMappingValue")
	if first := values[0].ChildElements()[0]; first.Tag != "factIdentifier" {
		t.Fatalf("first child = %s, want factIdentifier in place", first.Tag)
	}
}

func TestResolveReferencesIsDeterministic(t *testing.T) {
	first := applyStep(t, "1.5->1.6", referencesXML)
	second := applyStep(t, "1.5->1.6", referencesXML)
	if first != second {
		t.Fatalf("outputs differ:\n%s\n%s", first, second)
	}
}

func TestResolveReferencesInvalid(t *testing.T) {
	doc := mustParse(t, strings.Replace(referencesXML, "FactMapping[2]/factIdentifier\"/>\n        </FactMapping>",
		"FactMapping[9]/factIdentifier\"/>\n        </FactMapping>", 1))
	err := stepNamed(t, "1.5->1.6").Apply(doc, Env{})
	if !errors.HasCode(err, errors.ErrInvalidReference) {
		t.Fatalf("Apply() error = %v, want %s", err, errors.ErrInvalidReference)
	}
}

func TestAddColumnWidths(t *testing.T) {
	raw := `<ScenarioSimulationModel version="1.6"><simulation><simulationDescriptor><factMappings>` +
		`<FactMapping><expressionIdentifier><name>Index</name></expressionIdentifier></FactMapping>` +
		`<FactMapping><expressionIdentifier><name>Expected</name></expressionIdentifier></FactMapping>` +
		`<FactMapping><expressionIdentifier><name>1|1</name></expressionIdentifier></FactMapping>` +
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`
	doc := mustParse(t, raw)
	if err := stepNamed(t, "1.6->1.7").Apply(doc, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := strings.Join(texts(doc, "FactMapping", "columnWidth"), ","); got != "70.0,114.0,150.0" {
		t.Fatalf("column widths = %q, want 70.0,114.0,150.0", got)
	}

	doc = mustParse(t, raw)
	env := Env{ColumnWidth: func(string) float64 { return 42.5 }}
	if err := stepNamed(t, "1.6->1.7").Apply(doc, env); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := strings.Join(texts(doc, "FactMapping", "columnWidth"), ","); got != "42.5,42.5,42.5" {
		t.Fatalf("column widths = %q, want custom widths", got)
	}
}

func TestAddColumnWidthsMissingName(t *testing.T) {
	doc := mustParse(t, `<ScenarioSimulationModel version="1.6"><simulation><simulationDescriptor><factMappings>`+
		`<FactMapping><expressionIdentifier><type>GIVEN</type></expressionIdentifier></FactMapping>`+
		`</factMappings></simulationDescriptor></simulation></ScenarioSimulationModel>`)
	err := stepNamed(t, "1.6->1.7").Apply(doc, Env{})
	if !errors.HasCode(err, errors.ErrStructure) {
		t.Fatalf("Apply() error = %v, want %s", err, errors.ErrStructure)
	}
}

func TestMoveSettings(t *testing.T) {
	doc := mustParse(t, `<ScenarioSimulationModel version="1.7"><simulation><simulationDescriptor>`+
		`<factMappings><FactMapping><className>Person</className></FactMapping></factMappings>`+
		`<dmoSession>ks</dmoSession><type>RULE</type><fileName/><kieBase>kb</kieBase><skipFromBuild>false</skipFromBuild>`+
		`</simulationDescriptor><scenarios/></simulation></ScenarioSimulationModel>`)
	if err := stepNamed(t, "1.7->1.8").Apply(doc, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	got := compact(t, doc)
	want := `<ScenarioSimulationModel version="1.8"><simulation><simulationDescriptor>` +
		`<factMappings><FactMapping><className>Person</className><factMappingValueType>NOT_EXPRESSION</factMappingValueType></FactMapping></factMappings>` +
		`</simulationDescriptor><scenarios/></simulation>` +
		`<settings><dmoSession>ks</dmoSession><type>RULE</type><fileName/><kieBase>kb</kieBase><skipFromBuild>false</skipFromBuild></settings>` +
		`<background><simulationDescriptor><factMappings><FactMapping>` +
		`<factMappingValueType>NOT_EXPRESSION</factMappingValueType><expressionElements class="linked-list"/>` +
		`<expressionIdentifier><name>1|1</name><type>GIVEN</type></expressionIdentifier>` +
		`<factIdentifier><name>Empty</name><className>java.lang.Void</className></factIdentifier>` +
		`<className>java.lang.Void</className><factAlias>Instance 1</factAlias><expressionAlias>PROPERTY 1</expressionAlias>` +
		`</FactMapping></factMappings></simulationDescriptor>` +
		`<scesimData class="linked-list"><BackgroundData><factMappingValues><FactMappingValue>` +
		`<factIdentifier><name>Empty</name><className>java.lang.Void</className></factIdentifier>` +
		`<expressionIdentifier><name>1|1</name><type>GIVEN</type></expressionIdentifier>` +
		`</FactMappingValue></factMappingValues></BackgroundData></scesimData></background>` +
		`</ScenarioSimulationModel>`
	if got != want {
		t.Fatalf("Apply() =\n%s\nwant\n%s", got, want)
	}
}

func TestMoveSettingsFirstDescriptorWins(t *testing.T) {
	doc := mustParse(t, `<ScenarioSimulationModel version="1.7">`+
		`<simulation><simulationDescriptor><factMappings/></simulationDescriptor></simulation>`+
		`<other><simulationDescriptor><dmnName>first</dmnName></simulationDescriptor><simulationDescriptor><dmnName>second</dmnName></simulationDescriptor></other>`+
		`</ScenarioSimulationModel>`)
	if err := stepNamed(t, "1.7->1.8").Apply(doc, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got := texts(doc, "settings", "dmnName"); len(got) != 1 || got[0] != "first" {
		t.Fatalf("settings/dmnName = %v, want [first]", got)
	}
	if got := texts(doc, "other", "simulationDescriptor", "dmnName"); len(got) != 1 || got[0] != "second" {
		t.Fatalf("remaining dmnName = %v, want [second]", got)
	}
}

func TestMoveSettingsBackgroundIsPerDocument(t *testing.T) {
	raw := `<ScenarioSimulationModel version="1.7"><simulation><simulationDescriptor/></simulation></ScenarioSimulationModel>`
	a := mustParse(t, raw)
	b := mustParse(t, raw)
	s := stepNamed(t, "1.7->1.8")
	if err := s.Apply(a, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := s.Apply(b, Env{}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	ba, bb := a.Find("background"), b.Find("background")
	if len(ba) != 1 || len(bb) != 1 || ba[0] == bb[0] {
		t.Fatal("documents share a background element")
	}
}

func TestBackgroundTemplateShape(t *testing.T) {
	if background.Tag != model.Background {
		t.Fatalf("background root = %q, want %q", background.Tag, model.Background)
	}
	mappings := xmltree.FindFrom(background, model.SimulationDescriptor, model.FactMappings, model.FactMapping)
	if len(mappings) != 1 {
		t.Fatalf("background fact mappings = %d, want 1", len(mappings))
	}
	kind, _ := xmltree.TextValue(xmltree.FirstChild(mappings[0], model.FactMappingValueType))
	if kind != model.NotExpression {
		t.Fatalf("background fact mapping type = %q, want %q", kind, model.NotExpression)
	}
	values := xmltree.FindFrom(background, model.ScesimData, "BackgroundData", model.FactMappingValues, model.FactMappingValue)
	if len(values) != 1 {
		t.Fatalf("background values = %d, want 1", len(values))
	}
	if background.Parent() != nil {
		t.Fatal("background template is attached to a tree")
	}
}

func TestCleanup(t *testing.T) {
	raw := `<ScenarioSimulationModel version="1.8">` +
		`<simulation><simulationDescriptor><factMappings><FactMapping><expressionIdentifier><type>GIVEN</type></expressionIdentifier></FactMapping></factMappings>` +
		`<type>RULE</type><dmoSession/></simulationDescriptor>` +
		`<scenarios><Scenario><simulationDescriptor/></Scenario></scenarios></simulation>` +
		`<background><simulationDescriptor/></background>` +
		`</ScenarioSimulationModel>`
	want := `<ScenarioSimulationModel version="1.8">` +
		`<simulation><scesimModelDescriptor><factMappings><FactMapping><expressionIdentifier><type>GIVEN</type></expressionIdentifier></FactMapping></factMappings>` +
		`</scesimModelDescriptor>` +
		`<scesimData><Scenario/></scesimData></simulation>` +
		`<background><scesimModelDescriptor/></background>` +
		`</ScenarioSimulationModel>`

	doc := mustParse(t, raw)
	Cleanup(doc)
	if got := compact(t, doc); got != want {
		t.Fatalf("Cleanup() =\n%s\nwant\n%s", got, want)
	}
	Cleanup(doc)
	if got := compact(t, doc); got != want {
		t.Fatalf("second Cleanup() =\n%s\nwant\n%s", got, want)
	}
}
