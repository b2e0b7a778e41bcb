// Package model names the elements of a persisted scenario simulation document.
package model

import "github.com/jacoelho/scesim/internal/version"

// CurrentVersion is the version every document is migrated to.
var CurrentVersion = version.MustParse("1.8")

// Element names.
const (
	ScenarioSimulationModel = "ScenarioSimulationModel"
	Simulation              = "simulation"
	SimulationDescriptor    = "simulationDescriptor"
	ScesimModelDescriptor   = "scesimModelDescriptor"
	Scenarios               = "scenarios"
	ScesimData              = "scesimData"
	Scenario                = "Scenario"
	Settings                = "settings"
	Background              = "background"

	FactMappings         = "factMappings"
	FactMapping          = "FactMapping"
	FactIdentifier       = "factIdentifier"
	ExpressionIdentifier = "expressionIdentifier"
	ExpressionElements   = "expressionElements"
	ExpressionElement    = "ExpressionElement"
	Step                 = "step"
	ColumnWidth          = "columnWidth"
	FactMappingValues    = "factMappingValues"
	FactMappingValue     = "FactMappingValue"
	FactMappingValueType = "factMappingValueType"

	Name = "name"
	Type = "type"

	DmoSession    = "dmoSession"
	DmnFilePath   = "dmnFilePath"
	FileName      = "fileName"
	KieSession    = "kieSession"
	KieBase       = "kieBase"
	RuleFlowGroup = "ruleFlowGroup"
	DmnNamespace  = "dmnNamespace"
	DmnName       = "dmnName"
	SkipFromBuild = "skipFromBuild"
	Stateless     = "stateless"
)

// Attribute names.
const (
	VersionAttr   = "version"
	ReferenceAttr = "reference"
)

// Values written by migration steps.
const (
	NotExpression  = "NOT_EXPRESSION"
	DefaultSession = "default"
	RuleType       = "RULE"
	DMNType        = "DMN"
)

// SettingsFields lists the descriptor fields relocated into the settings
// container, in the order they are written there.
var SettingsFields = []string{
	DmoSession,
	DmnFilePath,
	Type,
	FileName,
	KieSession,
	KieBase,
	RuleFlowGroup,
	DmnNamespace,
	DmnName,
	SkipFromBuild,
	Stateless,
}
