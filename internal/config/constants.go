package config

// Completion gives up once the rewrite system grows past these ceilings.
// Well-formed signatures stay far below them; hitting a ceiling means the
// input generates a non-terminating or explosive system.
const (
	MaxRuleCount       = 4000
	MaxRuleDepth       = 12
	MaxConcreteNesting = 16
)

// DebugDump enables rewrite system dumps during construction.
// Set once at startup by the gendump tool when handling --debug.
var DebugDump = false

// IsTestMode enables extra verification passes over rules and loops.
var IsTestMode = false

// Scenario file extensions recognized by the gendump tool.
var ScenarioFileExtensions = []string{".yaml", ".yml"}
