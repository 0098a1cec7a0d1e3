// Package model defines the input contracts consumed by the migrascope core:
// the file inventory, parsed Oozie records, pattern findings, SQL lineage and
// the upstream database/SQL-complexity summaries. All types are produced by
// upstream collaborators (scanner, parsers, extractors) and treated as
// read-only by the engine.
package model

// FileRecord describes one inventoried repository file. Path is relative to
// the repository root and acts as the stable identifier.
type FileRecord struct {
	Path          string `json:"path"`
	DetectedType  string `json:"detectedType"`
	SizeBytes     int64  `json:"sizeBytes"`
	LineCount     int    `json:"lineCount"`
	HasStreaming  bool   `json:"hasStreaming,omitempty"`
	HasDynamicSQL bool   `json:"hasDynamicSql,omitempty"`
}

// ActionRecord is a single action inside a workflow definition.
type ActionRecord struct {
	Name   string            `json:"name"`
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// WorkflowRecord is a parsed Oozie workflow document.
type WorkflowRecord struct {
	ID             string            `json:"id"`
	SourceFile     string            `json:"sourceFile"`
	Actions        []ActionRecord    `json:"actions"`
	DeclaredParams map[string]string `json:"declaredParams,omitempty"`
	// References lists other workflows this workflow triggers, e.g. via
	// sub-workflow actions.
	References  []string `json:"references,omitempty"`
	HasForkJoin bool     `json:"hasForkJoin,omitempty"`
	HasDecision bool     `json:"hasDecision,omitempty"`
}

// CoordinatorRecord is a parsed Oozie coordinator document. References name
// the workflows the coordinator schedules.
type CoordinatorRecord struct {
	ID             string            `json:"id"`
	SourceFile     string            `json:"sourceFile"`
	Frequency      string            `json:"frequency,omitempty"`
	DeclaredParams map[string]string `json:"declaredParams,omitempty"`
	References     []string          `json:"references,omitempty"`
}

// BundleRecord is a parsed Oozie bundle document. References name the
// coordinators the bundle groups.
type BundleRecord struct {
	ID         string   `json:"id"`
	SourceFile string   `json:"sourceFile"`
	References []string `json:"references,omitempty"`
}

// PatternMatch is a single raw pattern hit reported by the extractors.
type PatternMatch struct {
	Value      string `json:"value"`
	SourceFile string `json:"sourceFile"`
	Line       int    `json:"line,omitempty"`
}

// Findings groups the raw pattern-extraction output for a repository.
type Findings struct {
	JDBCMatches    []PatternMatch `json:"jdbcMatches,omitempty"`
	URLMatches     []PatternMatch `json:"urlMatches,omitempty"`
	KafkaEndpoints []PatternMatch `json:"kafkaEndpoints,omitempty"`
	PathMatches    []PatternMatch `json:"pathMatches,omitempty"`
}

// LineageRecord is one source-table to target-table relationship extracted
// from SQL text.
type LineageRecord struct {
	SourceTables []string `json:"sourceTables"`
	TargetTables []string `json:"targetTables"`
	SourceFile   string   `json:"sourceFile"`
}

// DatabaseSummary aggregates database and table reference counts.
type DatabaseSummary struct {
	TotalDatabases       int `json:"totalDatabases"`
	TotalSourceTableRefs int `json:"totalSourceTableRefs"`
	TotalTargetTableRefs int `json:"totalTargetTableRefs"`
}

// DatabaseContext is the database/schema inventory produced by the schema
// parser.
type DatabaseContext struct {
	Databases []string        `json:"databases"`
	Summary   DatabaseSummary `json:"summary"`
}

// ComplexityDistribution counts queries per complexity band, matching the
// bands used by the scorer.
type ComplexityDistribution struct {
	Simple      int `json:"simple"`
	Moderate    int `json:"moderate"`
	Complex     int `json:"complex"`
	VeryComplex int `json:"very_complex"`
}

// SQLComplexitySummary is the per-repository roll-up from the SQL complexity
// analyzer.
type SQLComplexitySummary struct {
	QueriesAnalyzed        int                    `json:"queriesAnalyzed"`
	AverageComplexityScore float64                `json:"averageComplexityScore"`
	Distribution           ComplexityDistribution `json:"complexityDistribution"`
}
