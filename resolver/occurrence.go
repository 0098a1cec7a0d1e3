// Package resolver classifies every symbolic placeholder reference found in
// findings, workflow records and SQL lineage into one of three tiers
// (resolved, partially resolved, unresolved), using definition candidates
// gathered from workflow parameters, coordinator parameters, properties files
// and environment defaults. It also produces mirrored copies of the raw
// artifacts with placeholders substituted.
package resolver

import (
	"fmt"
	"regexp"

	"github.com/datashift/migrascope/model"
)

// placeholderRE matches ${name} style references. The inner group is the
// definition key.
var placeholderRE = regexp.MustCompile(`\$\{([^}]+)\}`)

// Tier is the classification of one occurrence. The three tiers partition
// all occurrences; no occurrence holds two tiers.
type Tier string

const (
	TierResolved          Tier = "resolved"
	TierPartiallyResolved Tier = "partially_resolved"
	TierUnresolved        Tier = "unresolved"
)

// Occurrence is one placeholder reference as it appeared in a raw artifact.
// The (SourceFile, Location, RawToken) triple is its identity.
type Occurrence struct {
	SourceFile string `json:"sourceFile"`
	Location   string `json:"location"`
	RawToken   string `json:"rawToken"`
}

// Key returns the placeholder name inside the raw token, e.g. "db.url" for
// "${db.url}".
func (o Occurrence) Key() string {
	m := placeholderRE.FindStringSubmatch(o.RawToken)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// Resolution is the classification outcome for one occurrence. Chain lists
// the scopes traversed while substituting, in traversal order; Definitions
// lists every candidate that matched the occurrence key, highest priority
// first, regardless of which one won.
type Resolution struct {
	Occurrence
	Tier          Tier        `json:"tier"`
	ResolvedValue string      `json:"resolvedValue,omitempty"`
	Chain         []Scope     `json:"resolutionChain,omitempty"`
	Definitions   []Candidate `json:"definitions,omitempty"`

	reason reason
}

// Artifacts bundles the raw inputs the resolver walks for occurrences and
// mirrors after classification.
type Artifacts struct {
	Findings     *model.Findings
	Workflows    []model.WorkflowRecord
	Coordinators []model.CoordinatorRecord
	Lineage      []model.LineageRecord
}

// CollectOccurrences walks the raw artifacts and returns every distinct
// placeholder occurrence in a stable walk order.
func CollectOccurrences(arts Artifacts) []Occurrence {
	var out []Occurrence
	seen := make(map[Occurrence]bool)
	walkArtifacts(arts, func(sourceFile, location, value string) string {
		for _, token := range placeholderRE.FindAllString(value, -1) {
			occ := Occurrence{SourceFile: sourceFile, Location: location, RawToken: token}
			if !seen[occ] {
				seen[occ] = true
				out = append(out, occ)
			}
		}
		return value
	})
	return out
}

// walkArtifacts visits every placeholder-bearing string field of the raw
// artifacts in a fixed order and returns deep copies with the visit result
// substituted in place. Collection and mirroring share this walk, so the two
// passes always agree on occurrence identity.
func walkArtifacts(arts Artifacts, visit func(sourceFile, location, value string) string) Artifacts {
	out := Artifacts{}

	if arts.Findings != nil {
		findings := *arts.Findings
		findings.JDBCMatches = walkMatches(arts.Findings.JDBCMatches, "jdbc", visit)
		findings.URLMatches = walkMatches(arts.Findings.URLMatches, "url", visit)
		findings.KafkaEndpoints = walkMatches(arts.Findings.KafkaEndpoints, "kafka", visit)
		findings.PathMatches = walkMatches(arts.Findings.PathMatches, "path", visit)
		out.Findings = &findings
	}

	for _, wf := range arts.Workflows {
		mirrored := wf
		mirrored.Actions = make([]model.ActionRecord, len(wf.Actions))
		for i, action := range wf.Actions {
			copied := action
			copied.Params = make(map[string]string, len(action.Params))
			for _, key := range sortedKeys(action.Params) {
				location := fmt.Sprintf("workflow:%s/action:%s/param:%s", wf.ID, action.Name, key)
				copied.Params[key] = visit(wf.SourceFile, location, action.Params[key])
			}
			mirrored.Actions[i] = copied
		}
		out.Workflows = append(out.Workflows, mirrored)
	}

	for _, c := range arts.Coordinators {
		mirrored := c
		if c.Frequency != "" {
			location := fmt.Sprintf("coordinator:%s/frequency", c.ID)
			mirrored.Frequency = visit(c.SourceFile, location, c.Frequency)
		}
		out.Coordinators = append(out.Coordinators, mirrored)
	}

	for i, rec := range arts.Lineage {
		mirrored := rec
		mirrored.SourceTables = make([]string, len(rec.SourceTables))
		for j, table := range rec.SourceTables {
			location := fmt.Sprintf("lineage[%d]/source[%d]", i, j)
			mirrored.SourceTables[j] = visit(rec.SourceFile, location, table)
		}
		mirrored.TargetTables = make([]string, len(rec.TargetTables))
		for j, table := range rec.TargetTables {
			location := fmt.Sprintf("lineage[%d]/target[%d]", i, j)
			mirrored.TargetTables[j] = visit(rec.SourceFile, location, table)
		}
		out.Lineage = append(out.Lineage, mirrored)
	}

	return out
}

func walkMatches(matches []model.PatternMatch, category string, visit func(sourceFile, location, value string) string) []model.PatternMatch {
	if matches == nil {
		return nil
	}
	out := make([]model.PatternMatch, len(matches))
	for i, m := range matches {
		copied := m
		location := fmt.Sprintf("%s[%d]", category, i)
		copied.Value = visit(m.SourceFile, location, m.Value)
		out[i] = copied
	}
	return out
}
