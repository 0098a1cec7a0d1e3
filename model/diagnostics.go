package model

import "fmt"

// DiagnosticKind classifies a recoverable issue accumulated during a run.
type DiagnosticKind string

const (
	// DiagUnresolvedOccurrence marks an occurrence with no definition
	// candidate in any scope.
	DiagUnresolvedOccurrence DiagnosticKind = "unresolved_occurrence"
	// DiagDepthGuardExceeded marks a resolution chain that hit the maximum
	// substitution depth.
	DiagDepthGuardExceeded DiagnosticKind = "depth_guard_exceeded"
	// DiagCycleDetected marks a placeholder that resolves back to itself.
	DiagCycleDetected DiagnosticKind = "resolution_cycle"
	// DiagPartialNode marks a graph node built from a malformed record.
	DiagPartialNode DiagnosticKind = "partial_node"
	// DiagDanglingReference marks a workflow/coordinator reference whose
	// target record is absent from the input.
	DiagDanglingReference DiagnosticKind = "dangling_reference"
	// DiagSignalUnavailable marks a scoring signal excluded because its
	// input artifact was missing or empty.
	DiagSignalUnavailable DiagnosticKind = "signal_unavailable"
	// DiagSourceUnreadable marks a definition source file that could not be
	// read during the definitions pass.
	DiagSourceUnreadable DiagnosticKind = "source_unreadable"
)

// Diagnostic is one recoverable issue. Issues are accumulated and returned
// alongside normal output, never thrown past component boundaries.
type Diagnostic struct {
	Component string         `json:"component"`
	Kind      DiagnosticKind `json:"kind"`
	Subject   string         `json:"subject,omitempty"`
	Message   string         `json:"message"`
}

// Diagnostics collects recoverable issues across a run.
type Diagnostics []Diagnostic

// Add appends a formatted diagnostic.
func (d *Diagnostics) Add(component string, kind DiagnosticKind, subject, format string, args ...interface{}) {
	*d = append(*d, Diagnostic{
		Component: component,
		Kind:      kind,
		Subject:   subject,
		Message:   fmt.Sprintf(format, args...),
	})
}

// Counts returns the number of diagnostics per kind.
func (d Diagnostics) Counts() map[DiagnosticKind]int {
	counts := make(map[DiagnosticKind]int)
	for _, diag := range d {
		counts[diag.Kind]++
	}
	return counts
}

// Filter returns the diagnostics of the given kind.
func (d Diagnostics) Filter(kind DiagnosticKind) Diagnostics {
	var out Diagnostics
	for _, diag := range d {
		if diag.Kind == kind {
			out = append(out, diag)
		}
	}
	return out
}
