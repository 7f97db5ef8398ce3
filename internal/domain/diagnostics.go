package domain

import "time"

// DiagnosticStatus indicates whether a single environment check passed.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusWarn DiagnosticStatus = "warn"
	DiagnosticStatusFail DiagnosticStatus = "fail"
)

// DiagnosticItem is one environment check result with optional hint.
// FixAvailable marks items the app can remediate itself.
type DiagnosticItem struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Status       DiagnosticStatus `json:"status"`
	Message      string           `json:"message"`
	Hint         string           `json:"hint,omitempty"`
	FixAvailable bool             `json:"fixAvailable,omitempty"`
}

// DiagnosticReport aggregates environment checks for the UI.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}
