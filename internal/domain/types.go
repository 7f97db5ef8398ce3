package domain

// Stage tracks the pipeline position of the current run.
type Stage string

const (
	StageIdle         Stage = "idle"
	StageTranscribing Stage = "transcribing"
	StageFormatting   Stage = "formatting"
	StageTranslating  Stage = "translating"
	StageSuccess      Stage = "success"
	StageError        Stage = "error"
)

// PageStatus tracks one staged page image through transcription.
type PageStatus string

const (
	PageStatusPending      PageStatus = "pending"
	PageStatusTranscribing PageStatus = "transcribing"
	PageStatusSucceeded    PageStatus = "succeeded"
	PageStatusFailed       PageStatus = "failed"
)

// PageImage is one staged pecha page. ID is the BLAKE3 hash of the original
// file bytes, so the same scan keeps its identity across re-adds and runs.
// Status, Transcript, and ErrorMessage are written only by the pipeline
// while the run that captured the page is current.
type PageImage struct {
	ID           string     `json:"id"`
	SourceRef    string     `json:"sourceRef"`
	Status       PageStatus `json:"status"`
	Transcript   string     `json:"transcript,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	// Upload payload; never serialized to the UI.
	Bytes []byte `json:"-"`
	MIME  string `json:"-"`
}

// PipelineRun is the single versioned run record. Version increments on
// every user action that invalidates in-flight work; asynchronous
// completions carrying an older version are discarded.
type PipelineRun struct {
	ID            string `json:"id,omitempty"`
	Version       uint64 `json:"version"`
	Stage         Stage  `json:"stage"`
	CanonicalText string `json:"canonicalText,omitempty"`
	Translation   string `json:"translation,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	Editing       bool   `json:"editing"`
}

// Settings contains user-selectable runtime configuration.
type Settings struct {
	APIKey            string `json:"apiKey"`
	Model             string `json:"model"`
	MaxConcurrent     int    `json:"maxConcurrent"`
	RequestsPerMinute int    `json:"requestsPerMinute"`
	TargetLanguage    string `json:"targetLanguage"`
}
