package models

import "time"

// Passage is one stored chunk of a protocol document together with its
// similarity score against a retrieval query.
type Passage struct {
	Text       string
	Score      float64
	ChunkIndex int
}

// SectionDefinition is the static configuration for one ICF section:
// the retrieval query used to pull protocol context and the system prompt
// that instructs the model. Loaded at process start, never mutated.
type SectionDefinition struct {
	Name   string
	Query  string
	Prompt string
}

// Protocol describes one uploaded protocol document and the vector
// collection that holds its passages.
type Protocol struct {
	Collection    string                 `json:"collection_name"`
	StudyAcronym  string                 `json:"study_acronym"`
	ProtocolTitle string                 `json:"protocol_title"`
	Filename      string                 `json:"filename,omitempty"`
	ChunkCount    int                    `json:"chunk_count"`
	CreatedAt     time.Time              `json:"created_at"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// Outcome statuses for a folded generation run.
const (
	StatusCompleted             = "completed"
	StatusCompletedWithWarnings = "completed_with_warnings"
)

// Outcome is the non-streaming view of one generation run: every section
// that produced text, every section-level error, and an overall status.
type Outcome struct {
	Collection string                 `json:"collection_name"`
	Sections   map[string]string      `json:"sections"`
	Errors     []string               `json:"errors"`
	Status     string                 `json:"status"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
