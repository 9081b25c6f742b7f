package generator

import (
	"encoding/json"
	"fmt"
)

// Event is one message on a generation run's stream. The set of variants is
// closed: SectionStart, Token, SectionComplete, SectionError, Complete and
// FatalError. Serialization switches over the concrete types exhaustively.
type Event interface {
	eventType() string
}

// SectionStart marks that a section generator has begun work.
type SectionStart struct {
	SectionName string
}

// Token carries one incremental model output fragment plus the text
// accumulated so far for its section.
type Token struct {
	SectionName string
	Content     string
	Accumulated string
}

// SectionComplete is the successful terminal event for one section.
type SectionComplete struct {
	SectionName string
	Content     string
	WordCount   int
}

// SectionError is the failed terminal event for one section. Sibling
// sections are unaffected.
type SectionError struct {
	SectionName string
	Err         string
}

// Complete closes a run after every section reached a terminal event.
// Errors lists each SectionError message seen; a non-empty list still
// counts as a completed run.
type Complete struct {
	TotalSections     int
	CompletedSections int
	GenerationTime    float64
	Errors            []string
}

// FatalError closes a run that could not proceed: failed validation, a
// missing collection, or a stalled event queue.
type FatalError struct {
	Err string
}

func (SectionStart) eventType() string    { return "section_start" }
func (Token) eventType() string           { return "token" }
func (SectionComplete) eventType() string { return "section_complete" }
func (SectionError) eventType() string    { return "section_error" }
func (Complete) eventType() string        { return "complete" }
func (FatalError) eventType() string      { return "fatal_error" }

// Envelope is the wire shape shared by the SSE and websocket transports.
type Envelope struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Envelop converts an event into its wire envelope.
func Envelop(ev Event) Envelope {
	data := map[string]interface{}{}

	switch e := ev.(type) {
	case SectionStart:
		data["section_name"] = e.SectionName
	case Token:
		data["section_name"] = e.SectionName
		data["content"] = e.Content
		data["accumulated_content"] = e.Accumulated
	case SectionComplete:
		data["section_name"] = e.SectionName
		data["content"] = e.Content
		data["word_count"] = e.WordCount
	case SectionError:
		data["section_name"] = e.SectionName
		data["error"] = e.Err
	case Complete:
		errs := e.Errors
		if errs == nil {
			errs = []string{}
		}
		data["total_sections"] = e.TotalSections
		data["completed_sections"] = e.CompletedSections
		data["generation_time_seconds"] = e.GenerationTime
		data["errors"] = errs
	case FatalError:
		data["error"] = e.Err
	}

	return Envelope{Event: ev.eventType(), Data: data}
}

// EncodeSSE renders an event as one server-sent-events frame.
func EncodeSSE(ev Event) ([]byte, error) {
	payload, err := json.Marshal(Envelop(ev))
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return []byte(fmt.Sprintf("data: %s\n\n", payload)), nil
}
