package generator_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialstack/icfgen/pkg/generator"
)

func decodeSSE(t *testing.T, frame []byte) generator.Envelope {
	t.Helper()
	s := string(frame)
	require.True(t, strings.HasPrefix(s, "data: "))
	require.True(t, strings.HasSuffix(s, "\n\n"))

	var env generator.Envelope
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(s, "data: "), "\n\n")), &env))
	return env
}

func TestEncodeSSEVariants(t *testing.T) {
	tests := []struct {
		event    generator.Event
		wantType string
		wantData map[string]interface{}
	}{
		{
			event:    generator.SectionStart{SectionName: "risks"},
			wantType: "section_start",
			wantData: map[string]interface{}{"section_name": "risks"},
		},
		{
			event:    generator.Token{SectionName: "risks", Content: "a", Accumulated: "ba"},
			wantType: "token",
			wantData: map[string]interface{}{
				"section_name":        "risks",
				"content":             "a",
				"accumulated_content": "ba",
			},
		},
		{
			event:    generator.SectionComplete{SectionName: "risks", Content: "done text", WordCount: 2},
			wantType: "section_complete",
			wantData: map[string]interface{}{
				"section_name": "risks",
				"content":      "done text",
				"word_count":   float64(2),
			},
		},
		{
			event:    generator.SectionError{SectionName: "benefits", Err: "boom"},
			wantType: "section_error",
			wantData: map[string]interface{}{
				"section_name": "benefits",
				"error":        "boom",
			},
		},
		{
			event:    generator.FatalError{Err: "collection not found"},
			wantType: "fatal_error",
			wantData: map[string]interface{}{"error": "collection not found"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.wantType, func(t *testing.T) {
			frame, err := generator.EncodeSSE(tc.event)
			require.NoError(t, err)

			env := decodeSSE(t, frame)
			assert.Equal(t, tc.wantType, env.Event)
			assert.Equal(t, tc.wantData, env.Data)
		})
	}
}

func TestEncodeSSECompleteAlwaysHasErrorList(t *testing.T) {
	frame, err := generator.EncodeSSE(generator.Complete{
		TotalSections:     7,
		CompletedSections: 7,
		GenerationTime:    12.5,
	})
	require.NoError(t, err)

	env := decodeSSE(t, frame)
	assert.Equal(t, "complete", env.Event)
	assert.Equal(t, float64(7), env.Data["total_sections"])
	assert.Equal(t, float64(7), env.Data["completed_sections"])
	assert.Equal(t, 12.5, env.Data["generation_time_seconds"])

	// A nil error slice must still serialize as [], not null.
	errs, ok := env.Data["errors"].([]interface{})
	require.True(t, ok, "errors should be a JSON array, got %T", env.Data["errors"])
	assert.Empty(t, errs)
}
