package generator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialstack/icfgen/internal/models"
	"github.com/trialstack/icfgen/pkg/generator"
)

func newService(checker *fakeChecker, ret *fakeRetriever, model *fakeModel) *generator.Service {
	return generator.NewService(checker, ret, model, generator.Options{
		MinScore:    0.3,
		WaitTimeout: 2 * time.Second,
	})
}

func TestGenerateFullProducesAllSections(t *testing.T) {
	svc := newService(
		&fakeChecker{exists: true},
		&fakeRetriever{passages: []models.Passage{{Text: "protocol text", Score: 0.8}}},
		&fakeModel{deltas: []string{"generated ", "content"}},
	)

	outcome, err := svc.Generate(context.Background(), "PROTO-1", map[string]interface{}{"sponsor": "Example Pharma"})
	require.NoError(t, err)

	assert.Equal(t, "PROTO-1", outcome.Collection)
	assert.Equal(t, models.StatusCompleted, outcome.Status)
	assert.Empty(t, outcome.Errors)
	assert.Len(t, outcome.Sections, 7)
	for _, name := range generator.SectionNames() {
		assert.Equal(t, "generated content", outcome.Sections[name])
	}
	assert.Equal(t, "Example Pharma", outcome.Metadata["sponsor"])
}

func TestGeneratePartialFailureReturnsWarnings(t *testing.T) {
	svc := newService(
		&fakeChecker{exists: true},
		&fakeRetriever{passages: []models.Passage{{Text: "protocol text", Score: 0.8}}},
		&fakeModel{
			deltas:     []string{"generated content"},
			failStream: map[string]bool{"benefits": true},
			failInvoke: map[string]bool{"benefits": true},
		},
	)

	outcome, err := svc.Generate(context.Background(), "PROTO-1", nil)
	require.NoError(t, err, "partial failure must not raise")

	assert.Equal(t, models.StatusCompletedWithWarnings, outcome.Status)
	assert.Len(t, outcome.Sections, 6)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "benefits")
}

func TestGenerateTotalFailureRaises(t *testing.T) {
	svc := newService(&fakeChecker{exists: false}, &fakeRetriever{}, &fakeModel{})

	outcome, err := svc.Generate(context.Background(), "PROTO-2", nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Contains(t, err.Error(), "not found")
}

func TestRegenerateSectionRejectsUnknownName(t *testing.T) {
	svc := newService(&fakeChecker{exists: true}, &fakeRetriever{}, &fakeModel{})

	events, err := svc.RegenerateSection(context.Background(), "PROTO-1", "conclusions", nil)
	require.Error(t, err)
	assert.Nil(t, events)
	assert.Contains(t, err.Error(), "conclusions")
	assert.Contains(t, err.Error(), "summary") // the known names are listed
}

func TestRegenerateSectionOnlyEmitsThatSection(t *testing.T) {
	svc := newService(
		&fakeChecker{exists: true},
		&fakeRetriever{passages: []models.Passage{{Text: "protocol text", Score: 0.8}}},
		&fakeModel{deltas: []string{"regenerated"}},
	)

	events, err := svc.RegenerateSection(context.Background(), "PROTO-1", "procedures", nil)
	require.NoError(t, err)

	for _, ev := range collectEvents(t, events) {
		switch e := ev.(type) {
		case generator.SectionStart:
			assert.Equal(t, "procedures", e.SectionName)
		case generator.Token:
			assert.Equal(t, "procedures", e.SectionName)
		case generator.SectionComplete:
			assert.Equal(t, "procedures", e.SectionName)
		case generator.Complete:
			assert.Equal(t, 1, e.TotalSections)
		}
	}
}
