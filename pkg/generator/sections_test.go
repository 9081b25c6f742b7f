package generator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialstack/icfgen/pkg/generator"
)

func TestSectionCatalogue(t *testing.T) {
	names := generator.SectionNames()
	require.Equal(t, []string{
		"summary",
		"background",
		"participants",
		"procedures",
		"alternatives",
		"risks",
		"benefits",
	}, names)

	for _, name := range names {
		def, ok := generator.LookupSection(name)
		require.True(t, ok, "section %s missing", name)
		assert.Equal(t, name, def.Name)
		assert.NotEmpty(t, def.Query, "section %s has no retrieval query", name)
		assert.NotEmpty(t, def.Prompt, "section %s has no prompt", name)
	}
}

func TestLookupSectionUnknown(t *testing.T) {
	_, ok := generator.LookupSection("conclusions")
	assert.False(t, ok)
}
