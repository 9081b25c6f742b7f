package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/trialstack/icfgen/internal/models"
)

// generateSection produces the full event sequence for one section:
// section_start, zero or more tokens, then exactly one terminal event.
// It only ever sends on sink; failures here never touch sibling sections.
func (c *Coordinator) generateSection(ctx context.Context, collection string, def models.SectionDefinition, sink chan<- Event) {
	if !emit(ctx, sink, SectionStart{SectionName: def.Name}) {
		return
	}

	passages, err := c.retriever.Retrieve(ctx, collection, def.Query, c.opts.MinScore)
	if err != nil {
		log.Error().Err(err).Str("section", def.Name).Msg("context retrieval failed")
		emit(ctx, sink, SectionError{
			SectionName: def.Name,
			Err:         fmt.Sprintf("failed to generate %s: %v", def.Name, err),
		})
		return
	}
	if len(passages) == 0 {
		log.Warn().Str("section", def.Name).Str("collection", collection).Msg("no passages above score threshold")
	}

	contextBlock := c.retriever.Format(passages)
	user := fmt.Sprintf("Context: %s\n\nGenerate the %s section.", contextBlock, def.Name)

	var buf strings.Builder
	streamErr := c.model.Stream(ctx, def.Prompt, user, func(delta string) error {
		buf.WriteString(delta)
		if !emit(ctx, sink, Token{
			SectionName: def.Name,
			Content:     delta,
			Accumulated: buf.String(),
		}) {
			return ctx.Err()
		}
		return nil
	})

	text := buf.String()
	if streamErr != nil {
		if ctx.Err() != nil {
			// Run was cancelled; the drain loop is gone.
			return
		}

		log.Warn().Err(streamErr).Str("section", def.Name).Msg("streaming failed, retrying without streaming")
		text, err = c.model.Invoke(ctx, def.Prompt, user)
		if err != nil {
			emit(ctx, sink, SectionError{
				SectionName: def.Name,
				Err:         fmt.Sprintf("failed to generate %s: %v", def.Name, err),
			})
			return
		}
	}

	emit(ctx, sink, SectionComplete{
		SectionName: def.Name,
		Content:     text,
		WordCount:   len(strings.Fields(text)),
	})
}
