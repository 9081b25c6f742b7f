package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/trialstack/icfgen/internal/models"
)

// Service is the generation facade handed to the HTTP layer and the CLI.
// Full generation and single-section regeneration run through the same
// coordinator; regeneration is just a one-element section set.
type Service struct {
	coordinator *Coordinator
}

func NewService(store CollectionChecker, retriever ContextRetriever, model ModelClient, opts Options) *Service {
	return &Service{
		coordinator: NewCoordinator(store, retriever, model, opts),
	}
}

// GenerateFull streams a complete ICF generation run over every known
// section.
func (s *Service) GenerateFull(ctx context.Context, collection string, metadata map[string]interface{}) <-chan Event {
	return s.coordinator.Run(ctx, Request{
		Collection: collection,
		Sections:   SectionNames(),
		Metadata:   metadata,
	})
}

// RegenerateSection streams a run for a single section. Unknown section
// names are rejected before any work starts.
func (s *Service) RegenerateSection(ctx context.Context, collection, section string, metadata map[string]interface{}) (<-chan Event, error) {
	if _, ok := LookupSection(section); !ok {
		return nil, fmt.Errorf("unknown section '%s', expected one of: %s", section, strings.Join(SectionNames(), ", "))
	}
	return s.coordinator.Run(ctx, Request{
		Collection: collection,
		Sections:   []string{section},
		Metadata:   metadata,
	}), nil
}

// Generate runs a full generation synchronously and folds the stream into
// an Outcome. Per-section failures populate Outcome.Errors; an error is
// returned only when not a single section produced text.
func (s *Service) Generate(ctx context.Context, collection string, metadata map[string]interface{}) (*models.Outcome, error) {
	return Collect(collection, metadata, s.GenerateFull(ctx, collection, metadata))
}

// Collect drains an event stream into its non-streaming Outcome view.
func Collect(collection string, metadata map[string]interface{}, events <-chan Event) (*models.Outcome, error) {
	outcome := &models.Outcome{
		Collection: collection,
		Sections:   make(map[string]string),
		Errors:     []string{},
		Metadata:   metadata,
	}

	for ev := range events {
		switch e := ev.(type) {
		case SectionComplete:
			outcome.Sections[e.SectionName] = e.Content
		case SectionError:
			outcome.Errors = append(outcome.Errors, e.Err)
		case FatalError:
			outcome.Errors = append(outcome.Errors, e.Err)
		}
	}

	if len(outcome.Sections) == 0 {
		return nil, fmt.Errorf("generation produced no sections: %s", strings.Join(outcome.Errors, "; "))
	}

	if len(outcome.Errors) == 0 {
		outcome.Status = models.StatusCompleted
	} else {
		outcome.Status = models.StatusCompletedWithWarnings
	}
	return outcome, nil
}
