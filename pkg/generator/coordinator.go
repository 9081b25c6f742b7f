package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/trialstack/icfgen/internal/models"
)

// ContextRetriever supplies scored protocol passages for a section query
// and formats them into a prompt-ready context block.
type ContextRetriever interface {
	Retrieve(ctx context.Context, collection, query string, minScore float64) ([]models.Passage, error)
	Format(passages []models.Passage) string
}

// ModelClient drives one chat completion, streaming deltas through onDelta,
// with a non-streaming Invoke as the retry path.
type ModelClient interface {
	Stream(ctx context.Context, system, user string, onDelta func(delta string) error) error
	Invoke(ctx context.Context, system, user string) (string, error)
}

// CollectionChecker answers whether a protocol collection exists.
type CollectionChecker interface {
	Exists(ctx context.Context, collection string) (bool, error)
}

// Options tunes one coordinator. WaitTimeout bounds how long the drain loop
// waits for the next event, not the whole run: a run only fails when no
// section produces anything for that long.
type Options struct {
	MinScore    float64
	WaitTimeout time.Duration
	QueueSize   int
}

// Request describes one generation run: the protocol collection to draw
// context from, the sections to generate, and caller metadata that is
// passed through untouched.
type Request struct {
	Collection string
	Sections   []string
	Metadata   map[string]interface{}
}

// Coordinator fans one generation run out into a goroutine per section and
// multiplexes their events back into a single ordered stream. Each run owns
// its own queue; nothing is shared across runs.
type Coordinator struct {
	store     CollectionChecker
	retriever ContextRetriever
	model     ModelClient
	opts      Options
}

func NewCoordinator(store CollectionChecker, retriever ContextRetriever, model ModelClient, opts Options) *Coordinator {
	if opts.MinScore == 0 {
		opts.MinScore = 0.3
	}
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 60 * time.Second
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 64
	}
	return &Coordinator{
		store:     store,
		retriever: retriever,
		model:     model,
		opts:      opts,
	}
}

// Run starts a generation run and returns its event stream. The channel is
// closed after the final Complete or FatalError event. Cancelling ctx stops
// the run; section goroutines never outlive it.
func (c *Coordinator) Run(ctx context.Context, req Request) <-chan Event {
	out := make(chan Event, 16)
	go c.run(ctx, req, out)
	return out
}

func (c *Coordinator) run(ctx context.Context, req Request, out chan<- Event) {
	defer close(out)

	defs := make([]models.SectionDefinition, 0, len(req.Sections))
	for _, name := range req.Sections {
		def, ok := LookupSection(name)
		if !ok {
			emit(ctx, out, FatalError{Err: fmt.Sprintf("unknown section: %s", name)})
			return
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		emit(ctx, out, FatalError{Err: "no sections requested"})
		return
	}

	exists, err := c.store.Exists(ctx, req.Collection)
	if err != nil {
		emit(ctx, out, FatalError{Err: fmt.Sprintf("failed to check collection '%s': %v", req.Collection, err)})
		return
	}
	if !exists {
		emit(ctx, out, FatalError{Err: fmt.Sprintf("protocol collection '%s' not found", req.Collection)})
		return
	}

	// Cancelling runCtx on exit reaps every section goroutine, including
	// when the caller abandons the stream mid-run.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan Event, c.opts.QueueSize)
	for _, def := range defs {
		go c.generateSection(runCtx, req.Collection, def, queue)
	}

	start := time.Now()
	total := len(defs)
	completed := 0
	var errs []string

	log.Info().
		Str("collection", req.Collection).
		Int("sections", total).
		Msg("generation run started")

	timer := time.NewTimer(c.opts.WaitTimeout)
	defer timer.Stop()

	for completed < total {
		select {
		case ev := <-queue:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(c.opts.WaitTimeout)

			switch e := ev.(type) {
			case SectionComplete:
				completed++
			case SectionError:
				completed++
				errs = append(errs, e.Err)
			}

			if !emit(ctx, out, ev) {
				return
			}

		case <-timer.C:
			log.Error().
				Str("collection", req.Collection).
				Int("completed", completed).
				Int("total", total).
				Msg("generation timeout waiting for events")
			emit(ctx, out, FatalError{Err: "generation timeout - no events received"})
			return

		case <-ctx.Done():
			return
		}
	}

	elapsed := time.Since(start)
	log.Info().
		Str("collection", req.Collection).
		Int("completed", completed).
		Int("errors", len(errs)).
		Dur("elapsed", elapsed).
		Msg("generation run finished")

	emit(ctx, out, Complete{
		TotalSections:     total,
		CompletedSections: completed,
		GenerationTime:    elapsed.Seconds(),
		Errors:            errs,
	})
}

// emit pushes an event unless the context has been cancelled. Producers and
// the drain loop both use it so an abandoned consumer never wedges a send.
func emit(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
