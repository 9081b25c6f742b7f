package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/trialstack/icfgen/pkg/store"
)

// TextExtractor turns an uploaded document into plain text. PDF and other
// format-specific extraction lives behind this interface.
type TextExtractor interface {
	Extract(filename string, data []byte) (string, error)
}

// PlainTextExtractor passes .txt/.md uploads through unchanged.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ string, data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("document contains no text")
	}
	return text, nil
}

// Embedder is the batch-embedding collaborator.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// PassageWriter is the storage collaborator for ingestion.
type PassageWriter interface {
	CreateCollection(ctx context.Context, studyAcronym, protocolTitle, filename string) (string, error)
	StorePassages(ctx context.Context, collection string, records []store.PassageRecord) error
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// Ingestor chunks protocol text, embeds the chunks, and writes them into a
// fresh collection for that protocol.
type Ingestor struct {
	config   Config
	splitter textsplitter.RecursiveCharacter
	embedder Embedder
	writer   PassageWriter
}

func New(embedder Embedder, writer PassageWriter, config Config) *Ingestor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 200
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	return &Ingestor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
		embedder: embedder,
		writer:   writer,
	}
}

// Chunk cleans protocol text and splits it into retrieval-sized passages.
func (ing *Ingestor) Chunk(text string) ([]string, error) {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil, fmt.Errorf("document contains no text")
	}

	chunks, err := ing.splitter.SplitText(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("document produced no usable chunks")
	}
	return kept, nil
}

// IngestProtocol creates a collection for the protocol and fills it with
// embedded passages. Returns the new collection name and the chunk count.
func (ing *Ingestor) IngestProtocol(ctx context.Context, studyAcronym, protocolTitle, filename, text string) (string, int, error) {
	chunks, err := ing.Chunk(text)
	if err != nil {
		return "", 0, err
	}

	collection, err := ing.writer.CreateCollection(ctx, studyAcronym, protocolTitle, filename)
	if err != nil {
		return "", 0, err
	}

	log.Info().
		Str("collection", collection).
		Int("chunks", len(chunks)).
		Msg("ingesting protocol")

	for start := 0; start < len(chunks); start += ing.config.BatchSize {
		end := start + ing.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		embeddings, err := ing.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return "", 0, fmt.Errorf("failed to embed chunks: %w", err)
		}

		records := make([]store.PassageRecord, len(batch))
		for i, chunk := range batch {
			records[i] = store.PassageRecord{
				Content:    chunk,
				ChunkIndex: start + i,
				Embedding:  embeddings[i],
			}
		}

		if err := ing.writer.StorePassages(ctx, collection, records); err != nil {
			return "", 0, fmt.Errorf("failed to store passages: %w", err)
		}
	}

	return collection, len(chunks), nil
}

// cleanText collapses runs of whitespace inside lines while preserving
// paragraph breaks, which the splitter uses as boundaries.
func cleanText(text string) string {
	paragraphs := strings.Split(text, "\n\n")
	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "\n\n")
}
