package ingest_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trialstack/icfgen/pkg/ingest"
	"github.com/trialstack/icfgen/pkg/store"
)

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i]))}
	}
	return vectors, nil
}

type fakeWriter struct {
	collection string
	createErr  error
	storeErr   error
	stored     []store.PassageRecord
}

func (f *fakeWriter) CreateCollection(ctx context.Context, studyAcronym, protocolTitle, filename string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.collection, nil
}

func (f *fakeWriter) StorePassages(ctx context.Context, collection string, records []store.PassageRecord) error {
	if f.storeErr != nil {
		return f.storeErr
	}
	f.stored = append(f.stored, records...)
	return nil
}

func TestChunkCleansAndSplits(t *testing.T) {
	ing := ingest.New(&fakeEmbedder{}, &fakeWriter{}, ingest.Config{ChunkSize: 50, ChunkOverlap: 10})

	text := "The  study   enrolls adults\nwith sepsis.\n\nRandomization occurs within 24 hours of admission."
	chunks, err := ing.Chunk(text)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	joined := strings.Join(chunks, " ")
	assert.Contains(t, joined, "The study enrolls adults with sepsis.")
	assert.Contains(t, joined, "Randomization occurs within 24 hours")
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestChunkEmptyTextFails(t *testing.T) {
	ing := ingest.New(&fakeEmbedder{}, &fakeWriter{}, ingest.Config{})

	_, err := ing.Chunk("   \n\n  \t ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no text")
}

func TestIngestProtocolBatchesAndIndexes(t *testing.T) {
	embedder := &fakeEmbedder{}
	writer := &fakeWriter{collection: "THAPCA-ab12cd34"}
	// Small chunks and a batch size of 2 so a modest document spans batches.
	ing := ingest.New(embedder, writer, ingest.Config{ChunkSize: 40, ChunkOverlap: 5, BatchSize: 2})

	paragraphs := make([]string, 6)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d describes a distinct procedure in the study protocol.", i)
	}
	text := strings.Join(paragraphs, "\n\n")

	collection, count, err := ing.IngestProtocol(context.Background(), "THAPCA", "Therapeutic Hypothermia", "protocol.txt", text)
	require.NoError(t, err)

	assert.Equal(t, "THAPCA-ab12cd34", collection)
	assert.Equal(t, count, len(writer.stored))
	assert.Greater(t, count, 2, "document should split into more than one batch")

	// Chunk indexes are sequential across batch boundaries.
	for i, rec := range writer.stored {
		assert.Equal(t, i, rec.ChunkIndex)
		assert.NotEmpty(t, rec.Embedding)
	}

	for _, batch := range embedder.calls {
		assert.LessOrEqual(t, len(batch), 2)
	}
	assert.Greater(t, len(embedder.calls), 1)
}

func TestIngestProtocolEmbedFailure(t *testing.T) {
	ing := ingest.New(
		&fakeEmbedder{err: fmt.Errorf("embedding service down")},
		&fakeWriter{collection: "STUDY-deadbeef"},
		ingest.Config{},
	)

	_, _, err := ing.IngestProtocol(context.Background(), "STUDY", "Title", "p.txt", "Some protocol text about procedures.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed chunks")
}

func TestIngestProtocolCreateCollectionFailure(t *testing.T) {
	ing := ingest.New(
		&fakeEmbedder{},
		&fakeWriter{createErr: fmt.Errorf("duplicate collection")},
		ingest.Config{},
	)

	_, _, err := ing.IngestProtocol(context.Background(), "STUDY", "Title", "p.txt", "Some protocol text about procedures.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate collection")
}

func TestPlainTextExtractor(t *testing.T) {
	var ex ingest.PlainTextExtractor

	text, err := ex.Extract("protocol.txt", []byte("  protocol body  \n"))
	require.NoError(t, err)
	assert.Equal(t, "protocol body", text)

	_, err = ex.Extract("empty.txt", []byte("   "))
	require.Error(t, err)
}
