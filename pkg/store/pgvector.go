package store

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/trialstack/icfgen/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore keeps protocol passages in Postgres with pgvector. Each
// uploaded protocol gets its own collection name; passages carry that name
// so similarity search never crosses protocol boundaries.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

// PassageRecord is one chunk ready for insertion: content plus its
// precomputed embedding.
type PassageRecord struct {
	Content    string
	ChunkIndex int
	Embedding  []float32
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "passages"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	createPassages := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			collection TEXT NOT NULL,
			content TEXT,
			chunk_index INTEGER,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createPassages)
	if err != nil {
		return fmt.Errorf("failed to create passages table: %v", err)
	}

	createProtocols := `
		CREATE TABLE IF NOT EXISTS protocols (
			collection TEXT PRIMARY KEY,
			study_acronym TEXT NOT NULL,
			protocol_title TEXT,
			filename TEXT,
			chunk_count INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT now()
		)`

	_, err = vs.pool.Exec(ctx, createProtocols)
	if err != nil {
		return fmt.Errorf("failed to create protocols table: %v", err)
	}

	createVectorIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createVectorIndex)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %v", err)
	}

	createCollectionIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_collection_idx
		ON %s (collection)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createCollectionIndex)
	if err != nil {
		return fmt.Errorf("failed to create collection index: %v", err)
	}

	return nil
}

// GenerateCollectionName builds a unique collection name from the study
// acronym plus an 8-character UUID suffix, e.g. THAPCA-08ndfes1.
func GenerateCollectionName(studyAcronym string) string {
	var clean strings.Builder
	for _, r := range studyAcronym {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			clean.WriteRune(r)
		}
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", strings.ToUpper(clean.String()), strings.ToLower(suffix))
}

// CreateCollection registers a new protocol and returns its generated
// collection name. Passages are added separately via StorePassages.
func (vs *VectorStore) CreateCollection(ctx context.Context, studyAcronym, protocolTitle, filename string) (string, error) {
	collection := GenerateCollectionName(studyAcronym)

	_, err := vs.pool.Exec(ctx, `
		INSERT INTO protocols (collection, study_acronym, protocol_title, filename)
		VALUES ($1, $2, $3, $4)`,
		collection, studyAcronym, sanitizeUTF8(protocolTitle), filename,
	)
	if err != nil {
		return "", fmt.Errorf("failed to register protocol collection: %v", err)
	}

	return collection, nil
}

// Exists reports whether a protocol collection has been registered.
func (vs *VectorStore) Exists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := vs.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM protocols WHERE collection = $1)", collection,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %v", collection, err)
	}
	return exists, nil
}

// StorePassages inserts embedded chunks into a collection in batches.
func (vs *VectorStore) StorePassages(ctx context.Context, collection string, records []PassageRecord) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, collection, content, chunk_index, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for _, rec := range records {
		id := fmt.Sprintf("%s_%d", collection, rec.ChunkIndex)
		_, err = tx.Exec(ctx, stmt,
			id,
			collection,
			sanitizeUTF8(rec.Content),
			rec.ChunkIndex,
			pgvector.NewVector(rec.Embedding),
		)
		if err != nil {
			return fmt.Errorf("failed to insert passage: %v", err)
		}
	}

	_, err = tx.Exec(ctx,
		"UPDATE protocols SET chunk_count = chunk_count + $1 WHERE collection = $2",
		len(records), collection,
	)
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Search returns the topK passages of a collection closest to the query
// embedding, scored by cosine similarity (1 - distance, higher is better).
func (vs *VectorStore) Search(ctx context.Context, collection string, queryEmbedding []float32, topK int) ([]models.Passage, error) {
	if topK == 0 {
		topK = 10
	}

	query := fmt.Sprintf(`
		SELECT content, chunk_index, 1 - (embedding <=> $2) AS score
		FROM %s
		WHERE collection = $1
		ORDER BY embedding <=> $2
		LIMIT $3`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, collection, pgvector.NewVector(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %v", collection, err)
	}
	defer rows.Close()

	var passages []models.Passage
	for rows.Next() {
		var p models.Passage
		if err := rows.Scan(&p.Text, &p.ChunkIndex, &p.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %v", err)
	}

	return passages, nil
}

// ListProtocols returns every registered protocol, newest first.
func (vs *VectorStore) ListProtocols(ctx context.Context) ([]models.Protocol, error) {
	rows, err := vs.pool.Query(ctx, `
		SELECT collection, study_acronym, protocol_title, filename, chunk_count, created_at
		FROM protocols
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list protocols: %v", err)
	}
	defer rows.Close()

	var protocols []models.Protocol
	for rows.Next() {
		var p models.Protocol
		if err := rows.Scan(&p.Collection, &p.StudyAcronym, &p.ProtocolTitle, &p.Filename, &p.ChunkCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan protocol row: %v", err)
		}
		protocols = append(protocols, p)
	}
	return protocols, rows.Err()
}

// DeleteCollection removes a protocol and all of its passages.
func (vs *VectorStore) DeleteCollection(ctx context.Context, collection string) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", vs.config.TableName)
	if _, err := tx.Exec(ctx, stmt, collection); err != nil {
		return fmt.Errorf("failed to delete passages: %v", err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM protocols WHERE collection = $1", collection)
	if err != nil {
		return fmt.Errorf("failed to delete protocol: %v", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("collection %s not found", collection)
	}

	return tx.Commit(ctx)
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
