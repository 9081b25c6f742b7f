package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/trialstack/icfgen/pkg/config"
	"github.com/trialstack/icfgen/pkg/generator"
	"github.com/trialstack/icfgen/pkg/ingest"
	"github.com/trialstack/icfgen/pkg/llm"
	"github.com/trialstack/icfgen/pkg/logx"
	"github.com/trialstack/icfgen/pkg/retriever"
	"github.com/trialstack/icfgen/pkg/store"
	"github.com/trialstack/icfgen/server"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logx.Init(cfg.Environment)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Msg("invalid configuration")
	}

	ctx := context.Background()

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize vector store")
	}
	defer vectorStore.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize embedder")
	}

	client, err := llm.NewWithConfig(llm.ClientConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		RateLimit:   cfg.LLM.RateLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize model client")
	}

	contextRetriever := retriever.New(vectorStore, embedder, retriever.Config{
		TopK:        cfg.Retrieval.TopK,
		MaxPassages: cfg.Retrieval.MaxPassages,
	})

	icf := generator.NewService(vectorStore, contextRetriever, client, generator.Options{
		MinScore:    cfg.Retrieval.MinScore,
		WaitTimeout: time.Duration(cfg.Generation.EventWaitTimeoutSeconds) * time.Second,
		QueueSize:   cfg.Generation.QueueSize,
	})

	ingestor := ingest.New(embedder, vectorStore, ingest.Config{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Database.BatchSize,
	})

	srv := server.New(cfg.Server.Addr, icf, ingestor, vectorStore)
	if err := srv.Run(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
