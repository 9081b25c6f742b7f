package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/trialstack/icfgen/pkg/config"
	"github.com/trialstack/icfgen/pkg/generator"
	"github.com/trialstack/icfgen/pkg/ingest"
	"github.com/trialstack/icfgen/pkg/llm"
	"github.com/trialstack/icfgen/pkg/retriever"
	"github.com/trialstack/icfgen/pkg/store"
)

type cliFlags struct {
	ConfigPath string
	File       string
	Acronym    string
	Title      string
	Collection string
	Section    string
}

func main() {
	flags := parseFlags()

	if err := godotenv.Load(".env"); err == nil {
		log.Debug().Msg("loaded .env")
	}
	// Keep structured logs out of the interactive output.
	log.Logger = log.Logger.Level(zerolog.WarnLevel)

	cfg, err := config.LoadConfig(flags.ConfigPath)
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}

	if err := run(cfg, flags); err != nil {
		color.Red("%v", err)
		os.Exit(1)
	}
}

func parseFlags() cliFlags {
	var flags cliFlags
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&flags.File, "file", "", "Protocol text file to index before generating")
	flag.StringVar(&flags.Acronym, "acronym", "", "Study acronym for a new protocol index")
	flag.StringVar(&flags.Title, "title", "", "Protocol title for a new protocol index")
	flag.StringVar(&flags.Collection, "collection", "", "Existing protocol collection to generate from")
	flag.StringVar(&flags.Section, "section", "", "Regenerate a single section instead of the full document")
	flag.Parse()
	return flags
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("sections"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(cfg *config.Config, flags cliFlags) error {
	ctx := context.Background()

	vectorStore, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
		ConnString: cfg.Database.URL,
		TableName:  cfg.Database.TableName,
		VectorDim:  cfg.Database.VectorDim,
		BatchSize:  cfg.Database.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %v", err)
	}
	defer vectorStore.Close()

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   cfg.Embedding.Model,
		BaseURL: cfg.Embedding.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
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
		return fmt.Errorf("failed to initialize model client: %v", err)
	}

	icf := generator.NewService(
		vectorStore,
		retriever.New(vectorStore, embedder, retriever.Config{
			TopK:        cfg.Retrieval.TopK,
			MaxPassages: cfg.Retrieval.MaxPassages,
		}),
		client,
		generator.Options{
			MinScore:    cfg.Retrieval.MinScore,
			WaitTimeout: time.Duration(cfg.Generation.EventWaitTimeoutSeconds) * time.Second,
			QueueSize:   cfg.Generation.QueueSize,
		},
	)

	collection := flags.Collection

	// Index a new protocol first when a file was given.
	if flags.File != "" {
		if flags.Acronym == "" {
			return fmt.Errorf("-acronym is required when indexing a protocol file")
		}

		data, err := os.ReadFile(flags.File)
		if err != nil {
			return fmt.Errorf("failed to read protocol file: %v", err)
		}

		ingestor := ingest.New(embedder, vectorStore, ingest.Config{
			ChunkSize:    cfg.Ingest.ChunkSize,
			ChunkOverlap: cfg.Ingest.ChunkOverlap,
			BatchSize:    cfg.Database.BatchSize,
		})

		spinner := getSpinner(" Indexing protocol...")
		collection, _, err = ingestor.IngestProtocol(ctx, flags.Acronym, flags.Title, filepath.Base(flags.File), string(data))
		spinner.Finish()
		if err != nil {
			return fmt.Errorf("failed to index protocol: %v", err)
		}
		color.Green("✓ Protocol indexed as %s\n", collection)
	}

	if collection == "" {
		return fmt.Errorf("no protocol collection: pass -collection or index a file with -file")
	}

	if flags.Section != "" {
		return streamSection(ctx, icf, collection, flags.Section)
	}
	return streamFull(ctx, icf, collection)
}

// streamSection regenerates one section and prints its tokens live.
func streamSection(ctx context.Context, icf *generator.Service, collection, section string) error {
	events, err := icf.RegenerateSection(ctx, collection, section, nil)
	if err != nil {
		return err
	}

	heading := color.New(color.FgCyan, color.Bold).PrintfFunc()
	for ev := range events {
		switch e := ev.(type) {
		case generator.SectionStart:
			heading("\n%s\n\n", e.SectionName)
		case generator.Token:
			fmt.Print(e.Content)
		case generator.SectionComplete:
			fmt.Println()
			color.Green("✓ %s (%d words)", e.SectionName, e.WordCount)
		case generator.SectionError:
			color.Red("✗ %s", e.Err)
		case generator.Complete:
			color.Green("\nDone in %.1fs", e.GenerationTime)
		case generator.FatalError:
			return fmt.Errorf("%s", e.Err)
		}
	}
	return nil
}

// streamFull runs all sections concurrently; tokens from racing sections
// would interleave on a terminal, so it shows a progress bar instead and
// prints the assembled document at the end.
func streamFull(ctx context.Context, icf *generator.Service, collection string) error {
	names := generator.SectionNames()
	sections := make(map[string]string, len(names))
	var errs []string

	bar := getProgressBar(len(names), " Generating ICF sections")
	for ev := range icf.GenerateFull(ctx, collection, nil) {
		switch e := ev.(type) {
		case generator.SectionComplete:
			sections[e.SectionName] = e.Content
			bar.Add(1)
		case generator.SectionError:
			errs = append(errs, e.Err)
			bar.Add(1)
		case generator.Complete:
			bar.Finish()
		case generator.FatalError:
			bar.Finish()
			return fmt.Errorf("%s", e.Err)
		}
	}

	heading := color.New(color.FgCyan, color.Bold).PrintfFunc()
	for _, name := range names {
		if text, ok := sections[name]; ok {
			heading("\n%s\n\n", name)
			fmt.Println(text)
		}
	}

	if len(errs) > 0 {
		color.Yellow("\nCompleted with %d section error(s):", len(errs))
		for _, msg := range errs {
			color.Red("  - %s", msg)
		}
	} else {
		color.Green("\n✓ All %d sections generated", len(names))
	}
	return nil
}
