// kbload chunks, embeds and upserts local documents into the Qdrant
// collection used by the vector knowledge provider (KB_TYPE=vector). It
// reads the same environment as the server.
//
//	kbload [--collection name] [--chunk-size 512] [--chunk-overlap 50] PATH...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentoven/aiagent-relay/internal/config"
	"github.com/agentoven/aiagent-relay/internal/embeddings"
	"github.com/agentoven/aiagent-relay/internal/ingest"
	"github.com/agentoven/aiagent-relay/internal/knowledge"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("kbload failed")
	}
}

func run(args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}
	cfg := config.Load()
	vcfg := cfg.Knowledge.Vector

	chunker := ingest.DefaultChunkerConfig()
	var batch int
	flagSet := pflag.NewFlagSet("kbload", pflag.ContinueOnError)
	flagSet.StringVar(&vcfg.Collection, "collection", vcfg.Collection, "Qdrant collection (default QDRANT_COLLECTION)")
	flagSet.IntVar(&chunker.ChunkSize, "chunk-size", chunker.ChunkSize, "maximum chunk length in characters")
	flagSet.IntVar(&chunker.ChunkOverlap, "chunk-overlap", chunker.ChunkOverlap, "characters repeated between consecutive chunks")
	flagSet.IntVar(&batch, "batch", 32, "texts per embedding request")
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if flagSet.NArg() == 0 {
		return fmt.Errorf("no input paths; usage: kbload [flags] PATH...")
	}
	if vcfg.QdrantURL == "" || vcfg.Collection == "" {
		return fmt.Errorf("QDRANT_URL and a collection are required")
	}

	docs, err := ingest.LoadDocuments(flagSet.Args())
	if err != nil {
		return err
	}

	embedder, err := embeddings.New(vcfg)
	if err != nil {
		return err
	}
	client, err := knowledge.DialQdrant(vcfg)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ing := ingest.New(client, embedder, ingest.Options{
		Collection:   vcfg.Collection,
		DocNameField: vcfg.DocNameField,
		TextField:    vcfg.TextField,
		BatchSize:    batch,
		Chunker:      chunker,
	})
	log.Info().
		Int("documents", len(docs)).
		Str("collection", vcfg.Collection).
		Str("embedder", embedder.Kind()).
		Msg("Loading knowledge")
	_, err = ing.Ingest(ctx, docs)
	return err
}
