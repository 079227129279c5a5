package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/agentoven/aiagent-relay/internal/embeddings"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
)

// pointStore is the slice of *qdrant.Client the ingester uses.
type pointStore interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
}

// Document is one source text. Name is stored as the chunk's document name.
type Document struct {
	Name    string
	Content string
}

// Result summarizes an ingestion run.
type Result struct {
	Documents int
	Chunks    int
	Elapsed   time.Duration
}

// Options configures an Ingester.
type Options struct {
	Collection   string
	DocNameField string
	TextField    string
	BatchSize    int
	Chunker      ChunkerConfig
}

// Ingester chunks, embeds and upserts documents.
type Ingester struct {
	store    pointStore
	embedder embeddings.Embedder
	opts     Options
}

// New creates an ingester writing to store.
func New(store pointStore, embedder embeddings.Embedder, opts Options) *Ingester {
	if opts.DocNameField == "" {
		opts.DocNameField = "doc_name"
	}
	if opts.TextField == "" {
		opts.TextField = "text"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Chunker.ChunkSize <= 0 {
		opts.Chunker = DefaultChunkerConfig()
	}
	return &Ingester{store: store, embedder: embedder, opts: opts}
}

// pointID is stable for a document chunk, so re-ingesting a document
// overwrites its points instead of duplicating them.
func pointID(doc string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", doc, index))).String()
}

// EnsureCollection creates the collection with cosine distance if it does
// not exist.
func (ing *Ingester) EnsureCollection(ctx context.Context, dims uint64) error {
	exists, err := ing.store.CollectionExists(ctx, ing.opts.Collection)
	if err != nil {
		return fmt.Errorf("ingest: check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := ing.store.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ing.opts.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("ingest: create collection %q: %w", ing.opts.Collection, err)
	}
	log.Info().Str("collection", ing.opts.Collection).Uint64("dims", dims).Msg("Created collection")
	return nil
}

type pending struct {
	doc   string
	index int
	text  string
}

// Ingest splits docs into chunks, embeds them in batches and upserts one
// point per chunk. The collection is created on first use with the
// dimension of the first embedding.
func (ing *Ingester) Ingest(ctx context.Context, docs []Document) (*Result, error) {
	start := time.Now()
	if ing.opts.Collection == "" {
		return nil, fmt.Errorf("ingest: collection is required")
	}

	var chunks []pending
	for _, d := range docs {
		for i, text := range Split(d.Content, ing.opts.Chunker) {
			chunks = append(chunks, pending{doc: d.Name, index: i, text: text})
		}
	}
	log.Info().Int("documents", len(docs)).Int("chunks", len(chunks)).Msg("Chunking complete")

	ensured := false
	for i := 0; i < len(chunks); i += ing.opts.BatchSize {
		batch := chunks[i:min(i+ing.opts.BatchSize, len(chunks))]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.text
		}

		vectors, err := ing.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("ingest: embed batch %d-%d: %w", i, i+len(batch), err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("ingest: embed batch %d-%d: got %d vectors", i, i+len(batch), len(vectors))
		}
		if !ensured {
			if err := ing.EnsureCollection(ctx, uint64(len(vectors[0]))); err != nil {
				return nil, err
			}
			ensured = true
		}

		points := make([]*qdrant.PointStruct, len(batch))
		for j, c := range batch {
			points[j] = &qdrant.PointStruct{
				Id:      qdrant.NewID(pointID(c.doc, c.index)),
				Vectors: qdrant.NewVectorsDense(vectors[j]),
				Payload: qdrant.NewValueMap(map[string]any{
					ing.opts.DocNameField: c.doc,
					ing.opts.TextField:    c.text,
					"chunk_index":         int64(c.index),
				}),
			}
		}
		if _, err := ing.store.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: ing.opts.Collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return nil, fmt.Errorf("ingest: upsert %d points: %w", len(points), err)
		}
	}

	res := &Result{Documents: len(docs), Chunks: len(chunks), Elapsed: time.Since(start)}
	log.Info().
		Int("documents", res.Documents).
		Int("chunks", res.Chunks).
		Dur("elapsed", res.Elapsed).
		Str("collection", ing.opts.Collection).
		Msg("Ingestion complete")
	return res, nil
}
