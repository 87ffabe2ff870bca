package chroma

import (
	"context"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/redfeatherdev/AI-Meeting-Agent-Backend/pkg/config"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	"github.com/rs/zerolog"
)

const (
	collectionPrefix = "meeting-"
	batchSize        = 100
	maxLineLength    = 10000
)

// ChromaClient stores meeting transcripts, one collection per meeting.
type ChromaClient struct {
	client    chroma.Client
	embedFunc *gemini.GeminiEmbeddingFunction
	logger    zerolog.Logger
}

func NewChromaClient(cfg *config.Config, logger zerolog.Logger) (*ChromaClient, error) {
	if cfg.ChromaAPIKey == "" {
		return nil, fmt.Errorf("CHROMA_API_KEY is required")
	}

	// Set environment variable for Gemini API key if needed
	if cfg.GeminiApiKey != "" {
		os.Setenv("GEMINI_API_KEY", cfg.GeminiApiKey)
	}

	embedFunc, err := gemini.NewGeminiEmbeddingFunction(
		gemini.WithEnvAPIKey(),
		gemini.WithDefaultModel("text-embedding-004"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini embedding function: %w", err)
	}

	opts := []chroma.ClientOption{
		chroma.WithBaseURL(chroma.ChromaCloudEndpoint),
		chroma.WithCloudAPIKey(cfg.ChromaAPIKey),
	}
	switch {
	case cfg.ChromaDatabase != "" && cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithDatabaseAndTenant(cfg.ChromaDatabase, cfg.ChromaTenant))
	case cfg.ChromaTenant != "":
		opts = append(opts, chroma.WithTenant(cfg.ChromaTenant))
	}

	client, err := chroma.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Chroma client: %w", err)
	}

	return &ChromaClient{
		client:    client,
		embedFunc: embedFunc,
		logger:    logger.With().Str("component", "chroma").Logger(),
	}, nil
}

// IndexTranscript stores the lines of one meeting in the collection named
// after its bot order and returns that name as the index handle. Line ids are
// fixed, so indexing the same order again overwrites instead of duplicating.
func (c *ChromaClient) IndexTranscript(ctx context.Context, orderID int64, meetingName string, lines []string) (string, error) {
	name := CollectionName(orderID)

	collection, err := c.client.GetOrCreateCollection(
		ctx,
		name,
		chroma.WithEmbeddingFunctionCreate(c.embedFunc),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create collection: %w", err)
	}

	for start := 0; start < len(lines); start += batchSize {
		end := start + batchSize
		if end > len(lines) {
			end = len(lines)
		}

		ids := make([]chroma.DocumentID, 0, end-start)
		texts := make([]string, 0, end-start)
		metas := make([]chroma.DocumentMetadata, 0, end-start)
		for i := start; i < end; i++ {
			text := truncateLine(lines[i], maxLineLength)
			meta, err := chroma.NewDocumentMetadataFromMap(map[string]interface{}{
				"meeting": meetingName,
				"line":    i,
			})
			if err != nil {
				return "", fmt.Errorf("failed to create metadata: %w", err)
			}
			ids = append(ids, chroma.DocumentID(fmt.Sprintf("line-%05d", i)))
			texts = append(texts, text)
			metas = append(metas, meta)
		}

		err = collection.Upsert(
			ctx,
			chroma.WithIDs(ids...),
			chroma.WithMetadatas(metas...),
			chroma.WithTexts(texts...),
		)
		if err != nil {
			return "", fmt.Errorf("failed to index transcript batch %d: %w", start/batchSize, err)
		}
	}

	c.logger.Info().Str("collection", name).Int("lines", len(lines)).Msg("indexed meeting transcript")
	return name, nil
}

// CollectionName is the collection holding the transcript of one bot order.
func CollectionName(orderID int64) string {
	return fmt.Sprintf("%s%d", collectionPrefix, orderID)
}

// truncateLine cuts text to at most max bytes without splitting a rune.
func truncateLine(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
