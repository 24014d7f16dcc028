package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/genai"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

const (
	embeddingField = "embedding"
	userField      = "userId"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenAIEmbedder embeds queries with a Gemini embedding model.
type GenAIEmbedder struct {
	client *genai.Client
	model  string
}

func NewGenAIEmbedder(client *genai.Client, modelName string) *GenAIEmbedder {
	return &GenAIEmbedder{client: client, model: modelName}
}

func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_QUERY",
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("embed query: empty embedding")
	}
	return resp.Embeddings[0].Values, nil
}

// Options tunes the vector search.
type Options struct {
	IndexName     string
	Limit         int64
	NumCandidates int64
}

// MongoProvider fetches knowledge-base context with Atlas $vectorSearch.
type MongoProvider struct {
	docs     aggregator
	embedder Embedder
	opts     Options
}

func NewMongoProvider(coll *mongodriver.Collection, embedder Embedder, opts Options) *MongoProvider {
	return newMongoProvider(mongoAggregator{coll: coll}, embedder, opts)
}

func newMongoProvider(docs aggregator, embedder Embedder, opts Options) *MongoProvider {
	if opts.IndexName == "" {
		opts.IndexName = "vector_index"
	}
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	if opts.NumCandidates <= 0 {
		opts.NumCandidates = 100
	}
	return &MongoProvider{docs: docs, embedder: embedder, opts: opts}
}

type searchHit struct {
	Content string  `bson:"content"`
	Score   float64 `bson:"score"`
}

// Fetch returns the user's most relevant documents joined by blank lines and
// the best score, or (nil, nil) when nothing matched.
func (p *MongoProvider) Fetch(ctx context.Context, query, userID string) (*model.RetrievalContext, error) {
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	pipeline := mongodriver.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: p.opts.IndexName},
			{Key: "path", Value: embeddingField},
			{Key: "queryVector", Value: vector},
			{Key: "numCandidates", Value: p.opts.NumCandidates},
			{Key: "limit", Value: p.opts.Limit},
			{Key: "filter", Value: bson.D{{Key: userField, Value: userID}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "content", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}

	cur, err := p.docs.Aggregate(ctx, pipeline)
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Msg("vector search failed")
		return nil, errx.WrapMongo(err)
	}
	defer cur.Close(ctx)

	var (
		parts []string
		top   float64
	)
	for cur.Next(ctx) {
		var hit searchHit
		if err := cur.Decode(&hit); err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		if strings.TrimSpace(hit.Content) == "" {
			continue
		}
		parts = append(parts, hit.Content)
		if hit.Score > top {
			top = hit.Score
		}
	}
	if err := cur.Err(); err != nil {
		return nil, errx.WrapMongo(err)
	}

	if len(parts) == 0 {
		return nil, nil
	}
	logx.Debug().Str("user_id", userID).Int("documents", len(parts)).Float64("top_score", top).Msg("Retrieved knowledge context")
	return &model.RetrievalContext{Text: strings.Join(parts, "\n\n"), TopScore: top}, nil
}

var _ model.ContextProvider = (*MongoProvider)(nil)

type aggregator interface {
	Aggregate(ctx context.Context, pipeline any) (cursor, error)
}

type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoAggregator struct {
	coll *mongodriver.Collection
}

func (a mongoAggregator) Aggregate(ctx context.Context, pipeline any) (cursor, error) {
	return a.coll.Aggregate(ctx, pipeline)
}
