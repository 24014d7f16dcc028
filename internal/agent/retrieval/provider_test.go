package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type fakeCursor struct {
	docs []bson.M
	pos  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	raw, err := bson.Marshal(c.docs[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, val)
}

func (c *fakeCursor) Err() error                  { return nil }
func (c *fakeCursor) Close(context.Context) error { return nil }

type fakeAggregator struct {
	docs     []bson.M
	err      error
	pipeline mongodriver.Pipeline
}

func (a *fakeAggregator) Aggregate(_ context.Context, pipeline any) (cursor, error) {
	a.pipeline = pipeline.(mongodriver.Pipeline)
	if a.err != nil {
		return nil, a.err
	}
	return &fakeCursor{docs: a.docs}, nil
}

func TestFetchJoinsContentAndReportsTopScore(t *testing.T) {
	agg := &fakeAggregator{docs: []bson.M{
		{"content": "Refunds are accepted within 30 days.", "score": 0.81},
		{"content": "Shipping is free over $50.", "score": 0.93},
		{"content": "   ", "score": 0.99},
	}}
	p := newMongoProvider(agg, fakeEmbedder{vec: []float32{0.1, 0.2}}, Options{})

	rc, err := p.Fetch(context.Background(), "refund policy", "u1")
	require.NoError(t, err)
	require.Equal(t, "Refunds are accepted within 30 days.\n\nShipping is free over $50.", rc.Text)
	require.InDelta(t, 0.93, rc.TopScore, 1e-9)

	search := agg.pipeline[0][0]
	require.Equal(t, "$vectorSearch", search.Key)
	stage := search.Value.(bson.D).Map()
	require.Equal(t, "vector_index", stage["index"])
	require.Equal(t, "embedding", stage["path"])
	require.Equal(t, int64(100), stage["numCandidates"])
	require.Equal(t, int64(3), stage["limit"])
	require.Equal(t, bson.D{{Key: "userId", Value: "u1"}}, stage["filter"])
}

func TestFetchNoMatches(t *testing.T) {
	p := newMongoProvider(&fakeAggregator{}, fakeEmbedder{vec: []float32{1}}, Options{})
	rc, err := p.Fetch(context.Background(), "anything", "u1")
	require.NoError(t, err)
	require.Nil(t, rc)
}

func TestFetchErrors(t *testing.T) {
	p := newMongoProvider(&fakeAggregator{}, fakeEmbedder{err: errors.New("quota")}, Options{})
	_, err := p.Fetch(context.Background(), "q", "u1")
	require.ErrorContains(t, err, "quota")

	p = newMongoProvider(&fakeAggregator{err: errors.New("index missing")}, fakeEmbedder{vec: []float32{1}}, Options{})
	_, err = p.Fetch(context.Background(), "q", "u1")
	require.ErrorContains(t, err, "index missing")
}
