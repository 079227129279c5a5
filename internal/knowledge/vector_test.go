package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/agentoven/aiagent-relay/pkg/models"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Kind() string { return "fake" }

func (f fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

type fakeSearcher struct {
	got    *qdrant.QueryPoints
	points []*qdrant.ScoredPoint
	err    error
}

func (f *fakeSearcher) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.got = req
	return f.points, f.err
}

func str(s string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
}

func point(doc, text string) *qdrant.ScoredPoint {
	payload := map[string]*qdrant.Value{"doc_name": str(doc)}
	if text != "" {
		payload["text"] = str(text)
	}
	return &qdrant.ScoredPoint{Payload: payload}
}

func newTestVector(s pointSearcher, e fakeEmbedder, max int) *Vector {
	return &Vector{search: s, embedder: e, collection: "kb", docField: "doc_name", textField: "text", maxChunks: max}
}

func TestVector_Retrieve(t *testing.T) {
	s := &fakeSearcher{points: []*qdrant.ScoredPoint{
		point("d1", "c1"),
		point("empty", ""),
		point("d2", "c2"),
	}}
	chunks, err := newTestVector(s, fakeEmbedder{}, 3).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []models.KnowledgeChunk{{DocName: "d1", Content: "c1"}, {DocName: "d2", Content: "c2"}}, chunks)

	require.NotNil(t, s.got)
	assert.Equal(t, "kb", s.got.CollectionName)
	assert.Equal(t, uint64(3), s.got.GetLimit())
}

func TestVector_CapsChunks(t *testing.T) {
	s := &fakeSearcher{points: []*qdrant.ScoredPoint{point("a", "1"), point("b", "2"), point("c", "3")}}
	chunks, err := newTestVector(s, fakeEmbedder{}, 2).Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}

func TestVector_Failures(t *testing.T) {
	_, err := newTestVector(&fakeSearcher{err: errors.New("unavailable")}, fakeEmbedder{}, 3).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))

	_, err = newTestVector(&fakeSearcher{}, fakeEmbedder{err: errors.New("401")}, 3).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))

	_, err = (&Vector{}).Retrieve(context.Background(), "q")
	assert.True(t, models.IsKind(err, models.KindRetrieval))
}

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		in     string
		host   string
		port   int
		useTLS bool
	}{
		{"http://localhost:6333", "localhost", 6334, false},
		{"https://xyz.cloud.qdrant.io", "xyz.cloud.qdrant.io", 6334, true},
		{"http://qdrant:7000", "qdrant", 7000, false},
	}
	for _, tt := range tests {
		host, port, useTLS, err := parseQdrantURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.host, host)
		assert.Equal(t, tt.port, port)
		assert.Equal(t, tt.useTLS, useTLS)
	}

	_, _, _, err := parseQdrantURL("not a url")
	assert.Error(t, err)
}
