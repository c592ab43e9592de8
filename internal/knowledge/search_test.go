package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/vectorstore"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

type fakeIndex struct {
	matches []vectorstore.Match
	err     error
	calls   int
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Match, error) {
	f.calls++
	return f.matches, f.err
}

func (f *fakeIndex) Upsert(ctx context.Context, points []vectorstore.Point) error { return nil }
func (f *fakeIndex) EnsureCollection(ctx context.Context) error                   { return nil }
func (f *fakeIndex) Close() error                                                 { return nil }

func testRetrievalConfig() config.RetrievalConfig {
	cfg := config.Default().Retrieval
	return cfg
}

func TestSearchUnavailableWithoutBackends(t *testing.T) {
	s := NewSearcher(nil, nil, testRetrievalConfig(), nil)
	assert.Equal(t, ResultUnavailable, s.Search(context.Background(), "rates"))

	s = NewSearcher(&fakeEmbedder{}, nil, testRetrievalConfig(), nil)
	assert.Equal(t, ResultUnavailable, s.Search(context.Background(), "rates"))
}

func TestSearchEmbeddingFailure(t *testing.T) {
	tests := []struct {
		name     string
		embedder *fakeEmbedder
	}{
		{name: "error", embedder: &fakeEmbedder{err: errors.New("backend down")}},
		{name: "empty vector", embedder: &fakeEmbedder{vector: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSearcher(tt.embedder, &fakeIndex{}, testRetrievalConfig(), nil)
			assert.Equal(t, ResultEmbeddingErr, s.Search(context.Background(), "rates"))
		})
	}
}

func TestSearchIndexErrorNeverRaises(t *testing.T) {
	s := NewSearcher(
		&fakeEmbedder{vector: []float32{0.1, 0.2}},
		&fakeIndex{err: errors.New("connection refused")},
		testRetrievalConfig(), nil)

	got := s.Search(context.Background(), "rates")
	assert.True(t, strings.HasPrefix(got, "Error retrieving from knowledge base:"))
	assert.Contains(t, got, "connection refused")
}

func TestSearchNoMatches(t *testing.T) {
	s := NewSearcher(
		&fakeEmbedder{vector: []float32{0.1}},
		&fakeIndex{matches: nil},
		testRetrievalConfig(), nil)

	assert.Equal(t, ResultNoMatches, s.Search(context.Background(), "rates"))
}

func TestSearchExtractsTextWithFallbackKeys(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]interface{}
		want     string
	}{
		{
			name:     "text key",
			metadata: map[string]interface{}{"text": "From the text key."},
			want:     "From the text key.",
		},
		{
			name:     "content key",
			metadata: map[string]interface{}{"content": "From the content key."},
			want:     "From the content key.",
		},
		{
			name:     "page_content key",
			metadata: map[string]interface{}{"page_content": "From the langchain key."},
			want:     "From the langchain key.",
		},
		{
			name:     "text wins over content",
			metadata: map[string]interface{}{"content": "loser", "text": "winner"},
			want:     "winner",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := &fakeIndex{matches: []vectorstore.Match{{Score: 0.9, Metadata: tt.metadata}}}
			s := NewSearcher(&fakeEmbedder{vector: []float32{0.1}}, idx, testRetrievalConfig(), nil)
			assert.Equal(t, tt.want, s.Search(context.Background(), "q"))
		})
	}
}

func TestSearchTruncatesLongDocuments(t *testing.T) {
	long := strings.Repeat("a", 450)
	idx := &fakeIndex{matches: []vectorstore.Match{
		{Score: 0.9, Metadata: map[string]interface{}{"text": long}},
	}}
	s := NewSearcher(&fakeEmbedder{vector: []float32{0.1}}, idx, testRetrievalConfig(), nil)

	got := s.Search(context.Background(), "q")
	assert.Len(t, got, 403) // 400 chars + "..."
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestSearchJoinsDocumentsAndSkipsEmpty(t *testing.T) {
	idx := &fakeIndex{matches: []vectorstore.Match{
		{Score: 0.9, Metadata: map[string]interface{}{"text": "First answer."}},
		{Score: 0.8, Metadata: map[string]interface{}{"text": "   "}},
		{Score: 0.7, Metadata: map[string]interface{}{"text": "Second answer."}},
	}}
	s := NewSearcher(&fakeEmbedder{vector: []float32{0.1}}, idx, testRetrievalConfig(), nil)

	got := s.Search(context.Background(), "q")
	assert.Equal(t, "First answer.\n\n---\n\nSecond answer.", got)
}

func TestSearchAllMatchesEmpty(t *testing.T) {
	idx := &fakeIndex{matches: []vectorstore.Match{
		{Score: 0.9, Metadata: nil},
		{Score: 0.8, Metadata: nil},
	}}
	s := NewSearcher(&fakeEmbedder{vector: []float32{0.1}}, idx, testRetrievalConfig(), nil)

	got := s.Search(context.Background(), "q")
	require.Equal(t, ResultNoContent, got)
}
