package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/wissen/internal/models"
	"github.com/xhad/wissen/pkg/retrieval"
	"github.com/xhad/wissen/pkg/tool"
)

type fakeRetriever struct {
	RetrieveFunc func(ctx context.Context, q retrieval.Query) (*retrieval.Response, error)
	queries      []retrieval.Query
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q retrieval.Query) (*retrieval.Response, error) {
	f.queries = append(f.queries, q)
	if f.RetrieveFunc != nil {
		return f.RetrieveFunc(ctx, q)
	}
	return &retrieval.Response{Query: q}, nil
}

type fakeSources []string

func (f fakeSources) Sources(context.Context) ([]string, error) {
	return f, nil
}

func TestSearchMaxResults(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"omitted uses default", 0, tool.DefaultMaxResults},
		{"within limit", 8, 8},
		{"capped at limit", 100, tool.MaxResultsLimit},
		{"negative passed through", -1, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRetriever{}
			search, err := tool.New(r, nil, tool.Config{})
			require.NoError(t, err)

			_, _ = search.Search(context.Background(), tool.Params{Query: "Öl", MaxResults: tt.in, SourceFilter: "Datenblatt"})
			require.Len(t, r.queries, 1)
			assert.Equal(t, tt.want, r.queries[0].MaxResults)
			assert.Equal(t, "Datenblatt", r.queries[0].SourceFilter)
		})
	}
}

func TestSearchMapsResults(t *testing.T) {
	matches := []models.RankedResult{
		{Candidate: models.Candidate{
			Content: "2-Takt-Motoröl",
			Metadata: map[string]interface{}{
				models.MetaSource:           "Datenblatt",
				models.MetaSourceType:       "pdf",
				models.MetaOriginalFilename: "boat_synth_2-t.pdf",
			},
			Similarity: models.Float(0.93),
		}},
		{Candidate: models.Candidate{Content: "Notiz ohne Metadaten"}, RerankScore: models.Float(0.4)},
	}
	r := &fakeRetriever{RetrieveFunc: func(_ context.Context, q retrieval.Query) (*retrieval.Response, error) {
		return &retrieval.Response{Query: q, Results: matches}, nil
	}}
	search, err := tool.New(r, nil, tool.Config{})
	require.NoError(t, err)

	resp, err := search.Search(context.Background(), tool.Params{Query: "2-Takt"})
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)

	assert.Equal(t, tool.Result{
		Content:    "2-Takt-Motoröl",
		Source:     "Datenblatt",
		SourceType: "pdf",
		Similarity: 0.93,
		Metadata:   matches[0].Metadata,
	}, resp.Results[0])

	assert.Equal(t, "Unknown", resp.Results[1].Source)
	assert.Equal(t, "Unknown", resp.Results[1].SourceType)
	assert.Zero(t, resp.Results[1].Similarity)
	assert.NotNil(t, resp.Results[1].Metadata)
	assert.Equal(t, 0.4, *resp.Results[1].RerankScore)

	assert.Equal(t, matches, resp.Matches)
}

func TestSearchPropagatesErrors(t *testing.T) {
	r := &fakeRetriever{RetrieveFunc: func(context.Context, retrieval.Query) (*retrieval.Response, error) {
		return nil, retrieval.ErrEmbedding
	}}
	search, err := tool.New(r, nil, tool.Config{})
	require.NoError(t, err)

	_, err = search.Search(context.Background(), tool.Params{Query: "x"})
	assert.True(t, errors.Is(err, retrieval.ErrEmbedding))
}

func TestAvailableSources(t *testing.T) {
	search, err := tool.New(&fakeRetriever{}, fakeSources{"a.pdf", "b.txt"}, tool.Config{})
	require.NoError(t, err)

	sources, err := search.AvailableSources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.txt"}, sources)

	noSources, err := tool.New(&fakeRetriever{}, nil, tool.Config{})
	require.NoError(t, err)
	_, err = noSources.AvailableSources(context.Background())
	assert.ErrorIs(t, err, tool.ErrSourcesUnavailable)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := tool.New(nil, nil, tool.Config{})
	assert.Error(t, err)

	_, err = tool.New(&fakeRetriever{}, nil, tool.Config{DefaultMaxResults: 20, MaxResultsLimit: 10})
	assert.Error(t, err)
}
