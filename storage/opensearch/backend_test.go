package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
)

type fakeCluster struct {
	mu     sync.Mutex
	exists bool
	dims   int
	bodies map[string][]string
	hits   string
}

func newFakeCluster(t *testing.T, cfg Config) (*fakeCluster, *Backend) {
	t.Helper()
	fc := &fakeCluster{bodies: map[string][]string{}, hits: `{"hits":{"hits":[]}}`}
	srv := httptest.NewServer(http.HandlerFunc(fc.serve))
	t.Cleanup(srv.Close)

	cfg.Addresses = []string{srv.URL}
	cfg.Index = "kb"
	backend, err := NewBackend(cfg)
	require.NoError(t, err)
	return fc, backend
}

func (fc *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	raw, _ := io.ReadAll(r.Body)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	key := r.Method + " " + r.URL.Path
	fc.bodies[key] = append(fc.bodies[key], string(raw))

	switch {
	case r.URL.Path == "/":
		io.WriteString(w, `{"version":{"distribution":"opensearch","number":"2.11.0"}}`)
	case r.URL.Path == "/kb" && r.Method == http.MethodHead:
		if !fc.exists {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.URL.Path == "/kb" && r.Method == http.MethodPut:
		fc.exists = true
		io.WriteString(w, `{"acknowledged":true}`)
	case r.URL.Path == "/kb" && r.Method == http.MethodDelete:
		fc.exists = false
		io.WriteString(w, `{"acknowledged":true}`)
	case r.URL.Path == "/kb/_mapping":
		raw, _ := json.Marshal(map[string]any{"kb": map[string]any{"mappings": map[string]any{
			"properties": map[string]any{"embeddings": map[string]any{"type": "knn_vector", "dimension": fc.dims}},
		}}})
		w.Write(raw)
	case r.URL.Path == "/kb/_bulk":
		io.WriteString(w, `{"errors":false,"items":[{"index":{"_id":"a","status":201}}]}`)
	case r.URL.Path == "/kb/_search":
		io.WriteString(w, fc.hits)
	case r.URL.Path == "/kb/_delete_by_query":
		io.WriteString(w, `{"deleted":1}`)
	case r.URL.Path == "/kb/_count":
		io.WriteString(w, `{"count":3}`)
	default:
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"type":"illegal_argument_exception","reason":"unexpected"}}`)
	}
}

func (fc *fakeCluster) lastBody(t *testing.T, key string) map[string]any {
	t.Helper()
	fc.mu.Lock()
	defer fc.mu.Unlock()
	bodies := fc.bodies[key]
	require.NotEmpty(t, bodies, key)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(bodies[len(bodies)-1]), &out))
	return out
}

func TestMapping(t *testing.T) {
	m := Mapping(768, Config{EfConstruction: 128, M: 16})
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"settings":{"index":{"knn":true}},
		"mappings":{
			"dynamic_templates":[{"metadata_as_keyword":{"path_match":"metadata.*","match_mapping_type":"string","mapping":{"type":"keyword"}}}],
			"properties":{
				"text":{"type":"text"},
				"metadata":{"type":"object"},
				"embeddings":{"type":"knn_vector","dimension":768,"method":{
					"name":"hnsw","space_type":"cosinesimil","engine":"lucene",
					"parameters":{"ef_construction":128,"m":16}}}
			}
		}
	}`, string(raw))

	raw, err = json.Marshal(Mapping(3, Config{}))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "parameters")
}

func TestSearchQuery_FilterInsideKNN(t *testing.T) {
	raw, err := json.Marshal(SearchQuery([]float32{1, 0}, 4, core.Scope{"agent": "x"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"size":4,
		"query":{"knn":{"embeddings":{"vector":[1,0],"k":4,
			"filter":{"bool":{"filter":[{"term":{"metadata.agent":"x"}}]}}}}},
		"_source":["text","metadata"]
	}`, string(raw))

	raw, err = json.Marshal(SearchQuery([]float32{1}, 1, nil))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "filter")
}

func TestInitialize(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		fc, backend := newFakeCluster(t, Config{})
		require.NoError(t, backend.Initialize(context.Background(), 3))
		body := fc.lastBody(t, "PUT /kb")
		assert.Equal(t, map[string]any{"index": map[string]any{"knn": true}}, body["settings"])
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		fc, backend := newFakeCluster(t, Config{})
		fc.exists = true
		fc.dims = 1536
		err := backend.Initialize(context.Background(), 3)
		require.Error(t, err)
		assert.ErrorIs(t, err, core.ErrConfiguration)
		assert.ErrorIs(t, err, core.ErrDimensionMismatch)
	})
}

func TestSearch_ScoresAsCosine(t *testing.T) {
	fc, backend := newFakeCluster(t, Config{})
	fc.hits = `{"hits":{"hits":[
		{"_id":"a","_score":1.0,"_source":{"text":"alpha","metadata":{"agent":"x"}}},
		{"_id":"b","_score":0.5,"_source":{"text":"bravo","metadata":{"agent":"x"}}}
	]}}`

	matches, err := backend.Search(context.Background(), []float32{1, 0, 0}, 2, core.Scope{"agent": "x"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
	assert.InDelta(t, 0.0, matches[1].Score, 1e-6)
	assert.Equal(t, "alpha", matches[0].Text)
}

func TestWriteDeleteCountReset(t *testing.T) {
	fc, backend := newFakeCluster(t, Config{})
	ctx := context.Background()
	require.NoError(t, backend.Initialize(ctx, 3))

	require.NoError(t, backend.Write(ctx, []*core.Entry{
		{ID: "a", Text: "alpha", Metadata: core.Metadata{"agent": "x"}, Vector: []float32{1, 0, 0}},
	}))

	n, err := backend.DeleteWhere(ctx, core.Scope{"agent": "x"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	body := fc.lastBody(t, "POST /kb/_delete_by_query")
	raw, _ := json.Marshal(body)
	assert.Contains(t, string(raw), `"metadata.agent":"x"`)

	count, err := backend.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, backend.Reset(ctx))
	assert.True(t, fc.exists)
}
