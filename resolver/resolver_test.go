package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/chunker"
	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/loader"
)

func TestDetectKind(t *testing.T) {
	dir := t.TempDir()
	files := map[string]core.Kind{
		"notes.md":   core.KindMDX,
		"page.mdx":   core.KindMDX,
		"feed.XML":   core.KindXML,
		"data.json":  core.KindJSON,
		"table.csv":  core.KindCSV,
		"paper.pdf":  core.KindPDFFile,
		"readme.txt": core.KindTextFile,
		"Makefile":   core.KindTextFile,
	}
	for name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	tests := []struct {
		in   string
		want core.Kind
	}{
		{"https://www.youtube.com/watch?v=abc", core.KindYoutubeVideo},
		{"https://youtu.be/abc", core.KindYoutubeVideo},
		{"https://example.com/sitemap.xml", core.KindSitemap},
		{"https://example.com/sitemap_index", core.KindSitemap},
		{"https://example.com/feed.xml", core.KindSitemap},
		{"https://example.com/docs/intro", core.KindWebPage},
		{"http://example.com", core.KindWebPage},
		{dir, core.KindDirectory},
		{"just some literal text", core.KindText},
		{filepath.Join(dir, "missing.pdf"), core.KindText},
	}
	for name, want := range files {
		tests = append(tests, struct {
			in   string
			want core.Kind
		}{filepath.Join(dir, name), want})
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.in))
		})
	}
}

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	c, err := chunker.New()
	require.NoError(t, err)
	return New(c)
}

func TestResolve_LazyAndMemoized(t *testing.T) {
	r := newResolver(t)
	assert.Zero(t, r.Constructed())

	b1, err := r.Resolve(core.TextSource("hello"), nil)
	require.NoError(t, err)
	assert.Equal(t, core.KindText, b1.Kind)
	assert.Equal(t, 1, r.Constructed())

	b2, err := r.Resolve(core.NewSource("other text", ""), nil)
	require.NoError(t, err)
	assert.Same(t, b1.Loader, b2.Loader)
	assert.Equal(t, 1, r.Constructed())
	assert.NotNil(t, b2.Chunker)
}

func TestResolve_Unsupported(t *testing.T) {
	r := newResolver(t)
	_, err := r.Resolve(core.NewSource("photo.png", core.Kind("image")), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedSourceKind)
}

type stubLoader struct{}

func (stubLoader) Load(context.Context, core.Source) (*core.LoadResult, error) {
	return &core.LoadResult{SourceID: "stub"}, nil
}

func TestResolve_OverrideWins(t *testing.T) {
	r := newResolver(t)
	custom, err := chunker.New(chunker.WithConfig(chunker.Config{ChunkSize: 10}))
	require.NoError(t, err)

	b, err := r.Resolve(core.NewSource("photo.png", core.Kind("image")), &Override{Loader: stubLoader{}, Chunker: custom})
	require.NoError(t, err)
	assert.Equal(t, stubLoader{}, b.Loader)
	assert.Same(t, custom, b.Chunker)
	assert.Zero(t, r.Constructed())

	b, err = r.Resolve(core.NewSource("https://example.com/page", ""), &Override{Kind: core.KindText})
	require.NoError(t, err)
	assert.Equal(t, core.KindText, b.Kind)
	assert.IsType(t, &loader.TextLoader{}, b.Loader)
}

func TestResolve_DirectoryReResolvesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("plain"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"k": "v"}`), 0o644))

	r := newResolver(t)
	b, err := r.Resolve(core.NewSource(dir, ""), nil)
	require.NoError(t, err)
	require.Equal(t, core.KindDirectory, b.Kind)

	res, err := b.Loader.Load(context.Background(), core.NewSource(dir, core.KindDirectory))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "plain", res.Records[0].Content)
	assert.Equal(t, "k: v", res.Records[1].Content)
	assert.Equal(t, 3, r.Constructed())
}
