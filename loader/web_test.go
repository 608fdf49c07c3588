package loader

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Widgets</title><style>body { color: red; }</style></head>
<body>
  <nav>Home | About</nav>
  <header>Site header</header>
  <div id="sidebar">Sidebar links</div>
  <div class="related-posts">Related posts</div>
  <main>
    <h1>All about widgets</h1>
    <p>Widgets are small.</p><p>Gadgets are bigger!!!</p>
    <script>var tracking = true;</script>
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "newlines", in: "one\ntwo\r\nthree", want: "one two three"},
		{name: "whitespace", in: "  a \t\t b  ", want: "a b"},
		{name: "backslashes", in: `C:\path\to`, want: "C:pathto"},
		{name: "hashes", in: "## Title #tag", want: "Title tag"},
		{name: "repeated punctuation", in: "Wow!!! Really??? ok...", want: "Wow! Really? ok."},
		{name: "mixed punctuation kept", in: "Hi?!", want: "Hi?!"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestExtractPageText_StripsBoilerplate(t *testing.T) {
	text, err := ExtractPageText([]byte(testPage))
	require.NoError(t, err)

	assert.Contains(t, text, "All about widgets")
	assert.Contains(t, text, "Widgets are small. Gadgets are bigger!")
	for _, gone := range []string{"Home", "Site header", "Sidebar links", "Related posts", "tracking", "Copyright", "color"} {
		assert.NotContains(t, text, gone)
	}
}

func TestWebPageLoader_Load(t *testing.T) {
	var agent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent.Store(r.UserAgent())
		fmt.Fprint(w, testPage)
	}))
	defer srv.Close()

	l := NewWebPageLoader(WithUserAgent("test-agent"))
	ctx := context.Background()
	source := core.NewSource(srv.URL+"/a", core.KindWebPage)

	first, err := l.Load(ctx, source)
	require.NoError(t, err)
	second, err := l.Load(ctx, source)
	require.NoError(t, err)

	assert.Equal(t, first.SourceID, second.SourceID)
	require.Len(t, first.Records, 1)
	assert.Equal(t, srv.URL+"/a", first.Records[0].Metadata[core.MetaURL])
	assert.Equal(t, "test-agent", agent.Load())

	other, err := l.Load(ctx, core.NewSource(srv.URL+"/b", core.KindWebPage))
	require.NoError(t, err)
	assert.NotEqual(t, first.SourceID, other.SourceID)
}

func TestWebPageLoader_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewWebPageLoader().Load(context.Background(), core.NewSource(srv.URL, core.KindWebPage))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLoad)
}

func sitemapXML(links ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, l := range links {
		fmt.Fprintf(&b, "<url><loc>%s</loc><lastmod>2024-01-01</lastmod></url>", l)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func TestSitemapLoader_PartialFailures(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("%s/page/%d", srv.URL, i))
	}
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML(links...))
	})
	mux.HandleFunc("/page/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/3") || strings.HasSuffix(r.URL.Path, "/7") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "<html><body><p>Content of %s</p></body></html>", r.URL.Path)
	})

	l := NewSitemapLoader(WithWorkers(4))
	res, err := l.Load(context.Background(), core.NewSource(srv.URL+"/sitemap.xml", core.KindSitemap))
	require.NoError(t, err)

	assert.Len(t, res.Records, 8)
	require.Len(t, res.Failures, 2)
	for _, f := range res.Failures {
		assert.ErrorIs(t, f, core.ErrBatchItem)
		assert.ErrorIs(t, f, core.ErrLoad)
	}
	assert.ElementsMatch(t, []string{links[3], links[7]}, []string{res.Failures[0].Item, res.Failures[1].Item})
	assert.NotEmpty(t, res.SourceID)
}

func TestSitemapLoader_AllFail(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sitemapXML(srv.URL+"/missing/1", srv.URL+"/missing/2"))
	})

	_, err := NewSitemapLoader().Load(context.Background(), core.NewSource(srv.URL+"/sitemap.xml", core.KindSitemap))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLoad)
}

func TestSitemapLoader_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewSitemapLoader().Load(context.Background(), core.NewSource(srv.URL+"/sitemap.xml", core.KindSitemap))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLoad)
}

func TestSitemapLoader_LocalFileAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>hello</p>")
	}))
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "sitemap.xml")
	require.NoError(t, os.WriteFile(path, []byte(sitemapXML(srv.URL+"/x")), 0o644))

	res, err := NewSitemapLoader().Load(context.Background(), core.NewSource(path, core.KindSitemap))
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "hello", res.Records[0].Content)

	empty := filepath.Join(dir, "empty.xml")
	require.NoError(t, os.WriteFile(empty, []byte(sitemapXML()), 0o644))
	res, err = NewSitemapLoader().Load(context.Background(), core.NewSource(empty, core.KindSitemap))
	require.NoError(t, err)
	assert.Empty(t, res.Records)
}

func TestSitemapLinks(t *testing.T) {
	t.Run("prefers url > loc", func(t *testing.T) {
		raw := `<urlset><url><loc> https://a.example/1 </loc></url><url><loc>https://a.example/2</loc></url>` +
			`<image><loc>https://a.example/img.png</loc></image></urlset>`
		links, err := SitemapLinks([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example/1", "https://a.example/2"}, links)
	})

	t.Run("falls back to every loc", func(t *testing.T) {
		raw := `<sitemapindex><sitemap><loc>https://a.example/s1.xml</loc></sitemap>` +
			`<sitemap><loc>https://a.example/s2.xml</loc></sitemap><sitemap><loc>https://a.example/s2.xml</loc></sitemap></sitemapindex>`
		links, err := SitemapLinks([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.example/s1.xml", "https://a.example/s2.xml"}, links)
	})
}
