package resolver

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/groundwork/core"
	"github.com/poiesic/groundwork/loader"
)

// DetectKind infers the kind of a source identifier.
//
// URLs are classified as video, sitemap or web page. Existing paths are
// classified as a directory or by file extension. Anything else is treated
// as literal text.
func DetectKind(identifier string) core.Kind {
	if u, err := url.Parse(identifier); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		switch {
		case loader.IsVideoURL(identifier):
			return core.KindYoutubeVideo
		case strings.HasSuffix(strings.ToLower(u.Path), ".xml"), strings.Contains(strings.ToLower(identifier), "sitemap"):
			return core.KindSitemap
		default:
			return core.KindWebPage
		}
	}

	info, err := os.Stat(identifier)
	if err != nil {
		return core.KindText
	}
	if info.IsDir() {
		return core.KindDirectory
	}
	return KindForPath(identifier)
}

// KindForPath maps a file path to a kind by extension. Unknown extensions are read as text.
func KindForPath(path string) core.Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".mdx":
		return core.KindMDX
	case ".xml":
		return core.KindXML
	case ".json":
		return core.KindJSON
	case ".csv":
		return core.KindCSV
	case ".pdf":
		return core.KindPDFFile
	default:
		return core.KindTextFile
	}
}
