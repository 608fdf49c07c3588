package core

import "fmt"

// Kind tags the type of a source and selects its loader and chunker.
type Kind string

const (
	KindWebPage      Kind = "web_page"
	KindSitemap      Kind = "sitemap"
	KindDirectory    Kind = "directory"
	KindText         Kind = "text"
	KindQnAPair      Kind = "qna_pair"
	KindTextFile     Kind = "text_file"
	KindMDX          Kind = "mdx"
	KindXML          Kind = "xml"
	KindJSON         Kind = "json"
	KindCSV          Kind = "csv"
	KindPDFFile      Kind = "pdf_file"
	KindYoutubeVideo Kind = "youtube_video"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindWebPage,
	KindSitemap,
	KindDirectory,
	KindText,
	KindQnAPair,
	KindTextFile,
	KindMDX,
	KindXML,
	KindJSON,
	KindCSV,
	KindPDFFile,
	KindYoutubeVideo,
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k Kind) String() string {
	return string(k)
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedSourceKind, s)
	}
	return k, nil
}
