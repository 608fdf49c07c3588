package loader

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/poiesic/groundwork/core"
)

// Transcript metadata keys.
const (
	MetaVideoID = "video_id"
	MetaStart   = "start"
	MetaEnd     = "end"
)

// TranscriptLoader fetches the timed-text transcript of a YouTube video.
type TranscriptLoader struct {
	opts options
}

// NewTranscriptLoader creates a transcript loader.
func NewTranscriptLoader(opts ...Option) *TranscriptLoader {
	return &TranscriptLoader{opts: newOptions("transcript-loader", opts)}
}

// Load fetches the transcript of the video at source.Identifier and returns
// it as a single record.
func (l *TranscriptLoader) Load(ctx context.Context, source core.Source) (*core.LoadResult, error) {
	id, err := VideoID(source.Identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoad, err)
	}

	endpoint, err := url.Parse(l.opts.transcriptURL)
	if err != nil {
		return nil, fmt.Errorf("%w: transcript url: %w", core.ErrConfiguration, err)
	}
	q := endpoint.Query()
	q.Set("v", id)
	q.Set("lang", l.opts.language)
	endpoint.RawQuery = q.Encode()

	body, err := l.opts.fetch(ctx, endpoint.String())
	if err != nil {
		return nil, err
	}
	text, start, end, err := parseTranscript(body)
	if err != nil {
		return nil, fmt.Errorf("%w: transcript %s: %w", core.ErrLoad, id, err)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: video %s has no %s transcript", core.ErrLoad, id, l.opts.language)
	}

	record := core.LoadedRecord{
		Content: text,
		Metadata: core.Metadata{
			core.MetaURL: source.Identifier,
			MetaVideoID:  id,
			MetaStart:    formatSeconds(start),
			MetaEnd:      formatSeconds(end),
		},
	}
	return &core.LoadResult{
		SourceID: core.SourceID(source.Identifier, text),
		Records:  []core.LoadedRecord{record},
	}, nil
}

// parseTranscript joins the <text> cues of a timed-text document and returns
// the start of the first cue and the end of the last.
func parseTranscript(raw []byte) (string, float64, float64, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", 0, 0, err
	}

	var parts []string
	var start, end float64
	doc.Find("text").Each(func(i int, s *goquery.Selection) {
		cue := CleanText(html.UnescapeString(s.Text()))
		if cue == "" {
			return
		}
		at, _ := strconv.ParseFloat(s.AttrOr("start", "0"), 64)
		dur, _ := strconv.ParseFloat(s.AttrOr("dur", "0"), 64)
		if len(parts) == 0 {
			start = at
		}
		end = at + dur
		parts = append(parts, cue)
	})
	return strings.Join(parts, " "), start, end, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// VideoID extracts the video id from watch?v=, youtu.be/, /shorts/ and /embed/ URLs.
func VideoID(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case host == "youtube.com" && u.Path == "/watch":
		id = u.Query().Get("v")
	case host == "youtube.com" && strings.HasPrefix(u.Path, "/shorts/"):
		id = strings.TrimPrefix(u.Path, "/shorts/")
	case host == "youtube.com" && strings.HasPrefix(u.Path, "/embed/"):
		id = strings.TrimPrefix(u.Path, "/embed/")
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

// IsVideoURL reports whether raw is a YouTube video URL.
func IsVideoURL(raw string) bool {
	_, err := VideoID(raw)
	return err == nil
}
