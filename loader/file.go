package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"

	"github.com/poiesic/groundwork/core"
)

// FileFormat selects how a FileLoader turns file bytes into records.
type FileFormat int

const (
	// FormatText reads the file verbatim (plain text, markdown, MDX).
	FormatText FileFormat = iota
	// FormatXML extracts the text nodes of an XML document.
	FormatXML
	// FormatJSON flattens a JSON document into "path: value" lines.
	FormatJSON
	// FormatCSV yields one record per row.
	FormatCSV
	// FormatPDF yields one record per page.
	FormatPDF
)

// FileLoader reads a local file. Every record carries the file path as its url.
type FileLoader struct {
	format FileFormat
	opts   options
}

// NewFileLoader creates a loader for files of the given format.
func NewFileLoader(format FileFormat, opts ...Option) *FileLoader {
	return &FileLoader{format: format, opts: newOptions("file-loader", opts)}
}

// Load reads source.Identifier.
func (l *FileLoader) Load(ctx context.Context, source core.Source) (*core.LoadResult, error) {
	path := source.Identifier
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrLoad, err)
	}

	var records []core.LoadedRecord
	switch l.format {
	case FormatText:
		records = textRecords(string(raw))
	case FormatXML:
		records, err = xmlRecords(raw)
	case FormatJSON:
		records, err = jsonRecords(raw)
	case FormatCSV:
		records, err = documentRecords(ctx, documentloaders.NewCSV(bytes.NewReader(raw)))
	case FormatPDF:
		records, err = documentRecords(ctx, documentloaders.NewPDF(bytes.NewReader(raw), int64(len(raw))))
	default:
		err = fmt.Errorf("unknown file format %d", l.format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoad, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrLoad, path, core.ErrEmptyContent)
	}

	for i := range records {
		records[i].Metadata = records[i].Metadata.Merge(map[string]string{core.MetaURL: path})
	}
	l.opts.logger.Debug("loaded file", "path", path, "records", len(records))
	return &core.LoadResult{
		SourceID: core.SourceID(path, contents(records)...),
		Records:  records,
	}, nil
}

func textRecords(text string) []core.LoadedRecord {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []core.LoadedRecord{{Content: text, Metadata: core.Metadata{}}}
}

func xmlRecords(raw []byte) ([]core.LoadedRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	return textRecords(CleanText(nodeText(doc.Selection))), nil
}

func jsonRecords(raw []byte) ([]core.LoadedRecord, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	var lines []string
	flattenJSON("", v, &lines)
	return textRecords(strings.Join(lines, "\n")), nil
}

// flattenJSON writes one "path: value" line per scalar, visiting object keys in sorted order.
func flattenJSON(path string, v any, lines *[]string) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			flattenJSON(joinPath(path, k), val[k], lines)
		}
	case []any:
		for i, item := range val {
			flattenJSON(path+"["+strconv.Itoa(i)+"]", item, lines)
		}
	case nil:
	default:
		*lines = append(*lines, fmt.Sprintf("%s: %v", path, val))
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

type documentLoader interface {
	Load(ctx context.Context) ([]schema.Document, error)
}

// documentRecords converts langchaingo documents into records, one per document.
func documentRecords(ctx context.Context, dl documentLoader) ([]core.LoadedRecord, error) {
	docs, err := dl.Load(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]core.LoadedRecord, 0, len(docs))
	for _, d := range docs {
		if strings.TrimSpace(d.PageContent) == "" {
			continue
		}
		meta := make(core.Metadata, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		records = append(records, core.LoadedRecord{Content: d.PageContent, Metadata: meta})
	}
	return records, nil
}
