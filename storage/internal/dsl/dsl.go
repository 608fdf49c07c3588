// Package dsl builds the JSON bodies shared by the Elasticsearch and
// OpenSearch backends and parses their responses.
//
// Documents are stored as
//
//	{"text": "...", "metadata": {"k": "v"}, "embeddings": [...]}
//
// with every metadata value mapped as a keyword, so scope constraints are
// exact term filters on metadata.<key>.
package dsl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/poiesic/groundwork/core"
)

const (
	// TextField holds the entry text.
	TextField = "text"
	// MetadataField holds the entry metadata object.
	MetadataField = "metadata"
	// VectorField holds the entry vector.
	VectorField = "embeddings"

	// MaxResultWindow is the largest page a search engine returns by default.
	MaxResultWindow = 10000
)

// M is a JSON object.
type M = map[string]any

// Document is the stored form of an entry.
type Document struct {
	Text       string        `json:"text"`
	Metadata   core.Metadata `json:"metadata"`
	Embeddings []float32     `json:"embeddings,omitempty"`
}

// MetadataTemplate maps every metadata value as a keyword.
func MetadataTemplate() []M {
	return []M{{
		"metadata_as_keyword": M{
			"path_match":         MetadataField + ".*",
			"match_mapping_type": "string",
			"mapping":            M{"type": "keyword"},
		},
	}}
}

// ScopeFilter returns one term clause per scope key, in key order.
func ScopeFilter(scope core.Scope) []M {
	keys := scope.Keys()
	clauses := make([]M, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, M{"term": M{MetadataField + "." + k: scope[k]}})
	}
	return clauses
}

// FilterQuery returns a bool filter matching scope, restricted to ids when given.
func FilterQuery(ids []string, scope core.Scope) M {
	filter := ScopeFilter(scope)
	if len(ids) > 0 {
		filter = append(filter, M{"ids": M{"values": ids}})
	}
	if len(filter) == 0 {
		return M{"match_all": M{}}
	}
	return M{"bool": M{"filter": filter}}
}

// Encode serializes v as a JSON request body.
func Encode(v any) (*bytes.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

// BulkBody renders entries as an NDJSON bulk index request.
func BulkBody(entries []*core.Entry) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(M{"index": M{"_id": e.ID}}); err != nil {
			return nil, err
		}
		if err := enc.Encode(Document{Text: e.Text, Metadata: e.Metadata, Embeddings: e.Vector}); err != nil {
			return nil, err
		}
	}
	return &buf, nil
}

// Hit is one search hit.
type Hit struct {
	ID     string   `json:"_id"`
	Score  float32  `json:"_score"`
	Source Document `json:"_source"`
}

type searchResponse struct {
	Hits struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// ParseHits decodes the hits of a search response.
func ParseHits(body io.Reader) ([]Hit, error) {
	var resp searchResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	return resp.Hits.Hits, nil
}

// Matches converts hits to matches, mapping engine scores through score.
func Matches(hits []Hit, score func(float32) float32) []*core.Match {
	matches := make([]*core.Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, &core.Match{
			ID:       h.ID,
			Text:     h.Source.Text,
			Metadata: h.Source.Metadata,
			Score:    score(h.Score),
		})
	}
	return matches
}

// GetResult converts hits to a GetResult.
func GetResult(hits []Hit) *core.GetResult {
	result := &core.GetResult{IDs: make([]string, 0, len(hits)), Metadatas: make([]core.Metadata, 0, len(hits))}
	for _, h := range hits {
		result.IDs = append(result.IDs, h.ID)
		result.Metadatas = append(result.Metadatas, h.Source.Metadata)
	}
	return result
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// CheckBulk returns an error describing the first rejected item of a bulk response.
func CheckBulk(body io.Reader) error {
	var resp bulkResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if !resp.Errors {
		return nil
	}
	failed := 0
	var first string
	for _, item := range resp.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			if failed == 0 {
				first = fmt.Sprintf("%s: %s: %s", result.ID, result.Error.Type, result.Error.Reason)
			}
			failed++
		}
	}
	return fmt.Errorf("%d of %d items rejected, first %s", failed, len(resp.Items), first)
}

// ParseCount decodes a count response.
func ParseCount(body io.Reader) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("decoding count response: %w", err)
	}
	return resp.Count, nil
}

// ParseDeleted decodes a delete-by-query response.
func ParseDeleted(body io.Reader) (int, error) {
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return 0, fmt.Errorf("decoding delete response: %w", err)
	}
	return resp.Deleted, nil
}

// ResponseError formats an error response body.
func ResponseError(status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var resp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &resp) == nil && resp.Error.Type != "" {
		return fmt.Errorf("status %d: %s: %s", status, resp.Error.Type, resp.Error.Reason)
	}
	return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw)))
}
