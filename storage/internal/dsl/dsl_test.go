package dsl

import (
	"bufio"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/groundwork/core"
)

func TestFilterQuery(t *testing.T) {
	t.Run("scope only", func(t *testing.T) {
		q := FilterQuery(nil, core.Scope{"user": "1", "agent": "a"})
		raw, err := json.Marshal(q)
		require.NoError(t, err)
		assert.JSONEq(t, `{"bool":{"filter":[
			{"term":{"metadata.agent":"a"}},
			{"term":{"metadata.user":"1"}}
		]}}`, string(raw))
	})

	t.Run("ids and scope", func(t *testing.T) {
		q := FilterQuery([]string{"x", "y"}, core.Scope{"user": "1"})
		raw, err := json.Marshal(q)
		require.NoError(t, err)
		assert.JSONEq(t, `{"bool":{"filter":[
			{"term":{"metadata.user":"1"}},
			{"ids":{"values":["x","y"]}}
		]}}`, string(raw))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, M{"match_all": M{}}, FilterQuery(nil, nil))
	})
}

func TestBulkBody(t *testing.T) {
	buf, err := BulkBody([]*core.Entry{
		{ID: "a", Text: "alpha", Metadata: core.Metadata{"user": "1"}, Vector: []float32{0.5, 1}},
		{ID: "b", Text: "bravo", Metadata: core.Metadata{"user": "2"}, Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_id":"a"}}`, lines[0])
	assert.JSONEq(t, `{"text":"alpha","metadata":{"user":"1"},"embeddings":[0.5,1]}`, lines[1])
	assert.JSONEq(t, `{"index":{"_id":"b"}}`, lines[2])
}

func TestParseHits(t *testing.T) {
	body := `{"hits":{"total":{"value":2},"hits":[
		{"_id":"a","_score":1.9,"_source":{"text":"alpha","metadata":{"user":"1"}}},
		{"_id":"b","_score":1.2,"_source":{"text":"bravo","metadata":{"user":"1"}}}
	]}}`
	hits, err := ParseHits(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, hits, 2)

	matches := Matches(hits, func(s float32) float32 { return s - 1 })
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "alpha", matches[0].Text)
	assert.InDelta(t, 0.9, matches[0].Score, 1e-6)

	res := GetResult(hits)
	assert.Equal(t, []string{"a", "b"}, res.IDs)
	assert.Equal(t, "1", res.Metadatas[1]["user"])

	_, err = ParseHits(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestCheckBulk(t *testing.T) {
	assert.NoError(t, CheckBulk(strings.NewReader(`{"errors":false,"items":[{"index":{"_id":"a","status":201}}]}`)))

	err := CheckBulk(strings.NewReader(`{"errors":true,"items":[
		{"index":{"_id":"a","status":201}},
		{"index":{"_id":"b","status":400,"error":{"type":"mapper_parsing_exception","reason":"bad vector"}}}
	]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 items rejected")
	assert.Contains(t, err.Error(), "b: mapper_parsing_exception: bad vector")
}

func TestParseCountAndDeleted(t *testing.T) {
	n, err := ParseCount(strings.NewReader(`{"count":42}`))
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	n, err = ParseDeleted(strings.NewReader(`{"took":3,"deleted":7}`))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestResponseError(t *testing.T) {
	err := ResponseError(404, strings.NewReader(`{"error":{"type":"index_not_found_exception","reason":"no such index"},"status":404}`))
	assert.EqualError(t, err, "status 404: index_not_found_exception: no such index")

	err = ResponseError(502, strings.NewReader("bad gateway\n"))
	assert.EqualError(t, err, "status 502: bad gateway")
}
