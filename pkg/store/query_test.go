package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVectorQuery(t *testing.T) {
	q := buildVectorQuery("rag_pages", false)
	assert.Contains(t, q, "FROM rag_pages")
	assert.Contains(t, q, "1 - (embedding <=> $1) >= $2")
	assert.Contains(t, q, "ORDER BY embedding <=> $1, id")
	assert.Contains(t, q, "LIMIT $3")
	assert.NotContains(t, q, "$4")

	filtered := buildVectorQuery("rag_pages", true)
	assert.Contains(t, filtered, "metadata @> $4::jsonb")
}

func TestProbesStatement(t *testing.T) {
	assert.Equal(t, "SET ivfflat.probes = 10", probesStatement(10))
	assert.Equal(t, "SET ivfflat.probes = 1", probesStatement(0))
}

func TestBuildKeywordQuery(t *testing.T) {
	q := buildKeywordQuery("rag_pages", false)
	assert.Contains(t, q, `content ILIKE $1 ESCAPE '\'`)
	assert.Contains(t, q, "ORDER BY url, chunk_number")
	assert.NotContains(t, q, "similarity")
	assert.NotContains(t, q, "$3")

	filtered := buildKeywordQuery("rag_pages", true)
	assert.Contains(t, filtered, "metadata @> $3::jsonb")
}

func TestLikePattern(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2-Takt", "%2-Takt%"},
		{"100%", `%100\%%`},
		{"SAE_10W", `%SAE\_10W%`},
		{`a\b`, `%a\\b%`},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, likePattern(tt.in))
		})
	}
}

func TestValidTableName(t *testing.T) {
	assert.True(t, validTableName("rag_pages"))
	assert.True(t, validTableName("_docs2"))
	assert.False(t, validTableName("rag pages"))
	assert.False(t, validTableName("docs; DROP TABLE x"))
	assert.False(t, validTableName("2docs"))
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "Öl", sanitizeText("Ö\x00l"))
	assert.Equal(t, "ab", sanitizeText("a\xffb"))
	assert.Equal(t, "Viskosität", sanitizeText("Viskosität"))
}
