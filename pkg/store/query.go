package store

import (
	"fmt"
	"regexp"
	"strings"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

// probesStatement sets how many ivfflat lists a nearest-neighbour scan
// visits. The default of 1 misses most rows once a metadata filter is applied.
func probesStatement(probes int) string {
	return fmt.Sprintf("SET ivfflat.probes = %d", max(probes, 1))
}

// buildVectorQuery returns the nearest-neighbour query. Parameters:
// $1 query vector, $2 similarity floor, $3 limit, $4 metadata filter (optional).
// Rows come back by ascending cosine distance, ties broken by id.
func buildVectorQuery(table string, filtered bool) string {
	var where strings.Builder
	where.WriteString("1 - (embedding <=> $1) >= $2")
	if filtered {
		where.WriteString(" AND metadata @> $4::jsonb")
	}

	return fmt.Sprintf(`
		SELECT id, url, chunk_number, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1, id
		LIMIT $3`,
		table, where.String())
}

// buildKeywordQuery returns the substring query. Parameters:
// $1 ILIKE pattern, $2 limit, $3 metadata filter (optional).
func buildKeywordQuery(table string, filtered bool) string {
	var where strings.Builder
	where.WriteString(`content ILIKE $1 ESCAPE '\'`)
	if filtered {
		where.WriteString(" AND metadata @> $3::jsonb")
	}

	return fmt.Sprintf(`
		SELECT id, url, chunk_number, content, metadata
		FROM %s
		WHERE %s
		ORDER BY url, chunk_number
		LIMIT $2`,
		table, where.String())
}

// likePattern wraps s in % wildcards with LIKE metacharacters escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// sanitizeText drops invalid UTF-8 and NUL bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, ""), "\x00", "")
}
