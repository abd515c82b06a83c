package retrieval

import (
	"encoding/json"
	"strconv"

	"github.com/xhad/wissen/internal/models"
)

// Fuse merges the channel outputs into one list: every vector hit in order,
// then the keyword hits not already present, in their order. It is a
// rank-preserving union, not a score merge.
func Fuse(vector, keyword []models.Candidate) []models.Candidate {
	fused := make([]models.Candidate, 0, len(vector)+len(keyword))
	seen := make(map[string]struct{}, len(vector)+len(keyword))

	add := func(c models.Candidate) {
		key := identity(c)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		fused = append(fused, c)
	}

	for _, c := range vector {
		add(c)
	}
	for _, c := range keyword {
		add(c)
	}
	return fused
}

// identity is the dedup key of a candidate: chunk ID, else URL and chunk
// number, else content plus metadata. json.Marshal sorts map keys so the
// last form does not depend on map iteration order.
func identity(c models.Candidate) string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	if c.URL != "" {
		return "url:" + c.URL + "#" + strconv.Itoa(c.ChunkNumber)
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		meta = nil
	}
	return "content:" + c.Content + "\x00" + string(meta)
}
