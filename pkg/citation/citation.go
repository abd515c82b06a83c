// Package citation decides which retrieved passages may be cited back to
// the user. Only results whose vector similarity reaches the configured
// floor contribute a (filename, page) reference; everything else may be
// used for ranking but never shown as a source.
package citation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xhad/wissen/internal/models"
)

// Citations maps a source filename to its sorted, unique page numbers.
type Citations map[string][]int

type Reference struct {
	Filename string `json:"filename"`
	Pages    []int  `json:"pages"`
}

// Selector applies a fixed similarity floor.
type Selector struct {
	MinScore float64
}

func (s Selector) Select(results []models.RankedResult) Citations {
	return Select(results, s.MinScore)
}

// Select returns the citable sources among results. Results without a
// similarity (keyword-only hits) are never citable.
func Select(results []models.RankedResult, minScore float64) Citations {
	pages := make(map[string]map[int]struct{})
	for _, r := range results {
		if r.Similarity == nil || *r.Similarity < minScore {
			continue
		}
		name := r.Filename()
		if name == "" {
			continue
		}
		if pages[name] == nil {
			pages[name] = make(map[int]struct{})
		}
		pages[name][r.Page()] = struct{}{}
	}

	citations := make(Citations, len(pages))
	for name, set := range pages {
		list := make([]int, 0, len(set))
		for p := range set {
			list = append(list, p)
		}
		sort.Ints(list)
		citations[name] = list
	}
	return citations
}

func (c Citations) Contains(filename string, page int) bool {
	for _, p := range c[filename] {
		if p == page {
			return true
		}
	}
	return false
}

// Len returns the number of (filename, page) pairs.
func (c Citations) Len() int {
	n := 0
	for _, pages := range c {
		n += len(pages)
	}
	return n
}

// References returns the citations ordered by filename.
func (c Citations) References() []Reference {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make([]Reference, 0, len(names))
	for _, name := range names {
		refs = append(refs, Reference{Filename: name, Pages: c[name]})
	}
	return refs
}

// Format renders the source list appended to generated answers.
func (c Citations) Format() string {
	if len(c) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("### Verwendete Dokumente:\n")
	for _, ref := range c.References() {
		for _, page := range ref.Pages {
			fmt.Fprintf(&b, "- **Quelle:** %s, Seite %d\n", ref.Filename, page)
		}
	}
	return b.String()
}
