package discovery

import (
	"strings"

	"github.com/pickpal/pickpal/internal/model"
	"github.com/pickpal/pickpal/internal/normalize"
)

// normalizeURL strips scheme, www prefix, query string, and trailing slash
// so the same listing reached through different links compares equal.
func normalizeURL(raw string) string {
	u := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range []string{"https://", "http://"} {
		u = strings.TrimPrefix(u, prefix)
	}
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimSuffix(u, "/")
}

// merge collapses duplicate candidates. URL identity wins first; candidates
// without a shared URL fall back to fuzzy name+brand matching. The most
// complete variant of each group survives, with the others' URLs folded in
// as citations.
func (d *Discoverer) merge(candidates []model.ProductCandidate) []model.ProductCandidate {
	var groups [][]model.ProductCandidate
	urlIndex := make(map[string]int)

	for _, c := range candidates {
		matched := -1
		for _, raw := range c.URLs {
			if i, ok := urlIndex[normalizeURL(raw)]; ok {
				matched = i
				break
			}
		}
		if matched < 0 {
			identity := normalize.Identity(c.Name, c.Brand)
			best := d.mergeThreshold
			for i, group := range groups {
				sim := normalize.NameSimilarity(identity, normalize.Identity(group[0].Name, group[0].Brand))
				if sim >= best {
					matched, best = i, sim
				}
			}
		}
		if matched < 0 {
			matched = len(groups)
			groups = append(groups, nil)
		}
		groups[matched] = append(groups[matched], c)
		for _, raw := range c.URLs {
			urlIndex[normalizeURL(raw)] = matched
		}
	}

	out := make([]model.ProductCandidate, 0, len(groups))
	for _, group := range groups {
		out = append(out, collapse(group))
	}
	return out
}

func collapse(group []model.ProductCandidate) model.ProductCandidate {
	winner := group[0]
	for _, c := range group[1:] {
		if c.Completeness() > winner.Completeness() {
			winner = c
		}
	}

	merged := winner
	merged.URLs = make(map[string]string, len(winner.URLs))
	merged.Meta = make(map[string]string, len(winner.Meta))
	for _, c := range group {
		for src, url := range c.URLs {
			if _, ok := merged.URLs[src]; !ok {
				merged.URLs[src] = url
			}
		}
		for k, v := range c.Meta {
			if _, ok := merged.Meta[k]; !ok {
				merged.Meta[k] = v
			}
		}
	}
	for src, url := range winner.URLs {
		merged.URLs[src] = url
	}
	for k, v := range winner.Meta {
		merged.Meta[k] = v
	}
	return merged
}
