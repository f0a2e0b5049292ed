// Package aggregate derives the word cloud and contributor views from a record.
package aggregate

import "github.com/starford/ansuz/internal/models"

// Derive returns one unit-weight entry per contribution, in append order, and
// the distinct contributors in first-appearance order. Repeated words are not
// merged. Both results are non-nil, even for an empty record.
func Derive(rec models.Record) ([]models.WordCloudEntry, models.ContributorList) {
	entries := make([]models.WordCloudEntry, 0, len(rec.Contributions))
	contributors := make(models.ContributorList, 0)
	seen := make(map[models.Identity]struct{})

	for _, c := range rec.Contributions {
		entries = append(entries, models.WordCloudEntry{Value: c.Text, Weight: 1})
		if _, ok := seen[c.Author]; ok {
			continue
		}
		seen[c.Author] = struct{}{}
		contributors = append(contributors, c.Author)
	}
	return entries, contributors
}

// Accumulate merges entries with equal values, summing their weights. The
// first occurrence of a value fixes its position.
func Accumulate(entries []models.WordCloudEntry) []models.WordCloudEntry {
	out := make([]models.WordCloudEntry, 0, len(entries))
	pos := make(map[string]int, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.Value]; ok {
			out[i].Weight += e.Weight
			continue
		}
		pos[e.Value] = len(out)
		out = append(out, e)
	}
	return out
}
