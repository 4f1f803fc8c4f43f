package search

import "sort"

// Rank orders candidates best-first: seeders descending, leechers descending,
// publish date descending. The sort is stable so exact ties keep their
// first-seen feed order, which makes the ranking deterministic.
//
// Zero-seeder candidates are not filtered out. They sort last but stay
// selectable, since a dead-looking swarm occasionally wakes up.
func Rank(candidates []Candidate) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		if a.Seeders != b.Seeders {
			return a.Seeders > b.Seeders
		}

		if a.Leechers != b.Leechers {
			return a.Leechers > b.Leechers
		}

		return a.Published.After(b.Published)
	})

	return ranked
}
