package search

import "time"

// Candidate is one parsed search hit. Seeders and leechers are swarm health
// counters used to rank candidates; a candidate without a magnet is useless
// and never survives feed parsing.
type Candidate struct {
	Title     string
	Magnet    string
	Seeders   int
	Leechers  int
	Size      int64
	Published time.Time
	Category  string
	Source    string
}

// ResultSet is the ranked outcome of one search. It is owned by the session
// that requested it and must not be mutated after creation.
type ResultSet struct {
	Query      string
	Category   string
	Candidates []Candidate
}

// Len returns the number of ranked candidates.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}

	return len(rs.Candidates)
}

// Best returns the top-ranked candidate, or false when the set is empty.
func (rs *ResultSet) Best() (Candidate, bool) {
	if rs.Len() == 0 {
		return Candidate{}, false
	}

	return rs.Candidates[0], true
}

// Page returns the candidates for the given zero-based page together with the
// absolute index of the first entry. Offsets are computed by the caller via
// ClampPage, so out-of-range input here simply yields an empty slice.
func (rs *ResultSet) Page(page, pageSize int) ([]Candidate, int) {
	if rs.Len() == 0 || pageSize < 1 {
		return nil, 0
	}

	start := page * pageSize
	if start >= len(rs.Candidates) {
		return nil, start
	}

	end := start + pageSize
	if end > len(rs.Candidates) {
		end = len(rs.Candidates)
	}

	return rs.Candidates[start:end], start
}

// TotalPages reports how many pages the set spans at the given page size.
func (rs *ResultSet) TotalPages(pageSize int) int {
	if rs.Len() == 0 || pageSize < 1 {
		return 0
	}

	return (len(rs.Candidates) + pageSize - 1) / pageSize
}

// ClampPage bounds a requested page into the valid range. Out-of-range
// pagination requests are clamped rather than rejected.
func (rs *ResultSet) ClampPage(page, pageSize int) int {
	total := rs.TotalPages(pageSize)
	if total == 0 {
		return 0
	}

	if page < 0 {
		return 0
	}

	if page >= total {
		return total - 1
	}

	return page
}
