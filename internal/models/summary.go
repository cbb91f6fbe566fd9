package models

// Summary aggregates check results by outcome. For a well-formed job
// Pass+Fail+Warn+Error == Total == len(results).
type Summary struct {
	Total int `json:"total"`
	Pass  int `json:"pass"`
	Fail  int `json:"fail"`
	Warn  int `json:"warn"`
	Error int `json:"error"`
}

// Partitioned reports whether the four outcome buckets add up to Total.
func (s Summary) Partitioned() bool {
	return s.Pass+s.Fail+s.Warn+s.Error == s.Total
}

// Add counts one result with the given status. Statuses outside PASS, FAIL
// and WARN land in the Error bucket so the partition always holds.
func (s *Summary) Add(status CheckStatus) {
	s.Total++
	switch status {
	case CheckPass:
		s.Pass++
	case CheckFail:
		s.Fail++
	case CheckWarn:
		s.Warn++
	default:
		s.Error++
	}
}

// SummarizeResults counts results into a fresh Summary.
func SummarizeResults(results []CheckResult) Summary {
	var s Summary
	for _, r := range results {
		s.Add(r.Status)
	}
	return s
}
