// Package validation turns extracted profile positions into an employment
// decision for a target company: per-profile match analysis plus the
// resolution loop that drives search, extraction, and early exit.
package validation

import (
	"github.com/scomax/contact-validator/internal/linkedin"
	"github.com/scomax/contact-validator/internal/matching"
)

// PositionMatch pairs a position with the company match that qualified it.
type PositionMatch struct {
	Position linkedin.Position
	Match    matching.Result
}

// Report summarizes one candidate profile against the target company.
// Best is the highest-scoring qualifying match, ties broken by first-seen
// order; HasCurrentMatch is tracked independently of which match is best.
type Report struct {
	HasCurrentMatch bool
	HasAnyMatch     bool
	Best            *PositionMatch
}

// Analyze scores every position's company against the target. Positions
// without a company are skipped. Empty input yields a zero report.
func Analyze(target string, positions []linkedin.Position, threshold float64) Report {
	var report Report
	for _, pos := range positions {
		if pos.Company == "" {
			continue
		}
		res := matching.Score(target, pos.Company, matching.KindCompany, threshold)
		if !res.IsMatch {
			continue
		}
		report.HasAnyMatch = true
		if pos.IsCurrent {
			report.HasCurrentMatch = true
		}
		if report.Best == nil || res.Score > report.Best.Match.Score {
			report.Best = &PositionMatch{Position: pos, Match: res}
		}
	}
	return report
}
