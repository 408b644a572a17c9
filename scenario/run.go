package scenario

import (
	"fmt"
	"time"

	"github.com/aukilabs/voxcull/graph"
	"github.com/aukilabs/voxcull/receipt"
	"github.com/ethereum/go-ethereum/common"
)

// Report is the outcome of running a scenario.
type Report struct {
	Name     string               `json:"name"`
	Passed   bool                 `json:"passed"`
	Rejected int                  `json:"rejected"`
	Failures []string             `json:"failures,omitempty"`
	Visible  []graph.SectionCoord `json:"visible"`
	Receipt  common.Hash          `json:"receipt"`
	Stats    graph.SearchStats    `json:"stats"`
	Duration time.Duration        `json:"duration"`
}

func (r *Report) fail(format string, args ...any) {
	r.Passed = false
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Run builds the scenario, searches its graph and checks the expectation.
// Unmet expectations are reported as failures; the error is for scenarios that
// cannot be built.
func (s Scenario) Run() (Report, error) {
	start := time.Now()

	g, rejected, err := s.build()
	if err != nil {
		return Report{}, err
	}
	defer g.Close()

	rs, err := g.Search(s.BuildFrustum(), s.SearchDistance, s.OcclusionCulling)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Name:     s.Name,
		Passed:   true,
		Rejected: rejected,
		Receipt:  receipt.Digest(rs),
	}
	seen := make(map[graph.SectionCoord]struct{}, rs.Len())
	for c := range rs.All() {
		if _, ok := seen[c]; ok {
			report.fail("section %v is visible more than once", c)
			continue
		}
		seen[c] = struct{}{}
		report.Visible = append(report.Visible, c)
	}

	for _, c := range s.Expect.Visible {
		if !rs.Contains(c) {
			report.fail("section %v is not visible", c)
		}
	}

	for _, c := range s.Expect.Hidden {
		if rs.Contains(c) {
			report.fail("section %v is visible", c)
		}
	}

	if s.Expect.Count != nil && *s.Expect.Count != rs.Len() {
		report.fail("%d sections are visible, expected %d", rs.Len(), *s.Expect.Count)
	}

	if s.Expect.Rejected != nil && *s.Expect.Rejected != rejected {
		report.fail("%d sections were rejected, expected %d", rejected, *s.Expect.Rejected)
	}

	if s.Expect.Receipt != "" {
		if err := receipt.Verify(rs, common.HexToHash(s.Expect.Receipt)); err != nil {
			report.fail("receipt %s does not match %s", report.Receipt.Hex(), s.Expect.Receipt)
		}
	}

	report.Stats = g.DebugInfo().LastSearch

	if s.OcclusionCulling {
		culled := rs.Clone()
		unculled, err := g.Search(s.BuildFrustum(), s.SearchDistance, false)
		if err != nil {
			return Report{}, err
		}
		for c := range culled.All() {
			if !unculled.Contains(c) {
				report.fail("section %v is visible only with occlusion culling", c)
			}
		}
	}

	report.Duration = time.Since(start)
	return report, nil
}
