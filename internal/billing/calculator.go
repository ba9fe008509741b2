// Package billing prices conversions page by page using per-engine slab rates.
// It is the only place in the service that knows credit prices.
package billing

import (
	"sort"

	"convertflow/internal/domain"
)

// slabRate holds the per-page price of an engine for each slab.
type slabRate struct {
	firstFive int
	sixPlus   int
}

var rates = map[domain.Engine]slabRate{
	domain.EngineDocAI: {firstFive: 5, sixPlus: 2},
	domain.EngineAdobe: {firstFive: 15, sixPlus: 5},
}

// PageAssignment is one page routed to one engine.
type PageAssignment struct {
	Page   int           `json:"page"`
	Engine domain.Engine `json:"engine"`
}

// RateFor returns the credits charged for a page of the given number on engine.
// Engines without a rate card (libreoffice) are free.
func RateFor(engine domain.Engine, page int) int {
	r, ok := rates[engine]
	if !ok {
		return 0
	}
	if domain.SlabForPage(page) == domain.SlabFirstFive {
		return r.firstFive
	}
	return r.sixPlus
}

// PerPageEstimate is the first-slab rate, the most a single page of engine can cost.
func PerPageEstimate(engine domain.Engine) float64 {
	return float64(RateFor(engine, 1))
}

// PagesForEngine assigns pages 1..pageCount to a single engine.
func PagesForEngine(engine domain.Engine, pageCount int) []PageAssignment {
	out := make([]PageAssignment, 0, pageCount)
	for p := 1; p <= pageCount; p++ {
		out = append(out, PageAssignment{Page: p, Engine: engine})
	}
	return out
}

// Calculate prices a set of page assignments. Input order is not trusted:
// the result depends only on the multiset of (page, engine) pairs.
// Page numbers are assumed valid (≥ 1); callers validate them.
func Calculate(pages []PageAssignment) domain.BillingBreakdown {
	sorted := make([]PageAssignment, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Engine < sorted[j].Engine
	})

	out := domain.BillingBreakdown{
		Pages:            make([]domain.PageBillingInfo, 0, len(sorted)),
		PerEngineSummary: make(map[domain.Engine]domain.EngineSummary),
	}

	// bucket counts per engine and slab
	buckets := make(map[domain.Engine]map[domain.Slab]int)
	for _, p := range sorted {
		slab := domain.SlabForPage(p.Page)
		if buckets[p.Engine] == nil {
			buckets[p.Engine] = make(map[domain.Slab]int)
		}
		buckets[p.Engine][slab]++
		out.Pages = append(out.Pages, domain.PageBillingInfo{
			PageNumber: p.Page,
			Engine:     p.Engine,
			Slab:       slab,
			Credits:    RateFor(p.Engine, p.Page),
		})
	}

	for engine, slabs := range buckets {
		r := rates[engine]
		subtotal := slabs[domain.SlabFirstFive]*r.firstFive + slabs[domain.SlabSixPlus]*r.sixPlus
		out.PerEngineSummary[engine] = domain.EngineSummary{
			PageCount:  slabs[domain.SlabFirstFive] + slabs[domain.SlabSixPlus],
			SlabCounts: slabs,
			Subtotal:   subtotal,
		}
		out.TotalCredits += subtotal
	}

	return out
}
