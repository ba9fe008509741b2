package port

import "context"

// ProbeResult is the structural signal returned by an external layout service.
type ProbeResult struct {
	TableCount int
	FullText   string
	Confidence *float64
}

// LayoutProbe abstracts the external structural/layout service.
// A probe failure says nothing about whether the document itself is valid.
type LayoutProbe interface {
	Probe(ctx context.Context, pdf []byte) (*ProbeResult, error)
}
