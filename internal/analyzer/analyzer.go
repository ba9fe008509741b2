// Package analyzer classifies uploaded PDFs and recommends a conversion route.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"convertflow/internal/billing"
	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/port"
)

// Analyzer produces a DocumentAnalysis for one document.
type Analyzer struct {
	cfg       config.RoutingConfig
	inspector Inspector
	logger    *zap.Logger
}

// NewAnalyzer creates an Analyzer backed by the pdfcpu inspector.
func NewAnalyzer(cfg config.RoutingConfig, logger *zap.Logger) *Analyzer {
	return NewAnalyzerWithInspector(cfg, PDFInspector{}, logger)
}

// NewAnalyzerWithInspector creates an Analyzer with a custom inspector.
func NewAnalyzerWithInspector(cfg config.RoutingConfig, inspector Inspector, logger *zap.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, inspector: inspector, logger: logger}
}

// Analyze classifies doc. probe may be nil. A probe failure degrades the
// result to text-extractability routing; an unreadable document is an error.
func (a *Analyzer) Analyze(ctx context.Context, doc []byte, fileSizeBytes int64, probe port.LayoutProbe) (*domain.DocumentAnalysis, error) {
	insp, err := a.inspector.Inspect(doc)
	if err != nil {
		return nil, err
	}

	result := &domain.DocumentAnalysis{
		PageCount:     insp.PageCount,
		FileSizeBytes: fileSizeBytes,
		HasText:       insp.HasText,
		IsScanned:     !insp.HasText,
	}

	if probe != nil {
		probed, err := a.runProbe(ctx, doc, probe)
		if err != nil {
			a.logger.Warn("layout probe failed, routing on text extractability only",
				zap.Int("page_count", insp.PageCount),
				zap.Error(err),
			)
			result.Degraded = true
		} else {
			result.TableCount = probed.TableCount
			result.HasTables = probed.TableCount > 0
			result.Confidence = probed.Confidence
			result.IsStructuredFormLike = a.isFormLike(insp.PageCount, probed)
		}
	}

	a.route(result)
	return result, nil
}

func (a *Analyzer) runProbe(ctx context.Context, doc []byte, probe port.LayoutProbe) (*port.ProbeResult, error) {
	if a.cfg.ProbeTimeoutSecs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(a.cfg.ProbeTimeoutSecs)*time.Second)
		defer cancel()
	}
	res, err := probe.Probe(ctx, doc)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("analyzer: probe returned no result")
	}
	return res, nil
}

// isFormLike reports a small document that looks like a structured form.
func (a *Analyzer) isFormLike(pageCount int, probed *port.ProbeResult) bool {
	if pageCount > a.cfg.FormMaxPages {
		return false
	}
	hasTables := probed.TableCount > 0
	keyword := a.matchesFormKeyword(probed.FullText)
	return (keyword && hasTables) || (hasTables && probed.TableCount <= a.cfg.FormMaxTables)
}

func (a *Analyzer) matchesFormKeyword(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, kw := range a.cfg.FormKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// route applies the routing rules in priority order. The first match wins.
func (a *Analyzer) route(r *domain.DocumentAnalysis) {
	switch {
	case r.HasTables || r.IsStructuredFormLike:
		r.SuggestedEngine = domain.OutputExcel
		r.RequiresPremium = true
		r.Engine = domain.EngineDocAI
		if r.IsStructuredFormLike {
			r.RoutingReason = fmt.Sprintf("structured form with %d tables on %d pages; Excel path needs layout extraction", r.TableCount, r.PageCount)
		} else {
			r.RoutingReason = fmt.Sprintf("%d tables detected; Excel path needs layout extraction", r.TableCount)
		}
	case r.HasText:
		r.SuggestedEngine = domain.OutputWord
		r.RequiresPremium = false
		r.Engine = domain.EngineLibreOffice
		r.RoutingReason = "digital document with extractable text"
	case r.IsScanned:
		r.SuggestedEngine = domain.OutputWord
		r.RequiresPremium = true
		r.Engine = domain.EngineDocAI
		r.RoutingReason = "no extractable text; scanned document needs OCR"
	default:
		a.logger.Error("document matched no routing rule",
			zap.Int("page_count", r.PageCount),
			zap.Bool("has_text", r.HasText),
			zap.Bool("is_scanned", r.IsScanned),
		)
		r.SuggestedEngine = domain.OutputWord
		r.RequiresPremium = false
		r.Engine = domain.EngineLibreOffice
		r.RoutingReason = "no routing rule matched"
		r.CreditCostPerPage = 0
		return
	}
	if r.Degraded {
		r.RoutingReason += " (layout probe unavailable)"
	}
	r.CreditCostPerPage = billing.PerPageEstimate(r.Engine)
}
