// Package qa validates completed conversions and keeps an audit trail of verdicts.
package qa

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/guardrail"
	"convertflow/internal/port"
)

// singleColumnRowLimit is the row count above which a one-column table is
// treated as a collapsed table structure.
const singleColumnRowLimit = 3

// Input describes one finished conversion.
type Input struct {
	DocumentName         string
	Format               domain.OutputFormat
	EngineRequested      domain.Engine
	EngineUsed           domain.Engine
	EngineChain          []string
	PagesProcessed       int
	EstimatedPages       int
	RoutingConfidence    float64
	Layouts              []domain.RenderedLayout
	Guardrail            *domain.GuardrailDecision
	UserOptedIntoPremium bool
}

// Validator runs the post-conversion checks.
type Validator struct {
	flags   *guardrail.Flags
	maxRows int
	sink    port.QAAuditRepository
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	history []domain.QAValidationResult
	next    int
	full    bool
}

// NewValidator creates a Validator. sink may be nil.
func NewValidator(flags *guardrail.Flags, cfg config.QAConfig, sink port.QAAuditRepository, logger *zap.Logger) *Validator {
	size := cfg.HistorySize
	if size <= 0 {
		size = 1000
	}
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 500
	}
	return &Validator{
		flags:   flags,
		maxRows: maxRows,
		sink:    sink,
		logger:  logger,
		now:     time.Now,
		history: make([]domain.QAValidationResult, size),
	}
}

// Validate runs every check and appends the verdict to the in-memory history.
func (v *Validator) Validate(in Input) domain.QAValidationResult {
	var warnings, errs []string

	w, e := v.checkEngineSelection(in)
	warnings, errs = append(warnings, w...), append(errs, e...)
	// Word output has no table layout to inspect.
	if in.Format != domain.OutputWord {
		warnings = append(warnings, v.checkLayouts(in.Layouts)...)
	}
	w, e = v.checkCost(in)
	warnings, errs = append(warnings, w...), append(errs, e...)
	w, e = v.checkFallbackSafety(in)
	warnings, errs = append(warnings, w...), append(errs, e...)

	status := domain.QAStatusPass
	switch {
	case len(errs) > 0:
		status = domain.QAStatusFail
	case len(warnings) > 0:
		status = domain.QAStatusWarn
	}

	chain := in.EngineChain
	if len(chain) == 0 && in.EngineUsed != "" {
		chain = []string{string(in.EngineUsed)}
	}

	result := domain.QAValidationResult{
		ID:              uuid.New(),
		DocumentName:    in.DocumentName,
		EngineUsed:      in.EngineUsed,
		Status:          status,
		EngineChain:     append([]string{}, chain...),
		ConfidenceScore: in.RoutingConfidence,
		BilledPages:     in.PagesProcessed,
		Warnings:        nonNil(warnings),
		Errors:          nonNil(errs),
		DeterminismHash: DeterminismHash(in.DocumentName, in.EngineUsed, in.RoutingConfidence, in.UserOptedIntoPremium),
		Timestamp:       v.now().UTC(),
	}

	v.append(result)
	if status != domain.QAStatusPass {
		v.logger.Warn("qa validation",
			zap.String("document", in.DocumentName),
			zap.String("status", string(status)),
			zap.Strings("warnings", result.Warnings),
			zap.Strings("errors", result.Errors),
		)
	}
	return result
}

// Persist forwards a verdict to the audit sink, if one is configured.
func (v *Validator) Persist(ctx context.Context, result *domain.QAValidationResult) error {
	if v.sink == nil {
		return nil
	}
	if err := v.sink.Create(ctx, result); err != nil {
		return fmt.Errorf("qa.Persist: %w", err)
	}
	return nil
}

// History returns up to limit recorded verdicts, newest first. limit <= 0 returns all.
func (v *Validator) History(limit int) []domain.QAValidationResult {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := v.next
	if v.full {
		n = len(v.history)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.QAValidationResult, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (v.next - 1 - i + len(v.history)) % len(v.history)
		out = append(out, v.history[idx])
	}
	return out
}

func (v *Validator) append(r domain.QAValidationResult) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history[v.next] = r
	v.next = (v.next + 1) % len(v.history)
	if v.next == 0 {
		v.full = true
	}
}

func (v *Validator) checkEngineSelection(in Input) (warnings, errs []string) {
	if in.EngineUsed == domain.EngineAdobe && !in.UserOptedIntoPremium {
		errs = append(errs, "expensive engine used without user opt-in")
	}
	// Requested-but-skipped because the cheap route was already confident is expected.
	return warnings, errs
}

func (v *Validator) checkLayouts(layouts []domain.RenderedLayout) (warnings []string) {
	if len(layouts) == 0 {
		return []string{"conversion produced an empty layout"}
	}
	for _, l := range layouts {
		if l.Columns == 1 && l.Rows > singleColumnRowLimit {
			warnings = append(warnings, fmt.Sprintf(
				"page %d: single-column table with %d rows, table structure may have collapsed", l.PageNumber, l.Rows))
		}
		if l.Rows > v.maxRows {
			warnings = append(warnings, fmt.Sprintf(
				"page %d: %d rows exceeds %d, possible mis-parse", l.PageNumber, l.Rows, v.maxRows))
		}
	}
	return warnings
}

func (v *Validator) checkCost(in Input) (warnings, errs []string) {
	maxPages := v.flags.Get().MaxPagesPerDoc
	if in.EngineUsed == domain.EngineAdobe && in.PagesProcessed > maxPages {
		errs = append(errs, fmt.Sprintf(
			"expensive engine processed %d pages, per-document cap is %d", in.PagesProcessed, maxPages))
	}
	if in.EstimatedPages > 0 && in.EstimatedPages != in.PagesProcessed {
		warnings = append(warnings, fmt.Sprintf(
			"estimated %d pages but engine billed %d", in.EstimatedPages, in.PagesProcessed))
	}
	return warnings, errs
}

func (v *Validator) checkFallbackSafety(in Input) (warnings, errs []string) {
	if in.EngineUsed != domain.EngineAdobe {
		return nil, nil
	}
	if in.Guardrail == nil {
		return []string{"expensive engine used but no guardrail decision was recorded"}, nil
	}
	if !in.Guardrail.Allowed || in.Guardrail.Gate != domain.GateAllPassed {
		errs = append(errs, fmt.Sprintf(
			"expensive engine used although guardrail gate %q did not pass", in.Guardrail.Gate))
	}
	return warnings, errs
}

// DeterminismHash is the replay key of a conversion decision.
func DeterminismHash(documentName string, engineUsed domain.Engine, confidence float64, optedIn bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.4f|%t", documentName, engineUsed, confidence, optedIn)))
	return hex.EncodeToString(sum[:])
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
