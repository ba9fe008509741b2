package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"convertflow/internal/analyzer"
	"convertflow/internal/billing"
	"convertflow/internal/domain"
	"convertflow/internal/eligibility"
	"convertflow/internal/engine"
	"convertflow/internal/guardrail"
	"convertflow/internal/port"
	"convertflow/internal/qa"
)

var pdfMagic = []byte("%PDF-")

// ConvertInput is the DTO for one conversion request.
type ConvertInput struct {
	UserID          string
	IsAuthenticated bool
	DocumentName    string
	FileBytes       []byte
	PremiumOptIn    bool
	// RequireExpensive turns a rejected escalation into an error instead of
	// silently converting with the routed engine.
	RequireExpensive bool
}

// AnalyzeResult is the pre-conversion preview of routing and admission.
type AnalyzeResult struct {
	Analysis         *domain.DocumentAnalysis       `json:"analysis"`
	FreeTier         *eligibility.FreeTierResult    `json:"free_tier,omitempty"`
	PremiumTier      *eligibility.PremiumTierResult `json:"premium_tier,omitempty"`
	CreditsAvailable *float64                       `json:"credits_available,omitempty"`
}

// ConversionService runs the analyze, admit, convert, bill and validate pipeline.
type ConversionService interface {
	Analyze(ctx context.Context, input *ConvertInput) (*AnalyzeResult, error)
	Convert(ctx context.Context, input *ConvertInput) (*domain.ConversionResult, error)
}

type conversionService struct {
	analyzer      *analyzer.Analyzer
	probe         port.LayoutProbe
	checker       *eligibility.Checker
	guard         *guardrail.Guard
	runner        *engine.Runner
	validator     *qa.Validator
	credits       CreditService
	storage       port.ArtifactStorage
	presignExpiry int64
	logger        *zap.Logger
}

// NewConversionService creates a new ConversionService implementation. probe may be nil.
func NewConversionService(
	docAnalyzer *analyzer.Analyzer,
	probe port.LayoutProbe,
	checker *eligibility.Checker,
	guard *guardrail.Guard,
	runner *engine.Runner,
	validator *qa.Validator,
	credits CreditService,
	storage port.ArtifactStorage,
	presignExpiry int64,
	logger *zap.Logger,
) ConversionService {
	return &conversionService{
		analyzer:      docAnalyzer,
		probe:         probe,
		checker:       checker,
		guard:         guard,
		runner:        runner,
		validator:     validator,
		credits:       credits,
		storage:       storage,
		presignExpiry: presignExpiry,
		logger:        logger,
	}
}

func (s *conversionService) Analyze(ctx context.Context, input *ConvertInput) (*AnalyzeResult, error) {
	analysis, err := s.analyze(ctx, input)
	if err != nil {
		return nil, err
	}

	out := &AnalyzeResult{Analysis: analysis}
	if !input.IsAuthenticated {
		free := s.checker.CheckFreeTier(analysis, false)
		out.FreeTier = &free
		return out, nil
	}

	bal, err := s.credits.GetBalance(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	premium := s.checker.CheckPremiumTier(analysis, bal.Credits)
	out.PremiumTier = &premium
	out.CreditsAvailable = &bal.Credits
	return out, nil
}

func (s *conversionService) Convert(ctx context.Context, input *ConvertInput) (*domain.ConversionResult, error) {
	analysis, err := s.analyze(ctx, input)
	if err != nil {
		return nil, err
	}

	result := &domain.ConversionResult{
		ConversionID:    uuid.New(),
		Analysis:        analysis,
		EngineRequested: analysis.Engine,
	}
	if analysis.Degraded {
		result.Notes = append(result.Notes, "layout probe unavailable, routed on text extractability only")
	}

	// Admission.
	var balance float64
	if input.IsAuthenticated {
		bal, err := s.credits.GetBalance(ctx, input.UserID)
		if err != nil {
			return nil, err
		}
		balance = bal.Credits
		if err := s.checker.CheckPremiumTier(analysis, balance).Err(); err != nil {
			return nil, err
		}
		result.Tier = domain.TierPremium
	} else {
		if err := s.checker.CheckFreeTier(analysis, false).Err(); err != nil {
			return nil, err
		}
		result.Tier = domain.TierFree
	}

	// Escalation to the expensive engine is only considered for an opted-in
	// premium user whose document is already on the paid layout route.
	// QA fails any expensive conversion without opt-in, so a user who did not
	// opt in is never escalated even when the premium-only flag is off.
	if result.Tier == domain.TierPremium && input.PremiumOptIn && analysis.Engine == domain.EngineDocAI {
		decision, err := s.escalate(ctx, input, analysis, balance)
		if err != nil {
			return nil, err
		}
		result.Guardrail = &decision
		if decision.Allowed {
			result.EngineRequested = domain.EngineAdobe
		} else {
			if input.RequireExpensive {
				return nil, &domain.GuardrailError{Gate: decision.Gate, Reason: decision.Reason}
			}
			result.Notes = append(result.Notes, "expensive engine not used: "+decision.Reason)
		}
	}

	// Conversion.
	flags := s.guard.Flags().Get()
	run, err := s.runner.Run(ctx,
		engine.FallbackChain(result.EngineRequested, flags.AutoFallbackOnFailure),
		port.ConvertInput{
			FileBytes:    input.FileBytes,
			DocumentName: input.DocumentName,
			Format:       analysis.SuggestedEngine,
			PageCount:    analysis.PageCount,
		},
		engine.Policy{AutoFallback: flags.AutoFallbackOnFailure, Retry: flags.RetryOnFailure},
	)
	if err != nil {
		s.logger.Error("conversion failed",
			zap.String("conversion_id", result.ConversionID.String()),
			zap.String("engine_requested", string(result.EngineRequested)),
			zap.Strings("engine_chain", run.Chain),
			zap.Error(err),
		)
		return nil, err
	}
	result.EngineUsed = run.EngineUsed
	result.EngineChain = run.Chain
	result.PagesProcessed = run.Output.PagesProcessed
	if run.EngineUsed != result.EngineRequested {
		result.Notes = append(result.Notes, fmt.Sprintf("%s failed, converted with %s", result.EngineRequested, run.EngineUsed))
	}

	// Billing uses the pages the engine actually processed.
	breakdown := billing.Calculate(billing.PagesForEngine(run.EngineUsed, run.Output.PagesProcessed))
	result.Billing = &breakdown

	// QA runs before the charge so a strict-mode block is never billed.
	verdict := s.validator.Validate(qa.Input{
		DocumentName:         input.DocumentName,
		Format:               analysis.SuggestedEngine,
		EngineRequested:      result.EngineRequested,
		EngineUsed:           run.EngineUsed,
		EngineChain:          run.Chain,
		PagesProcessed:       run.Output.PagesProcessed,
		EstimatedPages:       analysis.PageCount,
		RoutingConfidence:    analysis.RoutingConfidence(),
		Layouts:              run.Output.Layouts,
		Guardrail:            result.Guardrail,
		UserOptedIntoPremium: input.PremiumOptIn,
	})
	result.QA = &verdict
	if err := s.validator.Persist(ctx, &verdict); err != nil {
		s.logger.Warn("failed to persist qa verdict",
			zap.String("qa_id", verdict.ID.String()),
			zap.Error(err),
		)
	}

	if verdict.Status == domain.QAStatusFail && flags.QAStrictMode {
		result.Blocked = true
		if input.IsAuthenticated {
			result.CreditsRemaining = &balance
		}
		s.logger.Warn("conversion blocked by qa",
			zap.String("conversion_id", result.ConversionID.String()),
			zap.Strings("errors", verdict.Errors),
		)
		return result, nil
	}

	// Past the request deadline the response can no longer reach the caller,
	// so nothing is stored or charged.
	if err := ctx.Err(); err != nil {
		s.logger.Warn("conversion finished after request deadline, not delivering",
			zap.String("conversion_id", result.ConversionID.String()),
			zap.String("engine_used", string(run.EngineUsed)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("conversion finished after the request deadline: %w: %w", domain.ErrEngineTimeout, err)
	}

	key := artifactKey(input.UserID, result.ConversionID, run.Output.Extension)
	if _, err := s.storage.Put(ctx, port.PutObjectInput{
		Key:         key,
		Body:        bytes.NewReader(run.Output.Artifact),
		ContentType: run.Output.ContentType,
		Size:        int64(len(run.Output.Artifact)),
	}); err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}
	result.ArtifactKey = key

	if input.IsAuthenticated {
		remaining := balance
		if breakdown.TotalCredits > 0 {
			mutation, err := s.credits.Deduct(ctx, input.UserID, float64(breakdown.TotalCredits),
				fmt.Sprintf("conversion of %s", input.DocumentName),
				domain.TransactionMetadata{
					ConversionID: result.ConversionID.String(),
					DocumentName: input.DocumentName,
					Engine:       run.EngineUsed,
					Pages:        run.Output.PagesProcessed,
				})
			if err != nil {
				if delErr := s.storage.Delete(ctx, key); delErr != nil {
					s.logger.Warn("failed to delete unbilled artifact", zap.String("key", key), zap.Error(delErr))
				}
				return nil, err
			}
			result.CreditsCharged = float64(breakdown.TotalCredits)
			remaining = mutation.CreditsRemaining
		}
		result.CreditsRemaining = &remaining
	}

	url, err := s.storage.PresignedURL(ctx, key, s.presignExpiry)
	if err != nil {
		s.logger.Warn("failed to presign artifact url", zap.String("key", key), zap.Error(err))
	} else {
		result.DownloadURL = url
	}

	s.logger.Info("conversion completed",
		zap.String("conversion_id", result.ConversionID.String()),
		zap.String("tier", string(result.Tier)),
		zap.String("engine_used", string(result.EngineUsed)),
		zap.Int("pages", result.PagesProcessed),
		zap.Float64("credits_charged", result.CreditsCharged),
		zap.String("qa_status", string(verdict.Status)),
	)
	return result, nil
}

func (s *conversionService) analyze(ctx context.Context, input *ConvertInput) (*domain.DocumentAnalysis, error) {
	if len(input.FileBytes) == 0 || !bytes.HasPrefix(input.FileBytes, pdfMagic) {
		return nil, domain.ErrUnsupportedFileType
	}
	if input.IsAuthenticated && input.UserID == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.analyzer.Analyze(ctx, input.FileBytes, int64(len(input.FileBytes)), s.probe)
}

// escalate runs the guardrail gates, checks that the expensive engine is
// registered and affordable and finally reserves the user's daily quota.
// Only the reservation has a side effect, so it runs last.
func (s *conversionService) escalate(ctx context.Context, input *ConvertInput, analysis *domain.DocumentAnalysis, balance float64) (domain.GuardrailDecision, error) {
	decision := s.guard.CanEscalate(input.PremiumOptIn, analysis.RoutingConfidence(), analysis.PageCount)
	if !decision.Allowed {
		return decision, nil
	}

	if !s.runner.Has(domain.EngineAdobe) {
		return domain.GuardrailDecision{
			Allowed: false,
			Gate:    domain.GateEngineUnavailable,
			Reason:  "expensive engine is not configured on this server",
		}, nil
	}

	cost := billing.Calculate(billing.PagesForEngine(domain.EngineAdobe, analysis.PageCount)).TotalCredits
	if balance < float64(cost) {
		return domain.GuardrailDecision{
			Allowed: false,
			Gate:    domain.GateCredits,
			Reason:  fmt.Sprintf("expensive engine needs %d credits, you have %.0f", cost, balance),
		}, nil
	}

	quota, err := s.guard.ReserveDailyQuota(ctx, input.UserID, analysis.PageCount)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.GuardrailDecision{}, err
		}
		return domain.GuardrailDecision{}, fmt.Errorf("reserving daily quota: %w", err)
	}
	if !quota.Allowed {
		return quota, nil
	}
	return decision, nil
}

func artifactKey(userID string, conversionID uuid.UUID, ext string) string {
	owner := userID
	if owner == "" {
		owner = "anon"
	}
	return fmt.Sprintf("conversions/%s/%s%s", owner, conversionID, ext)
}
