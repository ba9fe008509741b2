package guardrail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

// Guard evaluates the expensive-engine gates for a single request.
type Guard struct {
	flags  *Flags
	usage  port.EngineUsageRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewGuard creates a Guard. usage may be nil, in which case daily caps are not enforced.
func NewGuard(flags *Flags, usage port.EngineUsageRepository, logger *zap.Logger) *Guard {
	return &Guard{
		flags:  flags,
		usage:  usage,
		logger: logger,
		now:    time.Now,
	}
}

// Flags returns the current flag values.
func (g *Guard) Flags() *Flags {
	return g.flags
}

// CanEscalate decides whether the expensive engine may be used. Gates run in
// order and the first failure is returned on its own; reasons are never merged.
func (g *Guard) CanEscalate(userOptedIn bool, routingConfidence float64, pageCount int) domain.GuardrailDecision {
	f := g.flags.Get()

	if !f.AdobeEnabled {
		return domain.GuardrailDecision{
			Gate:   domain.GateMasterSwitch,
			Reason: "expensive engine disabled by master switch (ADOBE_ENABLED=false)",
		}
	}
	if f.PremiumOnly && !userOptedIn {
		return domain.GuardrailDecision{
			Gate:   domain.GateOptIn,
			Reason: "user has not opted in to the premium engine",
		}
	}
	if routingConfidence >= f.ConfidenceThreshold {
		return domain.GuardrailDecision{
			Gate: domain.GateConfidence,
			Reason: fmt.Sprintf("routing confidence %.2f already meets threshold %.2f; cheaper engine is sufficient",
				routingConfidence, f.ConfidenceThreshold),
		}
	}
	if pageCount > f.MaxPagesPerDoc {
		return domain.GuardrailDecision{
			Gate:   domain.GatePageCap,
			Reason: fmt.Sprintf("document has %d pages, expensive engine allows %d", pageCount, f.MaxPagesPerDoc),
		}
	}

	return domain.GuardrailDecision{
		Allowed: true,
		Gate:    domain.GateAllPassed,
		Reason:  "all guardrail gates passed",
	}
}

// ReserveDailyQuota consumes one document and pageCount pages of the user's
// daily expensive-engine allowance. When a cap would be exceeded nothing is
// consumed and the failing gate is reported.
func (g *Guard) ReserveDailyQuota(ctx context.Context, userID string, pageCount int) (domain.GuardrailDecision, error) {
	if g.usage == nil {
		return domain.GuardrailDecision{Allowed: true, Gate: domain.GateAllPassed, Reason: "daily caps not enforced"}, nil
	}

	f := g.flags.Get()
	day := g.now().UTC().Truncate(24 * time.Hour)

	ok, err := g.usage.Reserve(ctx, userID, day, pageCount, f.MaxDocsPerUserPerDay, f.MaxPagesPerUserPerDay)
	if err != nil {
		return domain.GuardrailDecision{}, fmt.Errorf("guardrail.ReserveDailyQuota: %w", err)
	}
	if ok {
		return domain.GuardrailDecision{Allowed: true, Gate: domain.GateAllPassed, Reason: "within daily caps"}, nil
	}

	used, err := g.usage.Get(ctx, userID, day)
	if err != nil {
		return domain.GuardrailDecision{}, fmt.Errorf("guardrail.ReserveDailyQuota usage: %w", err)
	}
	if used.Documents+1 > f.MaxDocsPerUserPerDay {
		return domain.GuardrailDecision{
			Gate:   domain.GateDailyDocs,
			Reason: fmt.Sprintf("user has converted %d documents today, daily limit is %d", used.Documents, f.MaxDocsPerUserPerDay),
		}, nil
	}
	return domain.GuardrailDecision{
		Gate: domain.GateDailyPages,
		Reason: fmt.Sprintf("user has used %d of %d expensive-engine pages today, document needs %d",
			used.Pages, f.MaxPagesPerUserPerDay, pageCount),
	}, nil
}

// EmergencyDisable turns the expensive engine off immediately, without a redeploy.
func (g *Guard) EmergencyDisable(reason string) {
	g.flags.SetAdobeEnabled(false, reason)
	g.logger.Warn("expensive engine emergency-disabled", zap.String("reason", reason))
}

// Enable turns the expensive engine back on.
func (g *Guard) Enable() {
	g.flags.SetAdobeEnabled(true, "")
	g.logger.Info("expensive engine enabled")
}
