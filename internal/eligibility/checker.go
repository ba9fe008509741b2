// Package eligibility applies free and premium tier admission rules to a
// classified document.
package eligibility

import (
	"fmt"

	"convertflow/internal/config"
	"convertflow/internal/domain"
)

// FreeTierResult is the verdict of the free-tier admission check.
type FreeTierResult struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason"`
	Code            string `json:"code,omitempty"`
	RequiresPremium bool   `json:"requires_premium"`
}

// PremiumTierResult is the verdict of the premium-tier admission check.
type PremiumTierResult struct {
	Eligible  bool    `json:"eligible"`
	Reason    string  `json:"reason"`
	Code      string  `json:"code,omitempty"`
	Required  float64 `json:"required"`
	Remaining float64 `json:"remaining"`
}

// Err returns the rejection as a typed error, or nil when allowed.
func (r FreeTierResult) Err() error {
	if r.Allowed {
		return nil
	}
	return &domain.TierLimitError{Code: r.Code, Message: r.Reason}
}

// Err returns the rejection as a typed error, or nil when eligible.
// A credit shortfall becomes an InsufficientCreditsError.
func (r PremiumTierResult) Err() error {
	if r.Eligible {
		return nil
	}
	if r.Code == domain.CodeInsufficientCredits {
		return &domain.InsufficientCreditsError{Required: r.Required, Available: r.Remaining}
	}
	return &domain.TierLimitError{Code: r.Code, Message: r.Reason}
}

// Checker holds the tier limits. Both checks are pure over their inputs.
type Checker struct {
	limits config.TierConfig
}

// NewChecker creates a Checker with the given limits.
func NewChecker(limits config.TierConfig) *Checker {
	return &Checker{limits: limits}
}

// CheckFreeTier admits anonymous callers with a small, text-based document.
func (c *Checker) CheckFreeTier(a *domain.DocumentAnalysis, isAuthenticated bool) FreeTierResult {
	reject := func(code, reason string) FreeTierResult {
		return FreeTierResult{Allowed: false, Reason: reason, Code: code, RequiresPremium: true}
	}

	if isAuthenticated {
		return reject(domain.CodeFreeTierAuthenticated,
			"free tier is for anonymous conversions only; signed-in users convert with credits")
	}
	if a.PageCount > c.limits.FreeMaxPages {
		return reject(domain.CodePageLimit,
			fmt.Sprintf("document has %d pages, free tier allows %d", a.PageCount, c.limits.FreeMaxPages))
	}
	if a.FileSizeBytes > c.limits.FreeMaxBytes {
		return reject(domain.CodeSizeLimit,
			fmt.Sprintf("document is %s, free tier allows %s", formatBytes(a.FileSizeBytes), formatBytes(c.limits.FreeMaxBytes)))
	}
	if a.SuggestedEngine == domain.OutputExcel {
		return reject(domain.CodeExcelRequiresPremium,
			fmt.Sprintf("document has %d tables and needs the Excel conversion path, which requires premium", a.TableCount))
	}
	if a.IsScanned || !a.HasText {
		return reject(domain.CodeOCRRequiresPremium,
			"document has no extractable text and needs OCR, which requires premium")
	}

	return FreeTierResult{Allowed: true, Reason: "document qualifies for free conversion"}
}

// CheckPremiumTier admits a conversion when the caller holds enough credits.
func (c *Checker) CheckPremiumTier(a *domain.DocumentAnalysis, creditsAvailable float64) PremiumTierResult {
	required := float64(a.PageCount) * a.CreditCostPerPage
	result := PremiumTierResult{Required: required, Remaining: creditsAvailable}

	if creditsAvailable < c.limits.PremiumMinCredits {
		result.Code = domain.CodeBelowMinimumCredits
		result.Reason = fmt.Sprintf("premium conversions need at least %s credits, you have %s",
			formatCredits(c.limits.PremiumMinCredits), formatCredits(creditsAvailable))
		return result
	}
	if a.PageCount > c.limits.PremiumMaxPages {
		result.Code = domain.CodePageLimit
		result.Reason = fmt.Sprintf("document has %d pages, premium tier allows %d", a.PageCount, c.limits.PremiumMaxPages)
		return result
	}
	if a.FileSizeBytes > c.limits.PremiumMaxBytes {
		result.Code = domain.CodeSizeLimit
		result.Reason = fmt.Sprintf("document is %s, premium tier allows %s",
			formatBytes(a.FileSizeBytes), formatBytes(c.limits.PremiumMaxBytes))
		return result
	}
	if creditsAvailable < required {
		result.Code = domain.CodeInsufficientCredits
		result.Reason = fmt.Sprintf("conversion needs %s credits (%d pages x %s), you have %s",
			formatCredits(required), a.PageCount, formatCredits(a.CreditCostPerPage), formatCredits(creditsAvailable))
		return result
	}

	result.Eligible = true
	result.Remaining = creditsAvailable - required
	result.Reason = fmt.Sprintf("%s credits will be charged", formatCredits(required))
	return result
}

func formatCredits(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func formatBytes(n int64) string {
	const mb = 1024 * 1024
	if n >= mb {
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", n/1024)
}
