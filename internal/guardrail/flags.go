// Package guardrail gates use of the expensive conversion engine.
package guardrail

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"convertflow/internal/config"
)

// Flags is the process-wide, read-mostly flag state. It is loaded once at
// startup and only changes through the admin methods below; every read sees
// the latest write.
type Flags struct {
	mu             sync.RWMutex
	cfg            config.FlagsConfig
	disabledReason string
	changedAt      time.Time
}

// FlagsSnapshot is a point-in-time copy of the flags plus admin metadata.
type FlagsSnapshot struct {
	config.FlagsConfig
	DisabledReason string    `json:"disabled_reason,omitempty"`
	ChangedAt      time.Time `json:"changed_at,omitempty"`
}

// NewFlags creates the flag store from the loaded configuration.
func NewFlags(cfg config.FlagsConfig) *Flags {
	return &Flags{cfg: cfg}
}

// Get returns the current flag values.
func (f *Flags) Get() config.FlagsConfig {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cfg
}

// Snapshot returns the current flags together with the last admin change.
func (f *Flags) Snapshot() FlagsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FlagsSnapshot{FlagsConfig: f.cfg, DisabledReason: f.disabledReason, ChangedAt: f.changedAt}
}

// SetAdobeEnabled flips the master switch for the expensive engine.
func (f *Flags) SetAdobeEnabled(enabled bool, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.AdobeEnabled = enabled
	f.changedAt = time.Now().UTC()
	if enabled {
		f.disabledReason = ""
	} else {
		f.disabledReason = reason
	}
}

// LogStartup writes every flag value in one line, naming the ones left at their default.
func LogStartup(logger *zap.Logger, cfg config.FlagsConfig) {
	d := config.DefaultFlags()
	var defaulted []string
	check := func(name string, isDefault bool) {
		if isDefault {
			defaulted = append(defaulted, name)
		}
	}
	check("adobe_enabled", cfg.AdobeEnabled == d.AdobeEnabled)
	check("premium_only", cfg.PremiumOnly == d.PremiumOnly)
	check("confidence_threshold", cfg.ConfidenceThreshold == d.ConfidenceThreshold)
	check("max_pages_per_doc", cfg.MaxPagesPerDoc == d.MaxPagesPerDoc)
	check("max_docs_per_user_per_day", cfg.MaxDocsPerUserPerDay == d.MaxDocsPerUserPerDay)
	check("max_pages_per_user_per_day", cfg.MaxPagesPerUserPerDay == d.MaxPagesPerUserPerDay)
	check("qa_strict_mode", cfg.QAStrictMode == d.QAStrictMode)
	check("auto_fallback_on_failure", cfg.AutoFallbackOnFailure == d.AutoFallbackOnFailure)
	check("retry_on_failure", cfg.RetryOnFailure == d.RetryOnFailure)

	logger.Info("guardrail flags loaded",
		zap.Bool("adobe_enabled", cfg.AdobeEnabled),
		zap.Bool("premium_only", cfg.PremiumOnly),
		zap.Float64("confidence_threshold", cfg.ConfidenceThreshold),
		zap.Int("max_pages_per_doc", cfg.MaxPagesPerDoc),
		zap.Int("max_docs_per_user_per_day", cfg.MaxDocsPerUserPerDay),
		zap.Int("max_pages_per_user_per_day", cfg.MaxPagesPerUserPerDay),
		zap.Bool("qa_strict_mode", cfg.QAStrictMode),
		zap.Bool("auto_fallback_on_failure", cfg.AutoFallbackOnFailure),
		zap.Bool("retry_on_failure", cfg.RetryOnFailure),
		zap.Strings("at_default", defaulted),
	)
}
