package domain

// Engine identifies a conversion backend.
type Engine string

const (
	EngineLibreOffice Engine = "libreoffice"
	EngineDocAI       Engine = "docai"
	EngineAdobe       Engine = "adobe"
)

// IsPremium reports whether pages processed by the engine are billed in credits.
func (e Engine) IsPremium() bool {
	return e == EngineDocAI || e == EngineAdobe
}

// OutputFormat is the target format a document is routed to.
type OutputFormat string

const (
	OutputWord  OutputFormat = "word"
	OutputExcel OutputFormat = "excel"
)

// Slab is the pricing bucket of a single page.
type Slab string

const (
	SlabFirstFive Slab = "1-5"
	SlabSixPlus   Slab = "6+"
)

// SlabBoundary is the last page number billed at the first-slab rate.
const SlabBoundary = 5

// SlabForPage returns the slab a page falls in, keyed by its own 1-based number.
func SlabForPage(pageNumber int) Slab {
	if pageNumber <= SlabBoundary {
		return SlabFirstFive
	}
	return SlabSixPlus
}

// TransactionType is the direction of a ledger entry.
type TransactionType string

const (
	TransactionAdd    TransactionType = "add"
	TransactionDeduct TransactionType = "deduct"
)

// QAStatus is the overall verdict of a QA validation run.
type QAStatus string

const (
	QAStatusPass QAStatus = "PASS"
	QAStatusWarn QAStatus = "WARN"
	QAStatusFail QAStatus = "FAIL"
)

// GuardrailGate names the gate that decided a guardrail evaluation.
type GuardrailGate string

const (
	GateMasterSwitch      GuardrailGate = "master_switch"
	GateOptIn             GuardrailGate = "premium_opt_in"
	GateConfidence        GuardrailGate = "confidence_threshold"
	GatePageCap           GuardrailGate = "max_pages_per_doc"
	GateDailyDocs         GuardrailGate = "daily_document_cap"
	GateDailyPages        GuardrailGate = "daily_page_cap"
	GateCredits           GuardrailGate = "expensive_engine_credits"
	GateEngineUnavailable GuardrailGate = "expensive_engine_unavailable"
	GateAllPassed         GuardrailGate = "all_passed"
	GateNotApplicable     GuardrailGate = ""
)

// Tier identifies the admission path a conversion ran under.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Rejection codes carried on eligibility results and structured errors.
const (
	CodeFreeTierAuthenticated = "FREE_TIER_AUTHENTICATED"
	CodePageLimit             = "PAGE_LIMIT_EXCEEDED"
	CodeSizeLimit             = "SIZE_LIMIT_EXCEEDED"
	CodeOCRRequiresPremium    = "OCR_REQUIRES_PREMIUM"
	CodeExcelRequiresPremium  = "EXCEL_REQUIRES_PREMIUM"
	CodeBelowMinimumCredits   = "BELOW_MINIMUM_CREDITS"
	CodeInsufficientCredits   = "INSUFFICIENT_CREDITS"
)
