package eligibility_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"convertflow/internal/config"
	"convertflow/internal/domain"
	"convertflow/internal/eligibility"
)

func textDoc(pages int, size int64) *domain.DocumentAnalysis {
	return &domain.DocumentAnalysis{
		PageCount:       pages,
		FileSizeBytes:   size,
		HasText:         true,
		SuggestedEngine: domain.OutputWord,
		Engine:          domain.EngineLibreOffice,
	}
}

func TestCheckFreeTier_ScenarioA(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())

	res := c.CheckFreeTier(textDoc(1, 1536*1024), false)
	assert.True(t, res.Allowed)
	assert.False(t, res.RequiresPremium)
	assert.NoError(t, res.Err())
}

func TestCheckFreeTier_Rejections(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())

	scanned := textDoc(1, 1024)
	scanned.HasText = false
	scanned.IsScanned = true

	excel := textDoc(1, 1024)
	excel.SuggestedEngine = domain.OutputExcel
	excel.HasTables = true
	excel.TableCount = 2

	tests := []struct {
		name     string
		doc      *domain.DocumentAnalysis
		authed   bool
		code     string
		contains string
	}{
		{"authenticated", textDoc(1, 1024), true, domain.CodeFreeTierAuthenticated, "anonymous"},
		{"too many pages", textDoc(12, 1024), false, domain.CodePageLimit, "12 pages, free tier allows 1"},
		{"too large", textDoc(1, 3*1024*1024), false, domain.CodeSizeLimit, "3.0 MB"},
		{"scanned", scanned, false, domain.CodeOCRRequiresPremium, "OCR"},
		{"excel path", excel, false, domain.CodeExcelRequiresPremium, "Excel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.CheckFreeTier(tt.doc, tt.authed)
			assert.False(t, res.Allowed)
			assert.True(t, res.RequiresPremium)
			assert.Equal(t, tt.code, res.Code)
			assert.Contains(t, res.Reason, tt.contains)

			err := res.Err()
			assert.True(t, errors.Is(err, domain.ErrTierLimitExceeded))
		})
	}
}

func TestCheckPremiumTier_ScenarioC(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())
	doc := textDoc(2, 1024)
	doc.CreditCostPerPage = 5

	res := c.CheckPremiumTier(doc, 25)
	assert.False(t, res.Eligible)
	assert.Equal(t, domain.CodeBelowMinimumCredits, res.Code)
	assert.Contains(t, res.Reason, "30")
	assert.Contains(t, res.Reason, "25")
}

func TestCheckPremiumTier_Eligible(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())
	doc := textDoc(4, 1024)
	doc.CreditCostPerPage = 5

	res := c.CheckPremiumTier(doc, 100)
	assert.True(t, res.Eligible)
	assert.Equal(t, 20.0, res.Required)
	assert.Equal(t, 80.0, res.Remaining)
	assert.NoError(t, res.Err())
}

func TestCheckPremiumTier_InsufficientForDocument(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())
	doc := textDoc(10, 1024)
	doc.CreditCostPerPage = 5

	res := c.CheckPremiumTier(doc, 40)
	assert.False(t, res.Eligible)
	assert.Equal(t, domain.CodeInsufficientCredits, res.Code)
	assert.Equal(t, 50.0, res.Required)

	var ice *domain.InsufficientCreditsError
	assert.True(t, errors.As(res.Err(), &ice))
	assert.Equal(t, 10.0, ice.Shortfall())
}

func TestCheckPremiumTier_Caps(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())

	pages := textDoc(101, 1024)
	res := c.CheckPremiumTier(pages, 1000)
	assert.Equal(t, domain.CodePageLimit, res.Code)
	assert.Contains(t, res.Reason, "101 pages, premium tier allows 100")

	size := textDoc(3, 101*1024*1024)
	res = c.CheckPremiumTier(size, 1000)
	assert.Equal(t, domain.CodeSizeLimit, res.Code)
}

func TestCheckPremiumTier_Idempotent(t *testing.T) {
	c := eligibility.NewChecker(config.DefaultTiers())
	doc := textDoc(7, 4096)
	doc.CreditCostPerPage = 5

	for _, credits := range []float64{0, 25, 30, 35, 100} {
		first := c.CheckPremiumTier(doc, credits)
		second := c.CheckPremiumTier(doc, credits)
		assert.Equal(t, first, second)
	}
	assert.Equal(t, 7, doc.PageCount)
}
