package malware

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elder-shield/guardian-engine/internal/reputation"
)

func newTestScanner() *Scanner {
	return NewScanner(slog.Default(), reputation.NewEngine(nil))
}

func TestScan_CleanDomain(t *testing.T) {
	report := newTestScanner().Scan("wikipedia.org")

	assert.True(t, report.IsClean)
	assert.Empty(t, report.ThreatsFound)
	assert.Equal(t, RiskLow, report.OverallRisk)
	require.Len(t, report.PerScanner, 3)
	for _, result := range report.PerScanner {
		assert.Equal(t, VerdictClean, result.Verdict, "scanner %s", result.Name)
	}
}

func TestScan_BlacklistedIsCritical(t *testing.T) {
	report := newTestScanner().Scan("phishing-bank-login.com")

	assert.False(t, report.IsClean)
	assert.Equal(t, RiskCritical, report.OverallRisk)
	assert.Contains(t, report.ThreatsFound, "known malicious domain")
}

func TestScan_TyposquatIsMedium(t *testing.T) {
	report := newTestScanner().Scan("goog1e.com")

	assert.False(t, report.IsClean)
	assert.Equal(t, RiskMedium, report.OverallRisk)
	assert.Contains(t, report.ThreatsFound, "typosquatting domain")
}

func TestScan_DGAIsMedium(t *testing.T) {
	report := newTestScanner().Scan("xk7qz9mw2vb4nr8tlj3p.com")

	assert.Equal(t, RiskMedium, report.OverallRisk)
	assert.Contains(t, report.ThreatsFound, "DGA-like domain name")
}

func TestGradeScanners(t *testing.T) {
	tests := []struct {
		name     string
		verdicts []ScanVerdict
		want     RiskLevel
	}{
		{"all clean", []ScanVerdict{VerdictClean, VerdictClean, VerdictClean}, RiskLow},
		{"one suspicious", []ScanVerdict{VerdictClean, VerdictSuspicious, VerdictClean}, RiskMedium},
		{"two suspicious", []ScanVerdict{VerdictSuspicious, VerdictSuspicious, VerdictClean}, RiskHigh},
		{"infected wins", []ScanVerdict{VerdictInfected, VerdictSuspicious, VerdictSuspicious}, RiskCritical},
		{"timeout is not suspicious", []ScanVerdict{VerdictTimeout, VerdictClean, VerdictClean}, RiskLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []ScannerResult
			for _, v := range tt.verdicts {
				results = append(results, ScannerResult{Verdict: v})
			}
			assert.Equal(t, tt.want, gradeScanners(results))
		})
	}
}
