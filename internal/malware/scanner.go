// Package malware composes the reputation sub-checks into a multi-scanner
// report so each contributing signal stays explainable on its own.
package malware

import (
	"fmt"
	"log/slog"

	"github.com/elder-shield/guardian-engine/internal/reputation"
)

// ScanVerdict is a single scanner's conclusion.
type ScanVerdict string

const (
	VerdictClean      ScanVerdict = "clean"
	VerdictInfected   ScanVerdict = "infected"
	VerdictSuspicious ScanVerdict = "suspicious"
	VerdictTimeout    ScanVerdict = "timeout"
)

// RiskLevel grades the combined scanner outcome.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ScannerResult is one named scanner's verdict.
type ScannerResult struct {
	Name    string      `json:"name"`
	Verdict ScanVerdict `json:"verdict"`
	Detail  string      `json:"detail,omitempty"`
}

// Report is the aggregate of all scanners for one target.
type Report struct {
	IsClean      bool            `json:"is_clean"`
	ThreatsFound []string        `json:"threats_found"`
	PerScanner   []ScannerResult `json:"per_scanner"`
	OverallRisk  RiskLevel       `json:"overall_risk"`
}

// Scanner runs the static pattern scanners against a host.
type Scanner struct {
	logger *slog.Logger
	engine *reputation.Engine
}

// NewScanner creates a malware scanner backed by the reputation engine.
func NewScanner(logger *slog.Logger, engine *reputation.Engine) *Scanner {
	return &Scanner{logger: logger, engine: engine}
}

// Scan applies the Blacklist, Pattern/DGA and Typosquat scanners to the host
// and grades the combined outcome.
func (s *Scanner) Scan(host string) *Report {
	report := &Report{
		IsClean:      true,
		ThreatsFound: []string{},
		PerScanner:   []ScannerResult{},
	}

	blacklist := ScannerResult{Name: "Blacklist", Verdict: VerdictClean}
	if hit, entry := reputation.IsBlacklisted(host); hit {
		blacklist.Verdict = VerdictInfected
		blacklist.Detail = fmt.Sprintf("matches blacklist entry %s", entry)
		report.ThreatsFound = append(report.ThreatsFound, "known malicious domain")
	}
	report.PerScanner = append(report.PerScanner, blacklist)

	pattern := ScannerResult{Name: "Pattern", Verdict: VerdictClean}
	if reputation.IsGenerated(host) {
		pattern.Verdict = VerdictSuspicious
		pattern.Detail = "domain name appears algorithmically generated"
		report.ThreatsFound = append(report.ThreatsFound, "DGA-like domain name")
	}
	report.PerScanner = append(report.PerScanner, pattern)

	typosquat := ScannerResult{Name: "Typosquat", Verdict: VerdictClean}
	if hit, brand := reputation.IsTyposquat(host); hit {
		typosquat.Verdict = VerdictSuspicious
		typosquat.Detail = fmt.Sprintf("imitates %s", brand)
		report.ThreatsFound = append(report.ThreatsFound, "typosquatting domain")
	}
	report.PerScanner = append(report.PerScanner, typosquat)

	report.OverallRisk = gradeScanners(report.PerScanner)
	report.IsClean = len(report.ThreatsFound) == 0

	if !report.IsClean {
		s.logger.Debug("malware scan flagged target",
			"host", host,
			"risk", report.OverallRisk,
			"threats", len(report.ThreatsFound))
	}
	return report
}

// gradeScanners applies the risk ladder: any infection is critical, two or
// more suspicious verdicts are high, one is medium.
func gradeScanners(results []ScannerResult) RiskLevel {
	suspicious := 0
	for _, r := range results {
		switch r.Verdict {
		case VerdictInfected:
			return RiskCritical
		case VerdictSuspicious:
			suspicious++
		}
	}
	switch {
	case suspicious >= 2:
		return RiskHigh
	case suspicious == 1:
		return RiskMedium
	default:
		return RiskLow
	}
}
