package analyzer

import (
	"fmt"
	"strings"

	"github.com/elder-shield/guardian-engine/internal/classifier"
	"github.com/elder-shield/guardian-engine/internal/malware"
	"github.com/elder-shield/guardian-engine/internal/reputation"
)

// Degraded-signal contributions. A sub-analyzer that was enabled but produced
// nothing is treated as mildly risky, never as zero and never as fatal.
const (
	unknownCertRisk       = 0.4
	unknownReputationRisk = 0.3
	unknownMalwareRisk    = 0.3
	unreachablePageRisk   = 0.10
	plainHTTPRisk         = 0.5
	headerUnreachableRisk = 0.2
)

// combine folds the sub-results into the final score, level, threat type and
// explanation lists. The fold order is fixed so identical inputs always
// produce identical results.
func (a *Analyzer) combine(result *Result, subs *subResults, signals *contentSignals, opts Options) {
	subs.mu.Lock()
	defer subs.mu.Unlock()

	result.Classification = subs.classification
	result.Reputation = subs.reputation
	result.Certificate = subs.certificate
	result.Headers = subs.headers
	result.Malware = subs.malware

	// Step 1: primary classifier score is the base.
	score := a.classifierBase(result, subs.classification)

	// Step 2: content-derived signals, bounded by the configured cap.
	score += a.contentContribution(result, signals)

	// Heuristic weights are damped for registry-trusted sites to avoid
	// false positives on legitimate sites with minor gaps.
	damping := 1.0
	if result.Trusted {
		damping = a.config.TrustedDamping
	}

	// Step 3: transport posture (certificate + headers + scheme).
	score += a.transportContribution(result, subs, opts) * a.config.TransportWeight * damping

	// Step 4: domain reputation.
	score += a.reputationContribution(result, subs.reputation, opts) * a.config.ReputationWeight * damping

	// Step 5: malware scanners.
	score += a.malwareContribution(result, subs.malware, opts) * a.config.MalwareWeight * damping

	result.RiskScore = clampUnit(score)
	result.RiskLevel = classifyLevel(result.RiskScore, result.Trusted)
	result.ThreatType = classifyThreat(result, signals)

	a.explain(result, signals)
}

func (a *Analyzer) classifierBase(result *Result, c *classifier.Classification) float64 {
	if c == nil {
		result.Warnings = append(result.Warnings, "content classifier unavailable; verdict is heuristic-only")
		return 0.15
	}
	result.AIModelsUsed = append(result.AIModelsUsed, c.Model)
	result.AnalyzersRun = append(result.AnalyzersRun, "classifier:"+c.Model)
	for _, p := range c.DetectedPatterns {
		result.Warnings = append(result.Warnings, "content pattern: "+p)
	}

	conf := clampUnit(c.Confidence)
	switch c.RiskLabel {
	case classifier.LabelPhishing:
		return conf
	case classifier.LabelSuspicious:
		return 0.6 * conf
	default:
		return 0.05
	}
}

func (a *Analyzer) contentContribution(result *Result, signals *contentSignals) float64 {
	contribution := 0.0
	if signals.Unreachable {
		contribution += unreachablePageRisk
		result.Warnings = append(result.Warnings, "page content could not be fetched")
	}
	if signals.HasPasswordField {
		contribution += 0.10
		result.Warnings = append(result.Warnings, "page contains a password input field")
	}
	if signals.AsksPersonalInfo {
		contribution += 0.08
		result.Warnings = append(result.Warnings, "page asks for personal or financial identifiers")
	}
	for _, kw := range signals.UrgencyKeywordHits {
		contribution += 0.04
		result.Warnings = append(result.Warnings, "urgency wording on page: "+kw)
	}
	if contribution > a.config.ContentSignalCap {
		contribution = a.config.ContentSignalCap
	}
	return contribution
}

func (a *Analyzer) transportContribution(result *Result, subs *subResults, opts Options) float64 {
	if !opts.SSLCheck {
		return 0
	}

	risk := 0.0
	if strings.HasPrefix(result.URL, "http://") {
		risk += plainHTTPRisk
		result.Warnings = append(result.Warnings, "connection is not encrypted (no HTTPS)")
	}

	switch {
	case subs.certificate != nil:
		result.AnalyzersRun = append(result.AnalyzersRun, "certificate")
		for _, w := range subs.certificate.Warnings {
			result.Warnings = append(result.Warnings, "certificate: "+w)
		}
		if subs.certificate.IsSelfSigned {
			risk += 0.5
		}
		if subs.certificate.IsExpired {
			risk += 0.5
		} else if subs.certificate.DaysUntilExpiry < 30 {
			risk += 0.1
		}
		if !subs.certificate.IsSelfSigned && !isTrustedCAWarningFree(subs.certificate.Warnings) {
			risk += 0.3
		}
	default:
		risk += unknownCertRisk
		result.Warnings = append(result.Warnings, "certificate could not be inspected")
	}

	if subs.headers != nil {
		result.AnalyzersRun = append(result.AnalyzersRun, "headers")
		if subs.headers.Reachable {
			risk += float64(100-subs.headers.Score) / 100 * 0.5
			if subs.headers.Score < 50 {
				result.Warnings = append(result.Warnings, "site is missing most security headers")
			}
		} else {
			risk += headerUnreachableRisk
		}
	}

	return clampUnit(risk)
}

func (a *Analyzer) reputationContribution(result *Result, verdict *reputation.Verdict, opts Options) float64 {
	if !opts.Reputation {
		return 0
	}
	if verdict == nil {
		result.Warnings = append(result.Warnings, "domain reputation unavailable")
		return unknownReputationRisk
	}
	result.AnalyzersRun = append(result.AnalyzersRun, "reputation")
	for _, category := range verdict.Categories {
		result.Warnings = append(result.Warnings, "domain: "+category)
	}
	return clampUnit(float64(verdict.RiskScore) / 100)
}

func (a *Analyzer) malwareContribution(result *Result, report *malware.Report, opts Options) float64 {
	if !opts.Malware {
		return 0
	}
	if report == nil {
		result.Warnings = append(result.Warnings, "malware scan unavailable")
		return unknownMalwareRisk
	}
	result.AnalyzersRun = append(result.AnalyzersRun, "malware")
	for _, threat := range report.ThreatsFound {
		result.Warnings = append(result.Warnings, "malware scan: "+threat)
	}
	switch report.OverallRisk {
	case malware.RiskCritical:
		return 1.0
	case malware.RiskHigh:
		return 0.6
	case malware.RiskMedium:
		return 0.3
	default:
		return 0
	}
}

// classifyLevel applies the dual threshold ladder: lenient for trusted sites,
// strict for unknown ones.
func classifyLevel(score float64, trusted bool) RiskLevel {
	if trusted {
		switch {
		case score < 0.3:
			return LevelSafe
		case score < 0.5:
			return LevelLow
		case score < 0.7:
			return LevelMedium
		default:
			return LevelHigh
		}
	}
	switch {
	case score < 0.2:
		return LevelSafe
	case score < 0.4:
		return LevelLow
	case score < 0.6:
		return LevelMedium
	case score < 0.8:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// classifyThreat picks the dominant threat by fixed priority: explicit
// malware, then credential harvesting, then phishing signals, then
// keyword-only suspicion.
func classifyThreat(result *Result, signals *contentSignals) ThreatType {
	if result.Malware != nil && result.Malware.OverallRisk == malware.RiskCritical {
		return ThreatMalware
	}
	if signals.HasPasswordField && signals.AsksPersonalInfo {
		return ThreatPhishing
	}
	if result.RiskLevel == LevelSafe {
		return ThreatSafe
	}
	if result.Reputation != nil && result.Reputation.Flags.Phishing &&
		(result.Reputation.Class == reputation.ClassSuspicious || result.Reputation.Class == reputation.ClassMalicious) {
		return ThreatPhishing
	}
	if result.Classification != nil {
		switch {
		case result.Classification.RiskLabel == classifier.LabelPhishing:
			return ThreatPhishing
		case result.Classification.ThreatType == "scam":
			return ThreatScam
		}
	}
	return ThreatSuspicious
}

// explain builds the ordered, user-facing recommendation list. Warnings were
// accumulated while combining; nothing detected is dropped.
func (a *Analyzer) explain(result *Result, signals *contentSignals) {
	switch result.RiskLevel {
	case LevelCritical, LevelHigh:
		result.Recommendations = append(result.Recommendations,
			"Do not open this link or reply to this message.",
			"Never enter passwords, OTP codes or ID card numbers on this site.")
	case LevelMedium:
		result.Recommendations = append(result.Recommendations,
			"Be careful with this link. Verify the sender through an official channel first.")
	case LevelLow:
		result.Recommendations = append(result.Recommendations,
			"This link looks mostly safe, but stay alert for unusual requests.")
	default:
		result.Recommendations = append(result.Recommendations,
			"No significant risk detected.")
	}

	switch result.ThreatType {
	case ThreatPhishing:
		result.Recommendations = append(result.Recommendations,
			"This looks like an attempt to steal account credentials. Contact your bank using the number on your card if in doubt.")
	case ThreatScam:
		result.Recommendations = append(result.Recommendations,
			"This looks like a scam offer. Do not transfer money or pay any fee.")
	case ThreatMalware:
		result.Recommendations = append(result.Recommendations,
			"This site is associated with malware. Do not download anything from it.")
	}

	if signals.HasPasswordField && !result.Trusted {
		result.Recommendations = append(result.Recommendations,
			"This page asks for a password but is not a verified site.")
	}
	if result.Trusted && result.TrustedInfo != nil && result.RiskLevel == LevelSafe {
		result.Recommendations = append(result.Recommendations,
			fmt.Sprintf("This is a verified site operated by %s.", result.TrustedInfo.Organization))
	}
}

func isTrustedCAWarningFree(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(w, "not a recognized certificate authority") {
			return false
		}
	}
	return true
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
