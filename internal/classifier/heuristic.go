package classifier

import (
	"context"
	"fmt"
	"strings"
)

// HeuristicName identifies the fallback classifier in provenance lists.
const HeuristicName = "heuristic-fallback"

// Pattern groups scored by the fallback classifier. Each hit in a group adds
// the group weight once; the result is capped well below certainty because
// keyword presence alone is weak evidence.
var heuristicPatterns = []struct {
	label    string
	weight   float64
	keywords []string
}{
	{"urgency", 0.2, []string{
		"urgent", "immediately", "within 24 hours", "act now", "expire",
		"suspended", "locked", "verify", "ด่วน", "ภายใน 24 ชั่วโมง", "ระงับ",
	}},
	{"credential_request", 0.3, []string{
		"password", "pin", "otp", "id card", "citizen id", "login", "signin",
		"confirm your identity", "รหัสผ่าน", "บัตรประชาชน", "ยืนยันตัวตน",
	}},
	{"financial_bait", 0.25, []string{
		"you have won", "prize", "lottery", "free bonus", "transfer fee",
		"refund", "โอนเงิน", "รางวัล", "เงินคืน", "โบนัสฟรี",
	}},
	{"impersonation", 0.15, []string{
		"bank of thailand", "revenue department", "police", "your bank",
		"ธนาคารแห่งประเทศไทย", "กรมสรรพากร", "ตำรวจ",
	}},
}

// Heuristic is the standard fallback text classifier. It never fails.
type Heuristic struct{}

// NewHeuristic creates the fallback classifier.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name identifies the fallback model.
func (h *Heuristic) Name() string { return HeuristicName }

// Classify scores the concatenated title, excerpt and URL against the
// pattern groups.
func (h *Heuristic) Classify(_ context.Context, req *Request) (*Classification, error) {
	text := strings.ToLower(req.Title + " " + req.ContentExcerpt + " " + req.URL)

	score := 0.0
	var patterns []string
	for _, group := range heuristicPatterns {
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				score += group.weight
				patterns = append(patterns, group.label+":"+kw)
				break
			}
		}
	}
	if score > 0.9 {
		score = 0.9 // keyword evidence alone never reaches certainty
	}

	result := &Classification{
		Confidence:       score,
		DetectedPatterns: patterns,
		Model:            HeuristicName,
	}

	switch {
	case score >= 0.5:
		result.RiskLabel = LabelPhishing
		result.ThreatType = "phishing"
		result.Reasoning = fmt.Sprintf("multiple scam language patterns present (%d groups)", len(patterns))
		result.Recommendation = "Do not enter any personal information on this page"
	case score >= 0.2:
		result.RiskLabel = LabelSuspicious
		result.ThreatType = "suspicious"
		result.Reasoning = "some scam language patterns present"
		result.Recommendation = "Verify the sender through an official channel before acting"
	default:
		result.RiskLabel = LabelSafe
		result.ThreatType = "safe"
		result.Reasoning = "no known scam language patterns found"
		result.Recommendation = "No action needed"
	}
	return result, nil
}
