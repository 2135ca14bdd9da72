// Package classifier defines the text-classification capability used by the
// risk aggregator, with an external AI implementation and a heuristic
// fallback selected by a small decision policy.
package classifier

import (
	"context"
	"unicode/utf8"
)

// RiskLabel is the classifier's coarse verdict.
type RiskLabel string

const (
	LabelSafe       RiskLabel = "safe"
	LabelSuspicious RiskLabel = "suspicious"
	LabelPhishing   RiskLabel = "phishing"
)

// Request carries the page content to classify.
type Request struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	ContentExcerpt string `json:"content_excerpt"`
}

// Classification is the classifier verdict. Confidence is clamped to [0,1]
// before the result leaves this package.
type Classification struct {
	RiskLabel        RiskLabel `json:"risk_level"`
	Confidence       float64   `json:"confidence"`
	ThreatType       string    `json:"threat_type"`
	Reasoning        string    `json:"reasoning"`
	Recommendation   string    `json:"recommendation"`
	DetectedPatterns []string  `json:"detected_patterns"`
	Model            string    `json:"model"`
}

// Classifier is the capability interface for text classification.
type Classifier interface {
	Classify(ctx context.Context, req *Request) (*Classification, error)
	Name() string
}

// WithFallback wraps a primary classifier so that any failure falls through
// to the fallback. The fallback must not fail.
type WithFallback struct {
	Primary  Classifier
	Fallback Classifier
}

// Classify tries the primary classifier first; on error it delegates to the
// fallback so the caller always receives a verdict.
func (w *WithFallback) Classify(ctx context.Context, req *Request) (*Classification, error) {
	if w.Primary != nil {
		result, err := w.Primary.Classify(ctx, req)
		if err == nil {
			return clamp(result), nil
		}
	}
	result, err := w.Fallback.Classify(ctx, req)
	if err != nil {
		return nil, err
	}
	return clamp(result), nil
}

// Name reports the primary model name when configured.
func (w *WithFallback) Name() string {
	if w.Primary != nil {
		return w.Primary.Name()
	}
	return w.Fallback.Name()
}

// truncateRunes cuts s to at most limit bytes on a rune boundary, so
// multibyte text never loses its trailing character to a mid-rune split.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func clamp(c *Classification) *Classification {
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	return c
}
