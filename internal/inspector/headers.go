package inspector

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

// SecurityHeaderReport scores the standard security headers of a response.
// Header inspection never fails: an unreachable page simply scores zero.
type SecurityHeaderReport struct {
	HasHSTS           bool     `json:"has_hsts"`
	HasCSP            bool     `json:"has_csp"`
	HasXFrameOptions  bool     `json:"has_x_frame_options"`
	HasXContentType   bool     `json:"has_x_content_type_options"`
	HasXXSSProtection bool     `json:"has_x_xss_protection"`
	HasReferrerPolicy bool     `json:"has_referrer_policy"`
	Score             int      `json:"score"` // 0-100
	Warnings          []string `json:"warnings"`
	Reachable         bool     `json:"reachable"`
}

// Per-header weights. Bonuses reward a one-year HSTS max-age and a CSP
// without unsafe-inline.
const (
	headerWeightHSTS     = 20
	headerWeightCSP      = 25
	headerWeightXFO      = 15
	headerWeightXCTO     = 15
	headerWeightXXSS     = 10
	headerWeightReferrer = 15
	headerBonusHSTSAge   = 5
	headerBonusStrictCSP = 5

	strongHSTSMaxAge = 31536000
)

// InspectHeaders fetches the URL once (following a bounded number of
// redirects) and scores its security headers.
func (i *Inspector) InspectHeaders(ctx context.Context, rawURL string) *SecurityHeaderReport {
	report := &SecurityHeaderReport{Warnings: []string{}}

	client := &http.Client{
		Timeout: i.config.HeaderTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= i.config.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		report.Warnings = append(report.Warnings, "invalid URL")
		return report
	}

	resp, err := client.Do(req)
	if err != nil {
		report.Warnings = append(report.Warnings, "page not reachable for header inspection")
		return report
	}
	defer resp.Body.Close()
	report.Reachable = true

	score := 0

	if hsts := resp.Header.Get("Strict-Transport-Security"); hsts != "" {
		report.HasHSTS = true
		score += headerWeightHSTS
		if maxAge := parseHSTSMaxAge(hsts); maxAge >= strongHSTSMaxAge {
			score += headerBonusHSTSAge
		}
	} else {
		report.Warnings = append(report.Warnings, "missing Strict-Transport-Security")
	}

	if csp := resp.Header.Get("Content-Security-Policy"); csp != "" {
		report.HasCSP = true
		score += headerWeightCSP
		if !strings.Contains(csp, "unsafe-inline") {
			score += headerBonusStrictCSP
		}
	} else {
		report.Warnings = append(report.Warnings, "missing Content-Security-Policy")
	}

	if resp.Header.Get("X-Frame-Options") != "" {
		report.HasXFrameOptions = true
		score += headerWeightXFO
	} else {
		report.Warnings = append(report.Warnings, "missing X-Frame-Options")
	}

	if resp.Header.Get("X-Content-Type-Options") != "" {
		report.HasXContentType = true
		score += headerWeightXCTO
	} else {
		report.Warnings = append(report.Warnings, "missing X-Content-Type-Options")
	}

	if resp.Header.Get("X-XSS-Protection") != "" {
		report.HasXXSSProtection = true
		score += headerWeightXXSS
	} else {
		report.Warnings = append(report.Warnings, "missing X-XSS-Protection")
	}

	if resp.Header.Get("Referrer-Policy") != "" {
		report.HasReferrerPolicy = true
		score += headerWeightReferrer
	} else {
		report.Warnings = append(report.Warnings, "missing Referrer-Policy")
	}

	if score > 100 {
		score = 100
	}
	report.Score = score

	i.logger.Debug("security headers inspected", "url", rawURL, "score", score)
	return report
}

// parseHSTSMaxAge extracts the max-age directive; 0 when absent or malformed.
func parseHSTSMaxAge(header string) int {
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if strings.HasPrefix(part, "max-age=") {
			age, err := strconv.Atoi(strings.TrimPrefix(part, "max-age="))
			if err != nil {
				return 0
			}
			return age
		}
	}
	return 0
}
