package analyzer

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elder-shield/guardian-engine/internal/classifier"
	"github.com/elder-shield/guardian-engine/internal/config"
	"github.com/elder-shield/guardian-engine/internal/fetcher"
	"github.com/elder-shield/guardian-engine/internal/inspector"
	"github.com/elder-shield/guardian-engine/internal/malware"
	"github.com/elder-shield/guardian-engine/internal/registry"
	"github.com/elder-shield/guardian-engine/internal/reputation"
)

type stubFetcher struct {
	page *fetcher.Page
	err  error
}

func (s *stubFetcher) Fetch(context.Context, string) (*fetcher.Page, error) {
	return s.page, s.err
}

type stubInspector struct {
	cert     *inspector.CertificateInfo
	certErr  error
	headers  *inspector.SecurityHeaderReport
	certHang bool
}

func (s *stubInspector) InspectCertificate(ctx context.Context, host string) (*inspector.CertificateInfo, error) {
	if s.certHang {
		<-ctx.Done()
		return nil, inspector.ErrUnreachable
	}
	return s.cert, s.certErr
}

func (s *stubInspector) InspectHeaders(context.Context, string) *inspector.SecurityHeaderReport {
	return s.headers
}

func testConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		OverallTimeout:   5 * time.Second,
		SubTimeout:       2 * time.Second,
		EnableSSLCheck:   true,
		EnableReputation: true,
		EnableMalware:    true,
		ContentSignalCap: 0.25,
		TransportWeight:  0.25,
		ReputationWeight: 0.30,
		MalwareWeight:    0.20,
		TrustedDamping:   0.5,
	}
}

func newTestAnalyzer(cfg config.AnalysisConfig, fetch PageFetcher, insp TransportInspector) *Analyzer {
	logger := slog.Default()
	engine := reputation.NewEngine(nil)
	a := New(
		cfg,
		logger,
		registry.New(config.RegistryConfig{}),
		engine,
		insp,
		malware.NewScanner(logger, engine),
		fetch,
		classifier.NewHeuristic(),
	)
	a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func goodCert() *inspector.CertificateInfo {
	return &inspector.CertificateInfo{
		Issuer:          "R3",
		IssuerOrg:       "Let's Encrypt",
		Subject:         "mof.go.th",
		DaysUntilExpiry: 90,
		Warnings:        []string{},
	}
}

func fullHeaders() *inspector.SecurityHeaderReport {
	return &inspector.SecurityHeaderReport{
		HasHSTS: true, HasCSP: true, HasXFrameOptions: true,
		HasXContentType: true, HasXXSSProtection: true, HasReferrerPolicy: true,
		Score: 100, Reachable: true, Warnings: []string{},
	}
}

func TestAnalyze_TrustedGovernmentSite(t *testing.T) {
	a := newTestAnalyzer(testConfig(),
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html><title>Ministry of Finance</title><body>Annual report</body></html>"}},
		&stubInspector{cert: goodCert(), headers: fullHeaders()},
	)

	result := a.Analyze(context.Background(), "https://mof.go.th/x", DefaultOptions(a.config))

	assert.Equal(t, LevelSafe, result.RiskLevel)
	assert.Equal(t, ThreatSafe, result.ThreatType)
	assert.True(t, result.Trusted)
	require.NotNil(t, result.TrustedInfo)
	assert.Equal(t, "Ministry of Finance", result.TrustedInfo.Organization)
	assert.GreaterOrEqual(t, result.RiskScore, 0.0)
	assert.LessOrEqual(t, result.RiskScore, 1.0)
}

func TestAnalyze_PhishingURL(t *testing.T) {
	a := newTestAnalyzer(testConfig(),
		&stubFetcher{err: fetcher.ErrUnreachable},
		&stubInspector{certErr: inspector.ErrUnreachable, headers: &inspector.SecurityHeaderReport{Warnings: []string{"page not reachable for header inspection"}}},
	)

	result := a.Analyze(context.Background(), "http://kbank-secure-verify.tk/login", DefaultOptions(a.config))

	assert.Contains(t, []RiskLevel{LevelHigh, LevelCritical}, result.RiskLevel)
	assert.Equal(t, ThreatPhishing, result.ThreatType)
	assert.False(t, result.Trusted)
	assert.NotEmpty(t, result.Warnings)
	assert.NotEmpty(t, result.Recommendations)
}

func TestAnalyze_MalformedURL(t *testing.T) {
	a := newTestAnalyzer(testConfig(), &stubFetcher{}, &stubInspector{})

	for _, input := range []string{"", "   ", "no-dots-here"} {
		result := a.Analyze(context.Background(), input, DefaultOptions(a.config))
		assert.Equal(t, LevelMedium, result.RiskLevel, "input %q", input)
		assert.Equal(t, ThreatSuspicious, result.ThreatType)
		assert.InDelta(t, 0.5, result.RiskScore, 0.001)
		assert.Contains(t, result.AnalyzersRun, "analysis_failed")
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	build := func() *Analyzer {
		return newTestAnalyzer(testConfig(),
			&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html><body>urgent: verify your account password</body></html>"}},
			&stubInspector{cert: goodCert(), headers: fullHeaders()},
		)
	}

	first := build().Analyze(context.Background(), "https://some-site.example.com/a", DefaultOptions(testConfig()))
	second := build().Analyze(context.Background(), "https://some-site.example.com/a", DefaultOptions(testConfig()))
	assert.Equal(t, first, second, "identical inputs must produce identical results")
}

func TestAnalyze_CertificateTimeoutDegrades(t *testing.T) {
	cfg := testConfig()
	cfg.SubTimeout = 100 * time.Millisecond
	cfg.OverallTimeout = 2 * time.Second

	a := newTestAnalyzer(cfg,
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html></html>"}},
		&stubInspector{certHang: true, headers: fullHeaders()},
	)

	start := time.Now()
	result := a.Analyze(context.Background(), "https://slow-cert.example.com/", DefaultOptions(cfg))
	elapsed := time.Since(start)

	assert.Less(t, elapsed, cfg.OverallTimeout, "analysis must not block past the overall timeout")
	assert.Nil(t, result.Certificate)
	assert.Contains(t, result.Warnings, "certificate could not be inspected")
	assert.NotEqual(t, RiskLevel(""), result.RiskLevel, "a terminal verdict is still produced")
}

func TestAnalyze_CredentialHarvestingPattern(t *testing.T) {
	body := `<html><body>
		<p>Please confirm your citizen id to continue.</p>
		<form><input type="password" name="pw"></form>
	</body></html>`
	a := newTestAnalyzer(testConfig(),
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: body}},
		&stubInspector{certErr: inspector.ErrUnreachable, headers: &inspector.SecurityHeaderReport{}},
	)

	result := a.Analyze(context.Background(), "https://account-check.example.net/login", DefaultOptions(a.config))

	assert.Equal(t, ThreatPhishing, result.ThreatType)
	assert.Contains(t, result.Warnings, "page contains a password input field")
	assert.Contains(t, result.Warnings, "page asks for personal or financial identifiers")
}

func TestAnalyze_MoreRedFlagsNeverLowerScore(t *testing.T) {
	clean := newTestAnalyzer(testConfig(),
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html><body>welcome</body></html>"}},
		&stubInspector{cert: goodCert(), headers: fullHeaders()},
	).Analyze(context.Background(), "https://plain-site.example.com/", DefaultOptions(testConfig()))

	flagged := newTestAnalyzer(testConfig(),
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html><body>urgent! <input type=\"password\"></body></html>"}},
		&stubInspector{certErr: inspector.ErrUnreachable, headers: &inspector.SecurityHeaderReport{}},
	).Analyze(context.Background(), "https://plain-site.example.com/", DefaultOptions(testConfig()))

	assert.GreaterOrEqual(t, flagged.RiskScore, clean.RiskScore)
}

func TestAnalyze_BlacklistedDomainIsMalware(t *testing.T) {
	a := newTestAnalyzer(testConfig(),
		&stubFetcher{err: fetcher.ErrUnreachable},
		&stubInspector{certErr: inspector.ErrUnreachable, headers: &inspector.SecurityHeaderReport{}},
	)

	result := a.Analyze(context.Background(), "https://phishing-bank-login.com/", DefaultOptions(a.config))

	assert.Equal(t, ThreatMalware, result.ThreatType)
	assert.Contains(t, []RiskLevel{LevelHigh, LevelCritical}, result.RiskLevel)
	require.NotNil(t, result.Malware)
	assert.Equal(t, malware.RiskCritical, result.Malware.OverallRisk)
}

func TestAnalyze_DisabledSubAnalyzersContributeNothing(t *testing.T) {
	a := newTestAnalyzer(testConfig(),
		&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html></html>"}},
		&stubInspector{},
	)

	result := a.Analyze(context.Background(), "https://example.com/", Options{})

	assert.NotContains(t, result.AnalyzersRun, "certificate")
	assert.NotContains(t, result.AnalyzersRun, "reputation")
	assert.NotContains(t, result.AnalyzersRun, "malware")
	assert.Equal(t, LevelSafe, result.RiskLevel)
}

type countingClassifier struct {
	calls atomic.Int32
}

func (c *countingClassifier) Classify(context.Context, *classifier.Request) (*classifier.Classification, error) {
	c.calls.Add(1)
	return &classifier.Classification{RiskLabel: classifier.LabelSafe, Confidence: 0.9, Model: "remote-model"}, nil
}

func (c *countingClassifier) Name() string { return "remote-model" }

func TestAnalyze_AIToggleControlsExternalClassifier(t *testing.T) {
	build := func() (*Analyzer, *countingClassifier) {
		remote := &countingClassifier{}
		logger := slog.Default()
		engine := reputation.NewEngine(logger)
		a := New(
			testConfig(),
			logger,
			registry.New(config.RegistryConfig{}),
			engine,
			&stubInspector{cert: goodCert(), headers: fullHeaders()},
			malware.NewScanner(logger, engine),
			&stubFetcher{page: &fetcher.Page{StatusCode: 200, Body: "<html><body>welcome</body></html>"}},
			&classifier.WithFallback{Primary: remote, Fallback: classifier.NewHeuristic()},
		)
		a.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
		return a, remote
	}

	t.Run("disabled", func(t *testing.T) {
		a, remote := build()
		opts := DefaultOptions(a.config)
		opts.AI = false

		result := a.Analyze(context.Background(), "https://example.com/", opts)

		assert.EqualValues(t, 0, remote.calls.Load(), "the external model must not be consulted")
		require.NotNil(t, result.Classification, "the heuristic still classifies")
		assert.Equal(t, classifier.HeuristicName, result.Classification.Model)
	})

	t.Run("enabled", func(t *testing.T) {
		a, remote := build()
		opts := DefaultOptions(a.config)
		opts.AI = true

		result := a.Analyze(context.Background(), "https://example.com/", opts)

		assert.EqualValues(t, 1, remote.calls.Load())
		require.NotNil(t, result.Classification)
		assert.Equal(t, "remote-model", result.Classification.Model)
	})
}

func TestExcerpt_RuneBoundary(t *testing.T) {
	thai := strings.Repeat("ช่วยด้วย ", 300)
	cut := excerpt(thai, 2000)

	assert.LessOrEqual(t, len(cut), 2000)
	assert.True(t, utf8.ValidString(cut), "truncation must not split a rune")

	assert.Equal(t, "short", excerpt("short", 2000))
}

func TestClassifyLevel_Ladders(t *testing.T) {
	tests := []struct {
		score   float64
		trusted bool
		want    RiskLevel
	}{
		{0.1, false, LevelSafe},
		{0.25, false, LevelLow},
		{0.5, false, LevelMedium},
		{0.7, false, LevelHigh},
		{0.9, false, LevelCritical},
		{0.25, true, LevelSafe},
		{0.4, true, LevelLow},
		{0.6, true, LevelMedium},
		{0.9, true, LevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyLevel(tt.score, tt.trusted),
			"score=%v trusted=%v", tt.score, tt.trusted)
	}
}

func TestNormalizeURL(t *testing.T) {
	normalized, host, ok := normalizeURL("EXAMPLE.com/path")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/path", normalized)
	assert.Equal(t, "example.com", host)

	_, _, ok = normalizeURL("")
	assert.False(t, ok)
}
