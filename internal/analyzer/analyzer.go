// Package analyzer implements the multi-signal risk aggregator: it fans out
// to the independent sub-analyzers, tolerates partial failure, and combines
// their output into one explainable verdict.
package analyzer

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/elder-shield/guardian-engine/internal/classifier"
	"github.com/elder-shield/guardian-engine/internal/config"
	"github.com/elder-shield/guardian-engine/internal/fetcher"
	"github.com/elder-shield/guardian-engine/internal/inspector"
	"github.com/elder-shield/guardian-engine/internal/malware"
	"github.com/elder-shield/guardian-engine/internal/registry"
	"github.com/elder-shield/guardian-engine/internal/reputation"
)

// RiskLevel grades a final risk score.
type RiskLevel string

const (
	LevelSafe     RiskLevel = "safe"
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

// ThreatType names the dominant threat behind a verdict.
type ThreatType string

const (
	ThreatPhishing   ThreatType = "phishing"
	ThreatScam       ThreatType = "scam"
	ThreatMalware    ThreatType = "malware"
	ThreatSuspicious ThreatType = "suspicious"
	ThreatSafe       ThreatType = "safe"
)

// Options toggles the optional sub-analyzers for one analysis call.
type Options struct {
	SSLCheck   bool
	Reputation bool
	Malware    bool
	AI         bool
}

// DefaultOptions derives per-call options from configuration.
func DefaultOptions(cfg config.AnalysisConfig) Options {
	return Options{
		SSLCheck:   cfg.EnableSSLCheck,
		Reputation: cfg.EnableReputation,
		Malware:    cfg.EnableMalware,
		AI:         cfg.EnableAI,
	}
}

// Result is the aggregate verdict for one URL. It is immutable after
// construction and owned by the caller.
type Result struct {
	URL             string                          `json:"url"`
	RiskScore       float64                         `json:"risk_score"` // 0.0-1.0
	RiskLevel       RiskLevel                       `json:"risk_level"`
	ThreatType      ThreatType                      `json:"threat_type"`
	Trusted         bool                            `json:"trusted"`
	TrustedInfo     *registry.SiteInfo              `json:"trusted_info,omitempty"`
	Classification  *classifier.Classification      `json:"classification,omitempty"`
	Reputation      *reputation.Verdict             `json:"reputation,omitempty"`
	Certificate     *inspector.CertificateInfo      `json:"certificate,omitempty"`
	Headers         *inspector.SecurityHeaderReport `json:"headers,omitempty"`
	Malware         *malware.Report                 `json:"malware,omitempty"`
	Recommendations []string                        `json:"recommendations"`
	Warnings        []string                        `json:"warnings"`
	AIModelsUsed    []string                        `json:"ai_models_used"`
	AnalyzersRun    []string                        `json:"analyzers_run"`
	AnalyzedAt      time.Time                       `json:"analyzed_at"`
}

// PageFetcher is the page-content collaborator.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// TransportInspector is the certificate/header probe collaborator.
type TransportInspector interface {
	InspectCertificate(ctx context.Context, host string) (*inspector.CertificateInfo, error)
	InspectHeaders(ctx context.Context, rawURL string) *inspector.SecurityHeaderReport
}

// Analyzer is the risk aggregator.
type Analyzer struct {
	config     config.AnalysisConfig
	logger     *slog.Logger
	registry   *registry.Registry
	reputation *reputation.Engine
	inspector  TransportInspector
	scanner    *malware.Scanner
	fetcher    PageFetcher
	classifier classifier.Classifier
	now        func() time.Time
}

// New wires the aggregator to its sub-analyzers.
func New(
	cfg config.AnalysisConfig,
	logger *slog.Logger,
	reg *registry.Registry,
	repEngine *reputation.Engine,
	insp TransportInspector,
	scanner *malware.Scanner,
	pageFetcher PageFetcher,
	cls classifier.Classifier,
) *Analyzer {
	return &Analyzer{
		config:     cfg,
		logger:     logger,
		registry:   reg,
		reputation: repEngine,
		inspector:  insp,
		scanner:    scanner,
		fetcher:    pageFetcher,
		classifier: cls,
		now:        time.Now,
	}
}

// subResults collects the fan-out output. Each goroutine writes only its own
// fields under the mutex; reads happen after the join.
type subResults struct {
	mu             sync.Mutex
	classification *classifier.Classification
	reputation     *reputation.Verdict
	certificate    *inspector.CertificateInfo
	certErr        error
	headers        *inspector.SecurityHeaderReport
	malware        *malware.Report
}

// Analyze produces a terminal verdict for the URL within the configured
// overall timeout. It never returns an error: failures degrade to a
// conservative result instead.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string, opts Options) *Result {
	start := a.now()

	normalized, host, ok := normalizeURL(rawURL)
	if !ok {
		a.logger.Warn("analysis failed on malformed input", "url", rawURL)
		return a.failedResult(rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.OverallTimeout)
	defer cancel()

	result := &Result{
		URL:             normalized,
		Recommendations: []string{},
		Warnings:        []string{},
		AIModelsUsed:    []string{},
		AnalyzersRun:    []string{},
		AnalyzedAt:      start,
	}

	// Trusted status dampens heuristic weights later but never skips checks.
	result.Trusted = a.registry.IsTrusted(normalized)
	result.TrustedInfo = a.registry.Info(normalized)

	// Best-effort content fetch feeds both the classifier and the content
	// signals. An inaccessible page is a moderate signal, not a failure.
	fetchCtx, fetchCancel := context.WithTimeout(ctx, a.config.SubTimeout)
	page, fetchErr := a.fetcher.Fetch(fetchCtx, normalized)
	fetchCancel()

	signals := &contentSignals{UrgencyKeywordHits: []string{}}
	if fetchErr != nil {
		signals.Unreachable = true
	} else {
		signals = inspectContent(page.Body)
	}

	subs := a.fanOut(ctx, normalized, host, signals, page, opts)

	a.combine(result, subs, signals, opts)

	a.logger.Info("analysis complete",
		"url", normalized,
		"risk_score", result.RiskScore,
		"risk_level", result.RiskLevel,
		"threat_type", result.ThreatType,
		"trusted", result.Trusted,
		"duration", a.now().Sub(start))
	return result
}

// fanOut runs the enabled sub-analyzers concurrently, each under its own
// timeout, and joins them under the overall deadline. Sub-analyzers that miss
// the deadline are abandoned and their signal degrades to unknown.
func (a *Analyzer) fanOut(ctx context.Context, normalized, host string, signals *contentSignals, page *fetcher.Page, opts Options) *subResults {
	subs := &subResults{}
	var wg sync.WaitGroup

	run := func(task func(taskCtx context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taskCtx, cancel := context.WithTimeout(ctx, a.config.SubTimeout)
			defer cancel()
			task(taskCtx)
		}()
	}

	// The heuristic classifier always runs; the AI toggle only controls
	// whether the external model is consulted first.
	cls := a.classifier
	if !opts.AI {
		if combined, ok := cls.(*classifier.WithFallback); ok {
			cls = combined.Fallback
		}
	}

	run(func(taskCtx context.Context) {
		req := &classifier.Request{URL: normalized, Title: signals.Title}
		if page != nil {
			req.ContentExcerpt = excerpt(page.Body, 2000)
		}
		classification, err := cls.Classify(taskCtx, req)
		if err != nil {
			return
		}
		subs.mu.Lock()
		subs.classification = classification
		subs.mu.Unlock()
	})

	if opts.Reputation {
		run(func(context.Context) {
			verdict := a.reputation.Evaluate(host)
			subs.mu.Lock()
			subs.reputation = verdict
			subs.mu.Unlock()
		})
	}

	if opts.SSLCheck {
		run(func(taskCtx context.Context) {
			info, err := a.inspector.InspectCertificate(taskCtx, host)
			subs.mu.Lock()
			subs.certificate, subs.certErr = info, err
			subs.mu.Unlock()
		})
		run(func(taskCtx context.Context) {
			report := a.inspector.InspectHeaders(taskCtx, normalized)
			subs.mu.Lock()
			subs.headers = report
			subs.mu.Unlock()
		})
	}

	if opts.Malware {
		run(func(context.Context) {
			report := a.scanner.Scan(host)
			subs.mu.Lock()
			subs.malware = report
			subs.mu.Unlock()
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("analysis deadline reached, abandoning outstanding sub-analyzers", "url", normalized)
	}
	return subs
}

// failedResult is the fail-soft terminal verdict: a conservative Medium.
func (a *Analyzer) failedResult(rawURL string) *Result {
	return &Result{
		URL:        rawURL,
		RiskScore:  0.5,
		RiskLevel:  LevelMedium,
		ThreatType: ThreatSuspicious,
		Recommendations: []string{
			"The link could not be analyzed. Treat it with caution.",
			"Do not enter personal information until the link is verified.",
		},
		Warnings:     []string{"analysis could not be completed for this input"},
		AIModelsUsed: []string{},
		AnalyzersRun: []string{"analysis_failed"},
		AnalyzedAt:   a.now(),
	}
}

// normalizeURL lower-cases the host and defaults the scheme to HTTPS.
func normalizeURL(rawURL string) (normalized, host string, ok bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", "", false
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return "", "", false
	}
	u.Host = strings.ToLower(u.Host)
	return u.String(), u.Hostname(), true
}
