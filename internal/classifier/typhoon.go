package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// Typhoon calls the external Typhoon AI classifier over HTTP. Failures are
// returned to the caller, who is expected to fall back (see WithFallback).
type Typhoon struct {
	config config.ClassifierConfig
	logger *slog.Logger
	client *http.Client
}

// NewTyphoon creates the external AI classifier client.
func NewTyphoon(cfg config.ClassifierConfig, logger *slog.Logger) *Typhoon {
	return &Typhoon{
		config: cfg,
		logger: logger,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the configured model identifier.
func (t *Typhoon) Name() string { return t.config.Model }

type typhoonResponse struct {
	RiskLevel        string   `json:"risk_level"`
	Confidence       float64  `json:"confidence"`
	ThreatType       string   `json:"threat_type"`
	Reasoning        string   `json:"reasoning"`
	Recommendation   string   `json:"recommendation"`
	DetectedPatterns []string `json:"detected_patterns"`
}

// Classify posts the content to the Typhoon endpoint and maps the response.
func (t *Typhoon) Classify(ctx context.Context, req *Request) (*Classification, error) {
	if t.config.Endpoint == "" {
		return nil, errors.New("typhoon classifier not configured")
	}

	if len(req.ContentExcerpt) > t.config.MaxExcerpt {
		trimmed := *req
		trimmed.ContentExcerpt = truncateRunes(req.ContentExcerpt, t.config.MaxExcerpt)
		req = &trimmed
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal classify request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build classify request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.config.APIKey)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "call typhoon classifier")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("typhoon classifier returned status %d", resp.StatusCode)
	}

	var decoded typhoonResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.Wrap(err, "decode typhoon response")
	}

	label := RiskLabel(decoded.RiskLevel)
	switch label {
	case LabelSafe, LabelSuspicious, LabelPhishing:
	default:
		label = LabelSuspicious
	}

	t.logger.Debug("typhoon classification",
		"url", req.URL,
		"label", label,
		"confidence", decoded.Confidence)

	return &Classification{
		RiskLabel:        label,
		Confidence:       decoded.Confidence,
		ThreatType:       decoded.ThreatType,
		Reasoning:        decoded.Reasoning,
		Recommendation:   decoded.Recommendation,
		DetectedPatterns: decoded.DetectedPatterns,
		Model:            t.config.Model,
	}, nil
}
