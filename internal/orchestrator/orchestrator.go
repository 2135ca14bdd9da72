package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/elder-shield/guardian-engine/internal/analyzer"
	"github.com/elder-shield/guardian-engine/internal/behavior"
	"github.com/elder-shield/guardian-engine/internal/config"
	"github.com/elder-shield/guardian-engine/internal/kafka"
	"github.com/elder-shield/guardian-engine/internal/metrics"
)

// URLAnalyzer is the risk aggregator collaborator.
type URLAnalyzer interface {
	Analyze(ctx context.Context, rawURL string, opts analyzer.Options) *analyzer.Result
}

// DuressDetector is the behavioral profiling collaborator.
type DuressDetector interface {
	Observe(ctx context.Context, userID, message string, timestamp time.Time, hints *behavior.SessionHints) (*behavior.Verdict, error)
	Profile(ctx context.Context, userID string) (*behavior.Profile, error)
}

// MessageRequest is one incoming message to process.
type MessageRequest struct {
	UserID    string                 `json:"user_id"`
	Message   string                 `json:"message"`
	URL       string                 `json:"url,omitempty"`
	Timestamp time.Time              `json:"timestamp,omitempty"`
	Hints     *behavior.SessionHints `json:"hints,omitempty"`
}

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)

// Orchestrator runs both engines per message and owns the resulting events,
// alerts and notifications.
type Orchestrator struct {
	config    *config.Config
	logger    *slog.Logger
	analyzer  URLAnalyzer
	detector  DuressDetector
	events    *EventStore
	alerts    *AlertStore
	publisher kafka.Publisher
	metrics   *metrics.Collector

	statsMu sync.Mutex
	stats   Stats

	now func() time.Time
}

// New wires the orchestrator to its collaborators.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	urlAnalyzer URLAnalyzer,
	detector DuressDetector,
	publisher kafka.Publisher,
	collector *metrics.Collector,
) *Orchestrator {
	return &Orchestrator{
		config:    cfg,
		logger:    logger,
		analyzer:  urlAnalyzer,
		detector:  detector,
		events:    NewEventStore(),
		alerts:    NewAlertStore(),
		publisher: publisher,
		metrics:   collector,
		stats:     Stats{EventsByLevel: make(map[EmergencyLevel]int64)},
		now:       time.Now,
	}
}

// AnalyzeURL runs a standalone URL analysis with instrumentation.
func (o *Orchestrator) AnalyzeURL(ctx context.Context, rawURL string, opts analyzer.Options) *analyzer.Result {
	start := o.now()
	result := o.analyzer.Analyze(ctx, rawURL, opts)
	o.metrics.AnalysisDuration.Observe(o.now().Sub(start).Seconds())
	o.metrics.AnalysesTotal.WithLabelValues(string(result.RiskLevel)).Inc()
	return result
}

// OnMessage processes one message end to end: both engines run concurrently
// in isolated failure domains, and their combined verdict becomes a stored
// threat event plus any alerts it warrants.
func (o *Orchestrator) OnMessage(ctx context.Context, req MessageRequest) (*ThreatEvent, error) {
	if req.UserID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = o.now()
	}
	target := req.URL
	if target == "" {
		target = urlPattern.FindString(req.Message)
	}

	var (
		wg       sync.WaitGroup
		analysis *analyzer.Result
		duress   *behavior.Verdict
	)
	if target != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analysis = o.AnalyzeURL(ctx, target, analyzer.DefaultOptions(o.config.Analysis))
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		verdict, err := o.detector.Observe(ctx, req.UserID, req.Message, timestamp, req.Hints)
		if err != nil {
			// The message still gets a threat verdict from the analyzer side.
			o.logger.Error("duress detection failed", "user_id", req.UserID, "error", err)
			return
		}
		duress = verdict
	}()
	wg.Wait()

	elderly := false
	if profile, err := o.detector.Profile(ctx, req.UserID); err == nil && profile != nil {
		elderly = profile.IsElderly
	}

	event := &ThreatEvent{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		URL:            target,
		Message:        req.Message,
		Timestamp:      timestamp,
		Analysis:       analysis,
		Duress:         duress,
		EmergencyLevel: o.emergencyLevel(analysis, duress, elderly),
		ExpiresAt:      timestamp.Add(o.config.Orchestrator.EventTTL),
	}
	event.FamilyAlert = o.needsFamilyAlert(event, elderly)
	o.events.Save(event)

	newAlerts := o.buildAlerts(event, elderly)
	for _, alert := range newAlerts {
		o.alerts.Save(alert)
		o.publish(ctx, o.config.Kafka.Topics.AlertNotifications, alert.UserID, alert)
	}
	o.publish(ctx, o.config.Kafka.Topics.ThreatEvents, event.UserID, event)

	o.recordStats(event)
	o.metrics.MessagesTotal.Inc()
	o.metrics.ThreatEventsTotal.WithLabelValues(string(event.EmergencyLevel)).Inc()
	if duress != nil && duress.IsDuress {
		o.metrics.DuressTotal.Inc()
	}
	if event.FamilyAlert {
		o.metrics.EscalationsTotal.Inc()
	}
	o.metrics.ActiveAlerts.Set(float64(o.alerts.CountActive(o.now())))

	if event.EmergencyLevel.atLeast(EmergencyHigh) {
		o.logger.Warn("high-urgency event recorded",
			"event_id", event.ID,
			"user_id", event.UserID,
			"emergency_level", event.EmergencyLevel,
			"family_alert", event.FamilyAlert)
	}
	return event, nil
}

// Event returns a stored threat event by id.
func (o *Orchestrator) Event(id string) (*ThreatEvent, error) {
	return o.events.Get(id)
}

// Alerts lists live alerts, optionally filtered by user.
func (o *Orchestrator) Alerts(userID string) []*Alert {
	return o.alerts.List(userID, o.now())
}

// Acknowledge marks an alert handled.
func (o *Orchestrator) Acknowledge(id string) (*Alert, error) {
	alert, err := o.alerts.Acknowledge(id)
	if err != nil {
		return nil, err
	}
	o.metrics.ActiveAlerts.Set(float64(o.alerts.CountActive(o.now())))
	return alert, nil
}

// UserProfile returns the stored behavior profile for a user, or nil when
// the user has never been observed.
func (o *Orchestrator) UserProfile(ctx context.Context, userID string) (*behavior.Profile, error) {
	return o.detector.Profile(ctx, userID)
}

// Stats returns a snapshot of the rolling counters.
func (o *Orchestrator) Stats() Stats {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	snapshot := o.stats
	snapshot.EventsByLevel = make(map[EmergencyLevel]int64, len(o.stats.EventsByLevel))
	for level, count := range o.stats.EventsByLevel {
		snapshot.EventsByLevel[level] = count
	}
	snapshot.ActiveAlerts = o.alerts.CountActive(o.now())
	snapshot.StoredEvents = o.events.Count()
	return snapshot
}

// Sweep expires old events and alerts. Wired to the hourly schedule.
func (o *Orchestrator) Sweep(context.Context) error {
	now := o.now()
	expiredEvents := o.events.Sweep(now)
	expiredAlerts := o.alerts.Sweep(now)
	o.metrics.ActiveAlerts.Set(float64(o.alerts.CountActive(now)))
	if expiredEvents > 0 || expiredAlerts > 0 {
		o.logger.Info("expired records swept", "events", expiredEvents, "alerts", expiredAlerts)
	}
	return nil
}

// PublishDailySummary pushes the current counters to the metrics topic.
// Wired to the daily schedule.
func (o *Orchestrator) PublishDailySummary(ctx context.Context) error {
	snapshot := o.Stats()
	o.publish(ctx, o.config.Kafka.Topics.MetricsDaily, "daily-summary", snapshot)
	o.logger.Info("daily summary published",
		"messages", snapshot.MessagesProcessed,
		"threats", snapshot.ThreatsDetected,
		"duress", snapshot.DuressDetected)
	return nil
}

// publish is best-effort: a broker outage must not fail message processing.
func (o *Orchestrator) publish(ctx context.Context, topic, key string, payload any) {
	if err := o.publisher.Publish(ctx, topic, key, payload); err != nil {
		o.logger.Error("event publish failed", "topic", topic, "error", err)
	}
}

// emergencyLevel maps the two verdicts onto one urgency grade. A duress
// finding raises the analyzer's grade one step, and a high-risk verdict for
// an elderly user always grades critical.
func (o *Orchestrator) emergencyLevel(analysis *analyzer.Result, duress *behavior.Verdict, elderly bool) EmergencyLevel {
	level := EmergencyNone
	if analysis != nil {
		switch analysis.RiskLevel {
		case analyzer.LevelLow:
			level = EmergencyLow
		case analyzer.LevelMedium:
			level = EmergencyMedium
		case analyzer.LevelHigh:
			level = EmergencyHigh
		case analyzer.LevelCritical:
			level = EmergencyCritical
		}
	}
	if duress != nil && duress.IsDuress {
		level = level.bump()
	}
	if elderly && level.atLeast(EmergencyHigh) {
		level = EmergencyCritical
	}
	return level
}

// needsFamilyAlert decides whether a family member should be notified.
func (o *Orchestrator) needsFamilyAlert(event *ThreatEvent, elderly bool) bool {
	if event.Duress != nil && event.Duress.EscalateToFamily {
		return true
	}
	if !elderly {
		return false
	}
	if event.EmergencyLevel == EmergencyCritical {
		return true
	}
	if event.Analysis != nil && event.EmergencyLevel.atLeast(EmergencyHigh) {
		switch event.Analysis.ThreatType {
		case analyzer.ThreatPhishing, analyzer.ThreatScam:
			return true
		}
	}
	return false
}

// buildAlerts derives the alerts an event warrants.
func (o *Orchestrator) buildAlerts(event *ThreatEvent, elderly bool) []*Alert {
	var alerts []*Alert
	cfg := o.config.Orchestrator

	if event.Analysis != nil && event.EmergencyLevel.atLeast(EmergencyMedium) {
		alerts = append(alerts, o.newAlert(event, AlertThreatDetected, cfg.ThreatAlertTTL,
			fmt.Sprintf("A risky link was detected: %s (%s)", event.URL, event.Analysis.ThreatType),
			event.Analysis.Recommendations))
	}
	if event.Duress != nil && event.Duress.IsDuress {
		alerts = append(alerts, o.newAlert(event, AlertDuressDetected, cfg.DuressAlertTTL,
			"This message shows signs of pressure or urgency that do not match the usual pattern.",
			event.Duress.Recommendations))
	}
	if elderly && event.EmergencyLevel.atLeast(EmergencyHigh) {
		alerts = append(alerts, o.newAlert(event, AlertElderlyAtRisk, cfg.ThreatAlertTTL,
			"An at-risk user encountered a high-risk threat.",
			[]string{"Review the event details.", "Consider contacting the user directly."}))
	}
	if event.FamilyAlert {
		alerts = append(alerts, o.newAlert(event, AlertFamilyNotification, cfg.FamilyAlertTTL,
			"A family member should check in: a high-risk situation was detected.",
			[]string{"Call the user on a known number.", "Do not discuss the matter over the suspicious channel."}))
	}
	return alerts
}

func (o *Orchestrator) newAlert(event *ThreatEvent, kind AlertKind, ttl time.Duration, message string, actions []string) *Alert {
	created := o.now()
	if actions == nil {
		actions = []string{}
	}
	return &Alert{
		AlertID:     uuid.New().String(),
		EventID:     event.ID,
		UserID:      event.UserID,
		Kind:        kind,
		Severity:    event.EmergencyLevel,
		Message:     message,
		ActionItems: actions,
		CreatedAt:   created,
		ExpiresAt:   created.Add(ttl),
	}
}

func (o *Orchestrator) recordStats(event *ThreatEvent) {
	o.statsMu.Lock()
	defer o.statsMu.Unlock()
	o.stats.MessagesProcessed++
	o.stats.EventsByLevel[event.EmergencyLevel]++
	o.stats.HourlyActivity[event.Timestamp.Hour()]++
	if event.EmergencyLevel.atLeast(EmergencyMedium) {
		o.stats.ThreatsDetected++
	}
	if event.Duress != nil && event.Duress.IsDuress {
		o.stats.DuressDetected++
	}
	if event.FamilyAlert {
		o.stats.FamilyEscalations++
	}
}
