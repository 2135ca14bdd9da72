package behavior

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// SessionHints carries optional client-side timing telemetry for one message.
type SessionHints struct {
	TypingDuration time.Duration `json:"typing_duration"` // time spent composing
	ResponseDelay  time.Duration `json:"response_delay"`  // time since previous message
	Corrections    int           `json:"corrections"`     // edit/backspace count
}

// Verdict is the per-message duress assessment.
type Verdict struct {
	IsDuress         bool     `json:"is_duress"`
	Confidence       float64  `json:"confidence"` // 0-1
	Indicators       []string `json:"indicators"`
	ElderlyRisks     []string `json:"elderly_risks"`
	Recommendations  []string `json:"recommendations"`
	EscalateToFamily bool     `json:"escalate_to_family"`
}

// Message keywords scored by the duress detector.
var duressUrgencyKeywords = []string{
	"help", "urgent", "hurry", "quickly", "emergency", "right now", "immediately",
	"ช่วยด้วย", "ด่วน", "รีบ", "เดี๋ยวนี้",
}

var moneyKeywords = []string{
	"money", "transfer", "bank", "baht", "atm", "gift card", "wire", "pay",
	"โอนเงิน", "เงิน", "บาท", "จ่าย",
}

// Elderly-likelihood weights (summed, classified elderly above the threshold).
const (
	elderlySlowTyping  = 0.3
	elderlyHighErrors  = 0.2
	elderlyShortMsgs   = 0.2
	elderlyDaytimeOnly = 0.3

	daytimeFractionMin = 0.7
	minObservations    = 5
)

// Duress confidence increments.
const (
	duressFastTyping   = 0.3
	duressOddHour      = 0.25
	duressShortMessage = 0.2
	duressUrgency      = 0.4
	duressUrgencyMoney = 0.5
)

// Detector maintains behavior profiles and flags per-message anomalies.
// Updates to one user's profile are serialized through a per-user lock;
// different users proceed fully in parallel.
type Detector struct {
	config config.BehaviorConfig
	logger *slog.Logger
	store  ProfileStore

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// NewDetector creates a duress detector over the given profile store.
func NewDetector(cfg config.BehaviorConfig, logger *slog.Logger, store ProfileStore) *Detector {
	return &Detector{
		config: cfg,
		logger: logger,
		store:  store,
		locks:  make(map[string]*sync.Mutex),
		now:    time.Now,
	}
}

// userLock returns the mutex serializing updates for one user.
func (d *Detector) userLock(userID string) *sync.Mutex {
	d.locksMu.Lock()
	defer d.locksMu.Unlock()
	lock, ok := d.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[userID] = lock
	}
	return lock
}

// Observe folds one message into the user's profile and returns the duress
// verdict for it. The profile is created lazily on first contact.
func (d *Detector) Observe(ctx context.Context, userID, message string, timestamp time.Time, hints *SessionHints) (*Verdict, error) {
	lock := d.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	profile, err := d.store.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}
	if profile == nil {
		profile = newProfile(userID, timestamp)
	}

	d.updateProfile(profile, message, timestamp, hints)
	d.classifyElderly(profile)
	profile.TrustScore = d.trustScore(profile)

	verdict := d.assessDuress(profile, message, timestamp, hints)

	if err := d.store.Save(ctx, profile); err != nil {
		return nil, errors.Wrap(err, "save profile")
	}

	if verdict.IsDuress {
		d.logger.Warn("duress indicators detected",
			"user_id", userID,
			"confidence", verdict.Confidence,
			"indicators", len(verdict.Indicators),
			"escalate", verdict.EscalateToFamily)
	}
	return verdict, nil
}

// Profile returns a snapshot of the user's current profile, or nil.
func (d *Detector) Profile(ctx context.Context, userID string) (*Profile, error) {
	return d.store.Get(ctx, userID)
}

// CleanupStale removes profiles idle past the configured horizon.
func (d *Detector) CleanupStale(ctx context.Context) (int, error) {
	cutoff := d.now().Add(-d.config.ProfileTTL)
	removed, err := d.store.Cleanup(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		d.logger.Info("stale behavior profiles removed", "count", removed)
	}
	return removed, nil
}

// updateProfile applies the exponential-moving-average update to every
// rolling statistic.
func (d *Detector) updateProfile(p *Profile, message string, timestamp time.Time, hints *SessionHints) {
	length := float64(len([]rune(message)))

	var speed, errRate, responseTime float64
	if hints != nil && hints.TypingDuration > 0 {
		speed = length / hints.TypingDuration.Minutes()
		if length > 0 {
			errRate = float64(hints.Corrections) / length
		}
	}
	if hints != nil && hints.ResponseDelay > 0 {
		responseTime = hints.ResponseDelay.Seconds()
	}

	if p.MessageCount == 0 {
		p.MessageLength = length
		p.TypingSpeed = speed
		p.ErrorRate = errRate
		p.ResponseTime = responseTime
	} else {
		alpha := d.config.EMAAlpha
		p.MessageLength = ema(p.MessageLength, length, alpha)
		if speed > 0 {
			p.TypingSpeed = ema(p.TypingSpeed, speed, alpha)
			p.ErrorRate = ema(p.ErrorRate, errRate, alpha)
		}
		if responseTime > 0 {
			p.ResponseTime = ema(p.ResponseTime, responseTime, alpha)
		}
	}

	p.recordHour(timestamp.Hour())
	p.WeeklyActivity[int(timestamp.Weekday())]++
	p.MessageCount++
	p.LastUpdate = timestamp
}

// classifyElderly recomputes the elderly likelihood from the rolling stats.
// The classification can flip in either direction as evidence accumulates.
func (d *Detector) classifyElderly(p *Profile) {
	if p.MessageCount < minObservations {
		return
	}

	likelihood := 0.0
	if p.TypingSpeed > 0 && p.TypingSpeed < d.config.TypingSpeedBase {
		likelihood += elderlySlowTyping
	}
	if p.ErrorRate > d.config.ErrorRateBase {
		likelihood += elderlyHighErrors
	}
	if p.MessageLength < d.config.MessageLengthBase {
		likelihood += elderlyShortMsgs
	}
	if p.daytimeFraction(d.config.DaytimeStartHour, d.config.DaytimeEndHour) >= daytimeFractionMin {
		likelihood += elderlyDaytimeOnly
	}

	p.IsElderly = likelihood > d.config.ElderlyThreshold
}

// trustScore rates pattern stability for downstream consumers: an
// established time-of-day pattern, a low error rate and sustained weekly
// activity all raise it.
func (d *Detector) trustScore(p *Profile) float64 {
	if p.MessageCount < minObservations {
		return 0.5
	}
	score := 0.0
	if p.daytimeFraction(d.config.DaytimeStartHour, d.config.DaytimeEndHour) >= daytimeFractionMin {
		score += 0.3
	}
	if p.ErrorRate <= d.config.ErrorRateBase {
		score += 0.3
	}
	score += 0.4 * float64(p.activeDays()) / 7
	return clampUnit(score)
}

// assessDuress scores the message against the user's own established
// patterns. Confidence accumulates additively and is capped at 1.
func (d *Detector) assessDuress(p *Profile, message string, timestamp time.Time, hints *SessionHints) *Verdict {
	verdict := &Verdict{
		Indicators:      []string{},
		ElderlyRisks:    []string{},
		Recommendations: []string{},
	}
	lower := strings.ToLower(message)
	confidence := 0.0

	// Message composed faster than the user's own typing speed allows.
	if p.IsElderly && hints != nil && hints.TypingDuration > 0 && p.TypingSpeed > 0 {
		expected := time.Duration(float64(len([]rune(message))) / p.TypingSpeed * float64(time.Minute))
		if hints.TypingDuration < expected/2 {
			confidence += duressFastTyping
			verdict.Indicators = append(verdict.Indicators, "message composed much faster than usual typing speed")
			verdict.ElderlyRisks = append(verdict.ElderlyRisks, "possible third party composing messages")
		}
	}

	// Activity outside the user's established daytime window.
	hour := timestamp.Hour()
	if p.IsElderly && (hour < d.config.DaytimeStartHour || hour >= d.config.DaytimeEndHour) &&
		p.daytimeFraction(d.config.DaytimeStartHour, d.config.DaytimeEndHour) >= daytimeFractionMin {
		confidence += duressOddHour
		verdict.Indicators = append(verdict.Indicators, "activity at an unusual hour for this user")
		verdict.ElderlyRisks = append(verdict.ElderlyRisks, "night-time activity is out of pattern")
	}

	// Abnormally short message relative to the user's own average.
	if p.MessageCount >= minObservations && p.MessageLength > 0 &&
		float64(len([]rune(message))) < 0.3*p.MessageLength {
		confidence += duressShortMessage
		verdict.Indicators = append(verdict.Indicators, "message is abnormally short for this user")
	}

	urgencyHits := countHits(lower, duressUrgencyKeywords)
	moneyHits := countHits(lower, moneyKeywords)

	if urgencyHits > 1 {
		confidence += duressUrgency
		verdict.Indicators = append(verdict.Indicators, "multiple urgency expressions in message")
		if p.IsElderly {
			verdict.EscalateToFamily = true
		}
	}
	if urgencyHits > 0 && moneyHits > 0 {
		confidence += duressUrgencyMoney
		verdict.Indicators = append(verdict.Indicators, "urgency combined with money-related language")
		verdict.EscalateToFamily = true
	}

	verdict.Confidence = clampUnit(confidence)
	verdict.IsDuress = verdict.Confidence > d.config.DuressThreshold

	if verdict.IsDuress {
		verdict.Recommendations = append(verdict.Recommendations,
			"Pause before acting on this message.",
			"Call the person back on a number you already know.")
		if verdict.EscalateToFamily {
			verdict.Recommendations = append(verdict.Recommendations,
				"A family member should check in with this user.")
		}
	}
	return verdict
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits
}

func ema(current, sample, alpha float64) float64 {
	return (1-alpha)*current + alpha*sample
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
