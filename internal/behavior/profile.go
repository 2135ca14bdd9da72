// Package behavior implements the per-user behavioral profiling and duress
// detection engine.
package behavior

import (
	"time"
)

// Profile is the long-lived rolling behavioral profile for one user. All
// rolling statistics are exponential moving averages. Updates to a profile
// are serialized per user by the detector.
type Profile struct {
	UserID         string    `json:"user_id"`
	IsElderly      bool      `json:"is_elderly"`
	TypingSpeed    float64   `json:"typing_speed"`    // characters per minute
	ResponseTime   float64   `json:"response_time"`   // seconds
	MessageLength  float64   `json:"message_length"`  // characters
	ErrorRate      float64   `json:"error_rate"`      // corrections per character
	RecentHours    []int     `json:"recent_hours"`    // up to 10 distinct hours of day
	WeeklyActivity [7]int64  `json:"weekly_activity"` // messages per weekday
	TrustScore     float64   `json:"trust_score"`     // 0-1
	MessageCount   int64     `json:"message_count"`
	CreatedAt      time.Time `json:"created_at"`
	LastUpdate     time.Time `json:"last_update"`
}

const recentHourLimit = 10

// newProfile creates the lazy first-contact profile.
func newProfile(userID string, now time.Time) *Profile {
	return &Profile{
		UserID:      userID,
		TrustScore:  0.5,
		RecentHours: []int{},
		CreatedAt:   now,
		LastUpdate:  now,
	}
}

// recordHour adds an hour of day to the bounded recent-hour history,
// keeping at most the ten most recent distinct hours.
func (p *Profile) recordHour(hour int) {
	for i, h := range p.RecentHours {
		if h == hour {
			// Move to the back so eviction drops the stalest hour.
			p.RecentHours = append(append(p.RecentHours[:i], p.RecentHours[i+1:]...), hour)
			return
		}
	}
	p.RecentHours = append(p.RecentHours, hour)
	if len(p.RecentHours) > recentHourLimit {
		p.RecentHours = p.RecentHours[1:]
	}
}

// daytimeFraction is the share of recorded hours inside [start, end).
func (p *Profile) daytimeFraction(start, end int) float64 {
	if len(p.RecentHours) == 0 {
		return 0
	}
	inWindow := 0
	for _, h := range p.RecentHours {
		if h >= start && h < end {
			inWindow++
		}
	}
	return float64(inWindow) / float64(len(p.RecentHours))
}

// activeDays counts weekday buckets with any recorded activity.
func (p *Profile) activeDays() int {
	days := 0
	for _, c := range p.WeeklyActivity {
		if c > 0 {
			days++
		}
	}
	return days
}

// clone returns a deep copy so stores can hand out snapshots.
func (p *Profile) clone() *Profile {
	dup := *p
	dup.RecentHours = append([]int{}, p.RecentHours...)
	return &dup
}
