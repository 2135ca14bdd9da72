package orchestrator

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an event or alert id is unknown.
var ErrNotFound = errors.New("not found")

// EventStore keeps threat events until they expire.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]*ThreatEvent
}

func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]*ThreatEvent)}
}

func (s *EventStore) Save(event *ThreatEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

func (s *EventStore) Get(id string) (*ThreatEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return event, nil
}

func (s *EventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Sweep drops events past their expiry and returns how many were removed.
func (s *EventStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, event := range s.events {
		if now.After(event.ExpiresAt) {
			delete(s.events, id)
			removed++
		}
	}
	return removed
}

// AlertStore keeps alerts until they expire or are acknowledged away.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[string]*Alert)}
}

func (s *AlertStore) Save(alert *Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.AlertID] = alert
}

// List returns live alerts, newest first, optionally filtered by user.
func (s *AlertStore) List(userID string, now time.Time) []*Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Alert
	for _, alert := range s.alerts {
		if now.After(alert.ExpiresAt) {
			continue
		}
		if userID != "" && alert.UserID != userID {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Acknowledge removes an alert from the store and returns it marked handled.
func (s *AlertStore) Acknowledge(id string) (*Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.alerts, id)
	alert.Acknowledged = true
	return alert, nil
}

// CountActive counts unexpired alerts still awaiting action. Acknowledged
// alerts have already left the store.
func (s *AlertStore) CountActive(now time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, alert := range s.alerts {
		if !now.After(alert.ExpiresAt) {
			count++
		}
	}
	return count
}

// Sweep drops expired alerts and returns how many were removed.
func (s *AlertStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, alert := range s.alerts {
		if now.After(alert.ExpiresAt) {
			delete(s.alerts, id)
			removed++
		}
	}
	return removed
}
