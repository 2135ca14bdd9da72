package reputation

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// Class buckets a domain's overall reputation.
type Class string

const (
	ClassTrusted    Class = "trusted"
	ClassNeutral    Class = "neutral"
	ClassSuspicious Class = "suspicious"
	ClassMalicious  Class = "malicious"
)

// ThreatFlags marks the threat families a domain is associated with.
type ThreatFlags struct {
	Malware      bool `json:"malware"`
	Phishing     bool `json:"phishing"`
	Spam         bool `json:"spam"`
	Botnet       bool `json:"botnet"`
	Cryptomining bool `json:"cryptomining"`
}

// Verdict is the engine's assessment of a single domain. It is derived purely
// from the input; the engine holds no mutable state.
type Verdict struct {
	Domain     string      `json:"domain"`
	Class      Class       `json:"class"`
	RiskScore  int         `json:"risk_score"` // 0-100
	Categories []string    `json:"categories"`
	Flags      ThreatFlags `json:"flags"`
}

// domainFacts are the derived features every rule predicate reads.
type domainFacts struct {
	host        string   // full lowercased host
	labels      []string // host split on dots
	registrable string   // registrable domain label, e.g. "google" in sub.google.com
	tld         string
	trusted     bool
}

// rule is one entry in the scoring table: a predicate over domain facts, the
// weight it contributes when it fires, and the category label it surfaces.
type rule struct {
	name   string
	weight int
	check  func(f *domainFacts) (bool, string)
	flag   func(flags *ThreatFlags)
}

// Engine scores domains with a fixed table of weighted heuristics.
type Engine struct {
	logger *slog.Logger
	rules  []rule
}

// Scoring weights and classification thresholds.
const (
	weightBlacklist     = 90
	weightTrusted       = -70
	weightTLD           = 30
	weightKeywords      = 25
	weightTyposquat     = 40
	weightDGA           = 50
	weightSubdomain     = 20
	thresholdMalicious  = 70
	thresholdSuspicious = 40
	trustedOverrideMax  = 30
)

// NewEngine creates a reputation engine with the built-in rule table.
func NewEngine(logger *slog.Logger) *Engine {
	e := &Engine{logger: logger}
	e.rules = []rule{
		{
			name:   "Blacklist",
			weight: weightBlacklist,
			check: func(f *domainFacts) (bool, string) {
				if ok, entry := matchBlacklist(f.host); ok {
					return true, fmt.Sprintf("blacklisted (matches %s)", entry)
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Phishing = true; fl.Malware = true },
		},
		{
			name:   "TrustedList",
			weight: weightTrusted,
			check: func(f *domainFacts) (bool, string) {
				if f.trusted {
					return true, "trusted domain"
				}
				return false, ""
			},
		},
		{
			name:   "SuspiciousTLD",
			weight: weightTLD,
			check: func(f *domainFacts) (bool, string) {
				if suspiciousTLDs[f.tld] {
					return true, fmt.Sprintf("suspicious TLD .%s", f.tld)
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Spam = true },
		},
		{
			name:   "UrgencyKeywords",
			weight: weightKeywords,
			check: func(f *domainFacts) (bool, string) {
				if hits := matchKeywords(f.host); len(hits) > 0 {
					return true, "urgency keywords: " + strings.Join(hits, ", ")
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Phishing = true },
		},
		{
			name:   "Typosquatting",
			weight: weightTyposquat,
			check: func(f *domainFacts) (bool, string) {
				if ok, brand := matchTyposquat(f.host); ok {
					return true, fmt.Sprintf("typosquat of %s", brand)
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Phishing = true },
		},
		{
			name:   "DGA",
			weight: weightDGA,
			check: func(f *domainFacts) (bool, string) {
				if looksGenerated(f.registrable) {
					return true, "algorithmically generated name"
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Botnet = true; fl.Malware = true },
		},
		{
			name:   "SubdomainAnomaly",
			weight: weightSubdomain,
			check: func(f *domainFacts) (bool, string) {
				if len(f.labels) > maxSubdomainDepth+1 {
					return true, fmt.Sprintf("excessive subdomain depth (%d)", len(f.labels)-2)
				}
				for _, label := range f.labels[:max(0, len(f.labels)-2)] {
					if suspiciousSubdomainLabels[label] {
						return true, fmt.Sprintf("suspicious subdomain label %q", label)
					}
				}
				return false, ""
			},
			flag: func(fl *ThreatFlags) { fl.Phishing = true },
		},
	}
	return e
}

// Evaluate scores a domain or URL. Malformed input yields a neutral default
// verdict; the engine never returns an error to its caller.
func (e *Engine) Evaluate(target string) *Verdict {
	host := extractHost(target)
	if host == "" {
		return &Verdict{Domain: target, Class: ClassNeutral, Categories: []string{}}
	}

	facts := deriveFacts(host)
	verdict := &Verdict{Domain: host, Categories: []string{}}

	score := 0
	for _, r := range e.rules {
		hit, detail := r.check(facts)
		if !hit {
			continue
		}
		score += r.weight
		verdict.Categories = append(verdict.Categories, r.name+": "+detail)
		if r.flag != nil {
			r.flag(&verdict.Flags)
		}
	}

	rawScore := score
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	verdict.RiskScore = score

	switch {
	case score >= thresholdMalicious:
		verdict.Class = ClassMalicious
	case score >= thresholdSuspicious:
		verdict.Class = ClassSuspicious
	default:
		verdict.Class = ClassNeutral
	}
	if facts.trusted && score < trustedOverrideMax {
		verdict.Class = ClassTrusted
	}

	if e.logger != nil && verdict.Class != ClassNeutral && verdict.Class != ClassTrusted {
		e.logger.Debug("domain reputation flagged",
			"domain", host,
			"class", verdict.Class,
			"score", score,
			"raw_score", rawScore)
	}
	return verdict
}

// IsBlacklisted exposes the blacklist sub-check for composing scanners.
func IsBlacklisted(host string) (bool, string) {
	return matchBlacklist(strings.ToLower(host))
}

// IsGenerated exposes the DGA sub-check for composing scanners.
func IsGenerated(host string) bool {
	return looksGenerated(deriveFacts(strings.ToLower(host)).registrable)
}

// IsTyposquat exposes the typosquat sub-check for composing scanners.
func IsTyposquat(host string) (bool, string) {
	return matchTyposquat(strings.ToLower(host))
}

// extractHost pulls a lowercased host out of a URL or bare domain string.
func extractHost(target string) string {
	target = strings.TrimSpace(strings.ToLower(target))
	if target == "" {
		return ""
	}
	if strings.Contains(target, "://") {
		u, err := url.Parse(target)
		if err != nil || u.Hostname() == "" {
			return ""
		}
		return u.Hostname()
	}
	// Bare domain; strip any path suffix.
	if i := strings.IndexAny(target, "/?#"); i >= 0 {
		target = target[:i]
	}
	if strings.ContainsAny(target, " \t") || !strings.Contains(target, ".") {
		return ""
	}
	return target
}

// deriveFacts computes the features the rule table reads.
func deriveFacts(host string) *domainFacts {
	labels := strings.Split(host, ".")
	facts := &domainFacts{
		host:    host,
		labels:  labels,
		trusted: matchTrusted(host),
	}
	if len(labels) >= 2 {
		facts.tld = labels[len(labels)-1]
		facts.registrable = labels[len(labels)-2]
	} else {
		facts.registrable = host
	}
	return facts
}
