package reputation

import (
	"math"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Static threat intelligence. These lists are compiled in rather than synced
// from a live feed; the engine stays pure and deterministic.

var blacklistedDomains = []string{
	"phishing-bank-login.com",
	"secure-verify-account.net",
	"kbank-verification.com",
	"scb-secure-login.net",
	"thai-gov-refund.com",
	"prompt-pay-verify.com",
	"free-bonus-slot.xyz",
	"lucky-lotto-thai.top",
	"account-suspended-alert.com",
	"paypal-resolution-center.net",
}

var trustedDomains = []string{
	"google.com",
	"facebook.com",
	"microsoft.com",
	"apple.com",
	"amazon.com",
	"kasikornbank.com",
	"scb.co.th",
	"bangkokbank.com",
	"krungsri.com",
	"ktb.co.th",
	"mof.go.th",
	"bot.or.th",
	"gov.th",
	"go.th",
	"wikipedia.org",
	"youtube.com",
	"line.me",
}

// Free or abuse-prone TLDs that dominate phishing campaign registrations.
var suspiciousTLDs = map[string]bool{
	"tk":     true,
	"ml":     true,
	"ga":     true,
	"cf":     true,
	"gq":     true,
	"xyz":    true,
	"top":    true,
	"club":   true,
	"work":   true,
	"click":  true,
	"loan":   true,
	"racing": true,
	"date":   true,
	"stream": true,
}

var urgencyKeywords = []string{
	"verify",
	"secure",
	"confirm",
	"update",
	"suspend",
	"urgent",
	"alert",
	"login",
	"signin",
	"account",
	"banking",
	"wallet",
	"refund",
	"prize",
	"bonus",
	"reward",
}

// typosquatPatterns maps character-substitution imitations to the brand they
// imitate. Matching is done against individual domain labels.
var typosquatPatterns = map[string]string{
	"goog1e":     "google",
	"g00gle":     "google",
	"faceb00k":   "facebook",
	"facebo0k":   "facebook",
	"rnicrosoft": "microsoft",
	"micros0ft":  "microsoft",
	"app1e":      "apple",
	"arnazon":    "amazon",
	"amaz0n":     "amazon",
	"paypa1":     "paypal",
	"paypai":     "paypal",
	"kas1korn":   "kasikornbank",
	"kasik0rn":   "kasikornbank",
	"scb-th":     "scb",
	"l1ne":       "line",
}

var suspiciousSubdomainLabels = map[string]bool{
	"secure":   true,
	"login":    true,
	"signin":   true,
	"verify":   true,
	"account":  true,
	"update":   true,
	"confirm":  true,
	"webscr":   true,
	"security": true,
}

const (
	fuzzyBlacklistSimilarity = 0.8
	dgaEntropyThreshold      = 4.0
	dgaConsonantRatio        = 0.75
	maxSubdomainDepth        = 3
)

// matchBlacklist reports whether the domain matches the blacklist exactly, as
// a substring, or within the fuzzy similarity threshold of an entry.
func matchBlacklist(domain string) (bool, string) {
	for _, entry := range blacklistedDomains {
		if domain == entry || strings.Contains(domain, entry) {
			return true, entry
		}
		if similarity(domain, entry) >= fuzzyBlacklistSimilarity {
			return true, entry
		}
	}
	return false, ""
}

// matchTrusted reports whether the domain is a trusted domain or a subdomain
// of one.
func matchTrusted(domain string) bool {
	for _, entry := range trustedDomains {
		if domain == entry || strings.HasSuffix(domain, "."+entry) {
			return true
		}
	}
	return false
}

// matchTyposquat checks every label of the host against the substitution
// pattern dictionary.
func matchTyposquat(host string) (bool, string) {
	for _, label := range strings.Split(host, ".") {
		if brand, ok := typosquatPatterns[label]; ok {
			return true, brand
		}
	}
	return false, ""
}

// matchKeywords returns the urgency keywords present in the host.
func matchKeywords(host string) []string {
	var hits []string
	for _, kw := range urgencyKeywords {
		if strings.Contains(host, kw) {
			hits = append(hits, kw)
		}
	}
	return hits
}

// looksGenerated applies the DGA heuristics to the registrable label: high
// Shannon entropy or an implausible consonant run for human-chosen names.
func looksGenerated(label string) bool {
	if len(label) < 8 {
		return false
	}
	if shannonEntropy(label) > dgaEntropyThreshold {
		return true
	}
	letters, consonants := 0, 0
	for _, r := range label {
		if r >= 'a' && r <= 'z' {
			letters++
			if !strings.ContainsRune("aeiouy", r) {
				consonants++
			}
		}
	}
	return letters >= 8 && float64(consonants)/float64(letters) > dgaConsonantRatio
}

// shannonEntropy computes the Shannon entropy of a string in bits per symbol.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}
	freq := make(map[rune]int)
	for _, r := range s {
		freq[r]++
	}
	n := float64(len([]rune(s)))
	entropy := 0.0
	for _, c := range freq {
		p := float64(c) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// similarity is normalized Levenshtein similarity in [0,1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
