package reputation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_Blacklist(t *testing.T) {
	engine := NewEngine(nil)

	verdict := engine.Evaluate("phishing-bank-login.com")
	require.NotNil(t, verdict)
	assert.Equal(t, ClassMalicious, verdict.Class)
	assert.GreaterOrEqual(t, verdict.RiskScore, 90)
	assert.True(t, verdict.Flags.Phishing)

	// Near-identical imitation of a blacklisted entry is caught by the fuzzy match
	fuzzy := engine.Evaluate("phishing-bank-log1n.com")
	assert.Equal(t, ClassMalicious, fuzzy.Class)
}

func TestEvaluate_TrustedDomains(t *testing.T) {
	engine := NewEngine(nil)

	for _, domain := range []string{"google.com", "mof.go.th", "www.kasikornbank.com"} {
		t.Run(domain, func(t *testing.T) {
			verdict := engine.Evaluate(domain)
			assert.Equal(t, ClassTrusted, verdict.Class, "expected %s to be trusted", domain)
			assert.Equal(t, 0, verdict.RiskScore)
		})
	}
}

func TestEvaluate_Typosquatting(t *testing.T) {
	engine := NewEngine(nil)

	squat := engine.Evaluate("goog1e.com")
	found := false
	for _, cat := range squat.Categories {
		if strings.HasPrefix(cat, "Typosquatting") {
			found = true
		}
	}
	assert.True(t, found, "goog1e.com should be flagged as typosquatting, got %v", squat.Categories)
	assert.True(t, squat.Flags.Phishing)

	legit := engine.Evaluate("google.com")
	for _, cat := range legit.Categories {
		assert.False(t, strings.HasPrefix(cat, "Typosquatting"), "google.com must not be flagged: %v", legit.Categories)
	}
}

func TestEvaluate_DGA(t *testing.T) {
	engine := NewEngine(nil)

	generated := engine.Evaluate("xk7qz9mw2vb4nr8tlj3p.com")
	hasDGA := false
	for _, cat := range generated.Categories {
		if strings.HasPrefix(cat, "DGA") {
			hasDGA = true
		}
	}
	assert.True(t, hasDGA, "random label should be flagged DGA-likely, got %v", generated.Categories)
	assert.True(t, generated.Flags.Botnet)

	dictionary := engine.Evaluate("butterfly.com")
	for _, cat := range dictionary.Categories {
		assert.False(t, strings.HasPrefix(cat, "DGA"), "dictionary word must not be flagged: %v", dictionary.Categories)
	}
}

func TestEvaluate_SuspiciousTLDAndKeywords(t *testing.T) {
	engine := NewEngine(nil)

	verdict := engine.Evaluate("kbank-secure-verify.tk")
	assert.Equal(t, ClassSuspicious, verdict.Class)
	assert.GreaterOrEqual(t, verdict.RiskScore, 55, "TLD and keyword weights should both fire")
}

func TestEvaluate_SubdomainAnomaly(t *testing.T) {
	engine := NewEngine(nil)

	verdict := engine.Evaluate("secure.update.example.com")
	hit := false
	for _, cat := range verdict.Categories {
		if strings.HasPrefix(cat, "SubdomainAnomaly") {
			hit = true
		}
	}
	assert.True(t, hit, "suspicious subdomain label should be flagged, got %v", verdict.Categories)
}

func TestEvaluate_MalformedInput(t *testing.T) {
	engine := NewEngine(nil)

	for _, input := range []string{"", "not a url at all", "://broken"} {
		verdict := engine.Evaluate(input)
		require.NotNil(t, verdict)
		assert.Equal(t, ClassNeutral, verdict.Class)
		assert.Equal(t, 0, verdict.RiskScore)
	}
}

func TestEvaluate_ScoreClamped(t *testing.T) {
	engine := NewEngine(nil)

	// Fires blacklist, keywords, TLD and subdomain rules at once.
	verdict := engine.Evaluate("login.kbank-verification.com.secure-verify-account.net")
	assert.LessOrEqual(t, verdict.RiskScore, 100)
	assert.GreaterOrEqual(t, verdict.RiskScore, 0)
	assert.Equal(t, ClassMalicious, verdict.Class)
}

func TestEvaluate_MoreSignalsNeverLowerScore(t *testing.T) {
	engine := NewEngine(nil)

	base := engine.Evaluate("example.tk")
	withKeywords := engine.Evaluate("verify-example.tk")
	assert.GreaterOrEqual(t, withKeywords.RiskScore, base.RiskScore,
		"adding a red flag must never lower the score")
}

func TestEvaluate_Deterministic(t *testing.T) {
	engine := NewEngine(nil)

	first := engine.Evaluate("kbank-secure-verify.tk")
	second := engine.Evaluate("kbank-secure-verify.tk")
	assert.Equal(t, first, second)
}

func TestShannonEntropy(t *testing.T) {
	assert.InDelta(t, 0.0, shannonEntropy("aaaa"), 0.001)
	assert.Greater(t, shannonEntropy("xk7qz9mw2vb4nr8tlj3p"), 4.0)
	assert.Less(t, shannonEntropy("butterfly"), 4.0)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("google.com", "google.com"))
	assert.GreaterOrEqual(t, similarity("goog1e.com", "google.com"), 0.8)
	assert.Less(t, similarity("example.org", "google.com"), 0.5)
}
