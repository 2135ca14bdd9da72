package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elder-shield/guardian-engine/internal/config"
)

func TestRegistry_ExactAndWildcard(t *testing.T) {
	r := New(config.RegistryConfig{})

	assert.True(t, r.IsTrusted("https://mof.go.th/x"))
	assert.True(t, r.IsTrusted("https://revenue.go.th/refund"), "wildcard suffix should match")
	assert.True(t, r.IsTrusted("google.com"))
	assert.False(t, r.IsTrusted("http://kbank-secure-verify.tk/login"))
	assert.False(t, r.IsTrusted("https://go.th.evil.com/"), "suffix match must respect label boundaries")
}

func TestRegistry_Info(t *testing.T) {
	r := New(config.RegistryConfig{})

	info := r.Info("https://mof.go.th/")
	require.NotNil(t, info)
	assert.Equal(t, "Ministry of Finance", info.Organization)
	assert.Equal(t, "government", info.Category)

	assert.Nil(t, r.Info("https://unknown-site.example/"))
}

func TestRegistry_ConfiguredSites(t *testing.T) {
	r := New(config.RegistryConfig{
		Sites: []config.TrustedSite{
			{Pattern: "*.internal.example", Organization: "Example Corp", Category: "internal"},
		},
	})

	assert.True(t, r.IsTrusted("https://portal.internal.example/login"))
	info := r.Info("portal.internal.example")
	require.NotNil(t, info)
	assert.Equal(t, "Example Corp", info.Organization)
}

func TestRegistry_MalformedURL(t *testing.T) {
	r := New(config.RegistryConfig{})
	assert.False(t, r.IsTrusted(""))
	assert.False(t, r.IsTrusted("not a url"))
}
