package inspector

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/elder-shield/guardian-engine/internal/config"
)

// ErrUnreachable indicates the TLS probe could not reach the host. Callers
// degrade the transport signal instead of failing the analysis.
var ErrUnreachable = errors.New("host unreachable")

// CertificateInfo holds the metadata extracted from a live TLS handshake.
// It is created per probe and discarded with the enclosing analysis.
type CertificateInfo struct {
	Issuer          string    `json:"issuer"`
	IssuerOrg       string    `json:"issuer_org"`
	Subject         string    `json:"subject"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	Fingerprint     string    `json:"fingerprint"`
	IsSelfSigned    bool      `json:"is_self_signed"`
	IsExpired       bool      `json:"is_expired"`
	Warnings        []string  `json:"warnings"`
}

// Issuer organizations accepted without an untrusted-CA warning. This is an
// approximation of public trust, not chain verification.
var trustedCAOrgs = []string{
	"Let's Encrypt",
	"DigiCert",
	"Sectigo",
	"GlobalSign",
	"GoDaddy",
	"Amazon",
	"Google Trust Services",
	"Cloudflare",
	"Microsoft",
	"Entrust",
	"Comodo",
	"Thawte",
	"GeoTrust",
	"Thai Digital ID",
}

// Inspector probes target hosts for certificate and security-header posture.
type Inspector struct {
	config config.InspectorConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates a transport inspector.
func New(cfg config.InspectorConfig, logger *slog.Logger) *Inspector {
	return &Inspector{config: cfg, logger: logger, now: time.Now}
}

// InspectCertificate opens a TLS connection to host (port 443 unless given)
// and extracts the leaf certificate metadata. Connection failures and
// timeouts return ErrUnreachable-wrapped errors.
func (i *Inspector) InspectCertificate(ctx context.Context, host string) (*CertificateInfo, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "443")
	}

	ctx, cancel := context.WithTimeout(ctx, i.config.TLSTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: i.config.TLSTimeout},
		Config: &tls.Config{
			// Chain verification is skipped so self-signed and expired
			// certificates can still be inspected and reported.
			InsecureSkipVerify: true,
			ServerName:         hostOnly(addr),
		},
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(ErrUnreachable, "tls dial %s: %v", addr, err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return nil, errors.Wrapf(ErrUnreachable, "no peer certificate from %s", addr)
	}

	leaf := state.PeerCertificates[0]
	sum := sha256.Sum256(leaf.Raw)
	now := i.now()

	info := &CertificateInfo{
		Issuer:          leaf.Issuer.CommonName,
		Subject:         leaf.Subject.CommonName,
		ValidFrom:       leaf.NotBefore,
		ValidTo:         leaf.NotAfter,
		DaysUntilExpiry: int(leaf.NotAfter.Sub(now).Hours() / 24),
		Fingerprint:     hex.EncodeToString(sum[:]),
		IsSelfSigned:    leaf.Issuer.CommonName == leaf.Subject.CommonName,
		IsExpired:       now.After(leaf.NotAfter) || now.Before(leaf.NotBefore),
		Warnings:        []string{},
	}
	if len(leaf.Issuer.Organization) > 0 {
		info.IssuerOrg = leaf.Issuer.Organization[0]
	}

	if info.IsSelfSigned {
		info.Warnings = append(info.Warnings, "certificate is self-signed")
	}
	if info.IsExpired {
		info.Warnings = append(info.Warnings, "certificate is expired or not yet valid")
	} else if info.DaysUntilExpiry < i.config.ExpiryWarnDays {
		info.Warnings = append(info.Warnings, "certificate expires soon")
	}
	if !info.IsSelfSigned && !isTrustedCA(info.IssuerOrg) {
		info.Warnings = append(info.Warnings, "issuer is not a recognized certificate authority")
	}

	i.logger.Debug("certificate inspected",
		"host", host,
		"issuer", info.Issuer,
		"days_until_expiry", info.DaysUntilExpiry,
		"warnings", len(info.Warnings))
	return info, nil
}

func isTrustedCA(org string) bool {
	for _, trusted := range trustedCAOrgs {
		if strings.Contains(org, trusted) {
			return true
		}
	}
	return false
}

func hostOnly(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
