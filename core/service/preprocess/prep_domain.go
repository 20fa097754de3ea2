// Package preprocess holds the row-wise text and label transforms applied to a
// RecordTable before tokenization.
package preprocess

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"prep_server/pkg/apperr"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// Domain is a URL host split into its public-suffix parts.
type Domain struct {
	Subdomain string // "sub" for sub.example.co.uk
	Domain    string // "example"
	Suffix    string // "co.uk"
}

// Registered returns domain plus suffix ("example.co.uk").
func (d Domain) Registered() string {
	if d.Suffix == "" {
		return d.Domain
	}
	if d.Domain == "" {
		return ""
	}
	return d.Domain + "." + d.Suffix
}

// ExtractResult is the outcome of DomainExtractor.Extract.
// OK is false when the URL could not be parsed; Domain is then empty.
type ExtractResult struct {
	Domain Domain
	OK     bool
}

// DomainExtractor parses URLs into registrable domains using the public suffix list.
// Failures are logged and reported through ExtractResult, never returned.
type DomainExtractor struct {
	log zerolog.Logger
}

// NewDomainExtractor creates an extractor that logs failures to log.
func NewDomainExtractor(log zerolog.Logger) *DomainExtractor {
	return &DomainExtractor{log: log.With().Str("component", "domain_extractor").Logger()}
}

// Extract parses rawURL. Scheme-less input ("example.com/x") is accepted.
func (e *DomainExtractor) Extract(rawURL string) ExtractResult {
	d, err := splitHost(rawURL)
	if err != nil {
		failure := apperr.ExtractionFailure(rawURL, err)
		e.log.Warn().Err(failure).Str("url", rawURL).Msg("could not extract domain, using empty domain")
		return ExtractResult{}
	}
	return ExtractResult{Domain: d, OK: true}
}

func splitHost(rawURL string) (Domain, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return Domain{}, errors.New("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Domain{}, err
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return Domain{}, errors.New("url has no host")
	}

	// IP literals have no suffix; the address itself is the domain.
	if net.ParseIP(host) != nil {
		return Domain{Domain: host}, nil
	}

	// Private suffixes (github.io, blogspot.com) resolve to their ICANN parent,
	// so "someone.github.io" belongs to domain "github".
	suffix, icann := publicsuffix.PublicSuffix(host)
	for !icann && strings.Contains(suffix, ".") {
		suffix, icann = publicsuffix.PublicSuffix(suffix[strings.Index(suffix, ".")+1:])
	}
	if suffix == host {
		if !icann && !strings.Contains(host, ".") {
			// Single-label hosts (localhost, intranet names).
			return Domain{Domain: host}, nil
		}
		return Domain{}, fmt.Errorf("host %q is a public suffix", host)
	}

	rest := strings.TrimSuffix(host, "."+suffix)
	d := Domain{Domain: rest, Suffix: suffix}
	if i := strings.LastIndex(rest, "."); i >= 0 {
		d.Subdomain, d.Domain = rest[:i], rest[i+1:]
	}
	if d.Domain == "" {
		return Domain{}, fmt.Errorf("host %q has an empty label", host)
	}
	return d, nil
}
