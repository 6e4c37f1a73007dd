package probe

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// DNS classes reported by CheckDNS.
const (
	DNSResolves      = "RESOLVES"
	DNSNXDomain      = "NXDOMAIN"
	DNSNoARecord     = "NO_A_RECORD"
	DNSServFail      = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName   = "INVALID_NAME"
	defaultDNSBudget = 3 * time.Second
)

// DNSStatus describes why a stream host may be unreachable at the name level.
type DNSStatus struct {
	Host          string   `json:"host"`
	Class         string   `json:"class"`
	IPs           []string `json:"ips,omitempty"`
	CNAME         string   `json:"cname,omitempty"`
	Nameservers   []string `json:"nameservers,omitempty"`
	ResolverError string   `json:"resolver_error,omitempty"`
}

// CheckDNS classifies host using the system resolver. IP literals resolve
// trivially.
func CheckDNS(ctx context.Context, host string) DNSStatus {
	s := DNSStatus{Host: strings.TrimSpace(host)}
	if s.Host == "" || strings.Contains(s.Host, "://") || strings.ContainsAny(s.Host, " /") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Host); ip != nil {
		s.IPs = []string{ip.String()}
		s.Class = DNSResolves
		return s
	}

	ctx, cancel := context.WithTimeout(ctx, defaultDNSBudget)
	defer cancel()
	r := net.DefaultResolver

	ips, err := r.LookupIP(ctx, "ip", s.Host)
	switch {
	case err == nil && len(ips) > 0:
		for _, ip := range ips {
			s.IPs = append(s.IPs, ip.String())
		}
		s.Class = DNSResolves
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServFail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Host); err == nil && !strings.EqualFold(cname, s.Host+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Host); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case len(s.Nameservers) > 0:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServFail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}
