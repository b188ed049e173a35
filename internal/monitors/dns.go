package monitors

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/types"
)

type DNSAdapter struct{}

func (a *DNSAdapter) Execute(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error) {
	var cfg types.DNSConfig
	if err := decodeConfig(monitor, &cfg); err != nil {
		return types.CheckOutcome{}, err
	}

	if cfg.Domain == "" {
		return types.CheckOutcome{}, fmt.Errorf("%w: dns check requires domain", ErrInvalidConfig)
	}

	resolver := &net.Resolver{}

	start := time.Now()

	var err error
	switch strings.ToUpper(cfg.RecordType) {
	case "A", "":
		err = checkARecord(ctx, resolver, &cfg)
	case "AAAA":
		err = checkAAAARecord(ctx, resolver, &cfg)
	case "CNAME":
		err = checkCNAMERecord(ctx, resolver, &cfg)
	case "MX":
		err = checkMXRecord(ctx, resolver, &cfg)
	case "TXT":
		err = checkTXTRecord(ctx, resolver, &cfg)
	case "NS":
		err = checkNSRecord(ctx, resolver, &cfg)
	default:
		return types.CheckOutcome{}, fmt.Errorf("%w: unsupported DNS record type %q", ErrInvalidConfig, cfg.RecordType)
	}

	if err != nil {
		return down(start, "%v", err), nil
	}

	return up(start), nil
}

func checkARecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	ips, err := resolver.LookupIPAddr(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve A record for %s: %v", cfg.Domain, err)
	}

	if len(ips) == 0 {
		return fmt.Errorf("no A records found for %s", cfg.Domain)
	}

	if cfg.Expected != "" {
		expectedIP := net.ParseIP(cfg.Expected)

		if expectedIP == nil {
			return fmt.Errorf("invalid expected IP: %s", cfg.Expected)
		}

		for _, ip := range ips {
			if ip.IP.Equal(expectedIP) {
				return nil
			}
		}

		return fmt.Errorf("expected IP %s not found in DNS response", cfg.Expected)
	}

	return nil
}

func checkAAAARecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	ips, err := resolver.LookupIPAddr(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve AAAA record for %s: %v", cfg.Domain, err)
	}

	var ipv6Found bool

	for _, ip := range ips {
		if ip.IP.To4() == nil {
			ipv6Found = true

			if cfg.Expected != "" {
				expectedIP := net.ParseIP(cfg.Expected)

				if expectedIP != nil && ip.IP.Equal(expectedIP) {
					return nil
				}
			}
		}
	}

	if !ipv6Found {
		return fmt.Errorf("no AAAA records found for %s", cfg.Domain)
	}

	if cfg.Expected != "" {
		return fmt.Errorf("expected IPv6 %s not found in DNS response", cfg.Expected)
	}

	return nil
}

func checkCNAMERecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	cname, err := resolver.LookupCNAME(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve CNAME for %s: %v", cfg.Domain, err)
	}

	if cfg.Expected != "" && !strings.EqualFold(strings.TrimSuffix(cname, "."), strings.TrimSuffix(cfg.Expected, ".")) {
		return fmt.Errorf("expected CNAME %s, got %s", cfg.Expected, cname)
	}

	return nil
}

func checkMXRecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	mxRecords, err := resolver.LookupMX(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve MX records for %s: %v", cfg.Domain, err)
	}

	if len(mxRecords) == 0 {
		return fmt.Errorf("no MX records found for %s", cfg.Domain)
	}

	if cfg.Expected != "" {
		for _, mx := range mxRecords {
			if strings.EqualFold(strings.TrimSuffix(mx.Host, "."), strings.TrimSuffix(cfg.Expected, ".")) {
				return nil
			}
		}

		return fmt.Errorf("expected MX record %s not found", cfg.Expected)
	}

	return nil
}

func checkTXTRecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	txtRecords, err := resolver.LookupTXT(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve TXT records for %s: %v", cfg.Domain, err)
	}

	if len(txtRecords) == 0 {
		return fmt.Errorf("no TXT records found for %s", cfg.Domain)
	}

	if cfg.Expected != "" {
		for _, txt := range txtRecords {
			if txt == cfg.Expected {
				return nil
			}
		}

		return fmt.Errorf("expected TXT record content %s not found", cfg.Expected)
	}

	return nil
}

func checkNSRecord(ctx context.Context, resolver *net.Resolver, cfg *types.DNSConfig) error {
	nsRecords, err := resolver.LookupNS(ctx, cfg.Domain)

	if err != nil {
		return fmt.Errorf("failed to resolve NS records for %s: %v", cfg.Domain, err)
	}

	if len(nsRecords) == 0 {
		return fmt.Errorf("no NS records found for %s", cfg.Domain)
	}

	if cfg.Expected != "" {
		for _, ns := range nsRecords {
			if strings.EqualFold(strings.TrimSuffix(ns.Host, "."), strings.TrimSuffix(cfg.Expected, ".")) {
				return nil
			}
		}

		return fmt.Errorf("expected NS record %s not found", cfg.Expected)
	}

	return nil
}
